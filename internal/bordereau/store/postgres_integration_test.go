//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/store"
	"wastetrack/pkg/platform/sentinel"
	"wastetrack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.RunMigrations(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"revision_approvals", "revision_requests", "groupements",
		"status_logs", "form_temp_storage", "form_transporters", "forms")
	s.Require().NoError(err)
}

func newStoredForm() *models.Form {
	now := time.Now().UTC().Truncate(time.Microsecond)
	quantity := 10.0
	return &models.Form{
		ID:                     uuid.New(),
		ReadableID:             "BSD-" + uuid.NewString(),
		Status:                 models.StatusDraft,
		EmitterType:            models.EmitterTypeProducer,
		EmitterCompanySiret:    "11111111111111",
		RecipientCompanySiret:  "22222222222222",
		WasteDetailsCode:       "06 01 01*",
		WasteDetailsQuantity:   &quantity,
		WasteDetailsPackagings: "FUT x4",
		Transporters: []models.Transporter{
			{ID: uuid.New(), Number: 1, CompanySiret: "33333333333333", CompanyName: "Transports Martin"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestRoundTripWithSatellites() {
	ctx := context.Background()
	f := newStoredForm()
	f.RecipientIsTempStorage = true
	f.TempStorage = &models.TempStorageDetail{
		DestinationCompanySiret:        "44444444444444",
		DestinationProcessingOperation: "R 1",
	}

	s.Require().NoError(s.store.CreateForm(ctx, f))

	got, err := s.store.FindForm(ctx, f.ID)
	s.Require().NoError(err)
	s.Equal(f.ReadableID, got.ReadableID)
	s.Equal(1, got.Version)
	s.Require().Len(got.Transporters, 1)
	s.Equal("33333333333333", got.Transporters[0].CompanySiret)
	s.Require().NotNil(got.TempStorage)
	s.Equal("44444444444444", got.TempStorage.DestinationCompanySiret)

	byReadable, err := s.store.FindFormByReadableID(ctx, f.ReadableID)
	s.Require().NoError(err)
	s.Equal(f.ID, byReadable.ID)
}

func (s *PostgresStoreSuite) TestOptimisticConcurrency() {
	ctx := context.Background()
	f := newStoredForm()
	s.Require().NoError(s.store.CreateForm(ctx, f))

	const goroutines = 10
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			stale, err := s.store.FindForm(ctx, f.ID)
			if err != nil {
				return
			}
			stale.Status = models.StatusSealed
			switch err := s.store.UpdateForm(ctx, stale); {
			case err == nil:
				wins.Add(1)
			default:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.GreaterOrEqual(wins.Load(), int32(1), "at least one update lands")
	s.Equal(int32(goroutines), wins.Load()+conflicts.Load())

	got, err := s.store.FindForm(ctx, f.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSealed, got.Status)
	s.Equal(1+int(wins.Load()), got.Version, "the version counts committed writes only")
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackEverything() {
	ctx := context.Background()
	f := newStoredForm()

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateForm(ctx, f); err != nil {
			return err
		}
		if err := s.store.AppendStatusLog(ctx, &models.StatusLog{
			ID:       uuid.New(),
			FormID:   f.ID,
			Status:   models.StatusSealed,
			LoggedAt: time.Now(),
		}); err != nil {
			return err
		}
		return sentinel.ErrConflict
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.FindForm(ctx, f.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	logs, err := s.store.ListStatusLogs(ctx, f.ID)
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *PostgresStoreSuite) TestStatusLogDiffSurvivesJSON() {
	ctx := context.Background()
	f := newStoredForm()
	s.Require().NoError(s.store.CreateForm(ctx, f))

	entry := &models.StatusLog{
		ID:       uuid.New(),
		FormID:   f.ID,
		UserID:   uuid.New(),
		AuthType: "session",
		Status:   models.StatusAccepted,
		LoggedAt: time.Now().UTC().Truncate(time.Microsecond),
		UpdatedFields: map[string]any{
			"quantityReceived":       9.5,
			"wasteAcceptationStatus": "ACCEPTED",
		},
	}
	s.Require().NoError(s.store.AppendStatusLog(ctx, entry))

	logs, err := s.store.ListStatusLogs(ctx, f.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(9.5, logs[0].UpdatedFields["quantityReceived"])
	s.Equal("ACCEPTED", logs[0].UpdatedFields["wasteAcceptationStatus"])
}

func (s *PostgresStoreSuite) TestGroupementUpsertIsKeyedByPair() {
	ctx := context.Background()
	initial, next := newStoredForm(), newStoredForm()
	s.Require().NoError(s.store.CreateForm(ctx, initial))
	s.Require().NoError(s.store.CreateForm(ctx, next))

	link := &models.Groupement{
		ID:            uuid.New(),
		InitialFormID: initial.ID,
		NextFormID:    next.ID,
		Quantity:      2,
	}
	s.Require().NoError(s.store.UpsertGroupement(ctx, link))

	link.ID = uuid.New()
	link.Quantity = 5
	s.Require().NoError(s.store.UpsertGroupement(ctx, link))

	links, err := s.store.GroupementsByNextForm(ctx, next.ID)
	s.Require().NoError(err)
	s.Require().Len(links, 1)
	s.Equal(5.0, links[0].Quantity)
}

func (s *PostgresStoreSuite) TestRevisionCascadeDelete() {
	ctx := context.Background()
	f := newStoredForm()
	s.Require().NoError(s.store.CreateForm(ctx, f))

	r := &models.RevisionRequest{
		ID:                    uuid.New(),
		FormID:                f.ID,
		AuthoringCompanySiret: "11111111111111",
		Status:                models.RevisionRequestPending,
		Content:               models.RevisionContent{},
		CreatedAt:             time.Now().UTC().Truncate(time.Microsecond),
		Approvals: []models.RevisionApproval{
			{ID: uuid.New(), ApproverSiret: "22222222222222", Status: models.RevisionApprovalPending},
		},
	}
	r.Approvals[0].RevisionRequestID = r.ID
	s.Require().NoError(s.store.CreateRevisionRequest(ctx, r))

	got, err := s.store.FindRevisionRequest(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Approvals, 1)

	s.Require().NoError(s.store.DeleteRevisionRequest(ctx, r.ID))

	_, err = s.store.FindApproval(ctx, r.Approvals[0].ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "approvals cascade with their request")
}

func (s *PostgresStoreSuite) TestRowLockSerializesTransitions() {
	ctx := context.Background()
	f := newStoredForm()
	s.Require().NoError(s.store.CreateForm(ctx, f))

	const goroutines = 5
	var wg sync.WaitGroup
	var applied atomic.Int32

	// Each goroutine locks the row, re-reads the fresh version, and writes.
	// FOR UPDATE serializes them, so every write lands without conflicts.
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(ctx, func(ctx context.Context) error {
				locked, err := s.store.FindFormForUpdate(ctx, f.ID)
				if err != nil {
					return err
				}
				locked.Status = models.StatusSealed
				return s.store.UpdateForm(ctx, locked)
			})
			if err == nil {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(goroutines), applied.Load(), "locked read-modify-write never conflicts")

	got, err := s.store.FindForm(ctx, f.ID)
	s.Require().NoError(err)
	s.Equal(1+goroutines, got.Version)
}
