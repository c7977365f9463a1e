package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"wastetrack/internal/bordereau/models"
	"wastetrack/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresUpdateFormStaleVersion(t *testing.T) {
	ctx := context.Background()
	f := newTestForm()
	f.Version = 3

	t.Run("conflict when the row exists at another version", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("UPDATE forms SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.ErrorIs(t, s.UpdateForm(ctx, f), sentinel.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found when the row is gone", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("UPDATE forms SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		require.ErrorIs(t, s.UpdateForm(ctx, f), sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUpdateFormReplacesTransportLegs(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	now := time.Now()
	f := newTestForm()
	f.Version = 1
	f.Transporters = []models.Transporter{
		{ID: uuid.New(), Number: 1, CompanySiret: "33333333333333", TakenOverAt: &now},
		{ID: uuid.New(), Number: 2, CompanySiret: "55555555555555"},
	}

	mock.ExpectExec("UPDATE forms SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM form_transporters").
		WithArgs(f.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO form_transporters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO form_transporters").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateForm(ctx, f))
	require.Equal(t, 2, f.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateFormUniqueViolation(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO forms").
		WillReturnError(&pq.Error{Code: "23505"})

	require.ErrorIs(t, s.CreateForm(ctx, newTestForm()), sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteForm(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE forms SET is_deleted").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, s.DeleteForm(ctx, id), sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertGroupement(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	link := &models.Groupement{
		ID:            uuid.New(),
		InitialFormID: uuid.New(),
		NextFormID:    uuid.New(),
		Quantity:      2.5,
	}
	mock.ExpectExec("INSERT INTO groupements").
		WithArgs(link.ID, link.InitialFormID, link.NextFormID, link.Quantity).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertGroupement(ctx, link))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountPendingApprovals(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)
	requestID := uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(requestID, models.RevisionApprovalPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountPendingApprovals(ctx, requestID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindApprovalNotFound(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, revision_request_id").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindApproval(ctx, uuid.New())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		s, mock := newMockStore(t)
		initial, next := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM groupements").
			WithArgs(initial, next).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.RunInTx(ctx, func(ctx context.Context) error {
			return s.DeleteGroupement(ctx, initial, next)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s, mock := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.RunInTx(ctx, func(ctx context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
