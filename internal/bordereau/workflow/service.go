package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/metrics"
	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/ports"
	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/platform/sentinel"
	"wastetrack/pkg/readableid"
	"wastetrack/pkg/requestcontext"
)

// AppendixPropagator is the hook into the linkage manager for the side effects
// a container transition triggers on its children. Implementations run inside
// the caller's transaction and return the readable IDs of every document they
// touched so the service can schedule reindexing after commit.
type AppendixPropagator interface {
	// OnContainerSealed recomputes the grouped state of appendix-2
	// sub-documents after this container reached SEALED or SENT.
	OnContainerSealed(ctx context.Context, container *models.Form) ([]string, error)

	// OnContainerReceived cascades grouped appendix-2 sub-documents to
	// PROCESSED after this container was received on the accepted branch.
	OnContainerReceived(ctx context.Context, container *models.Form) ([]string, error)

	// UpdateAppendix1Forms propagates the container's own advance to its
	// appendix-1 children.
	UpdateAppendix1Forms(ctx context.Context, container *models.Form) ([]string, error)
}

// Service sequences validation, persistence and audit logging around a status
// transition. The machine itself stays pure; everything side-effecting lives
// here, inside one transaction per call.
type Service struct {
	store    ports.Store
	notifier ports.Notifier
	codes    ports.SecurityCodeVerifier
	appendix AppendixPropagator
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithSecurityCodeVerifier(v ports.SecurityCodeVerifier) Option {
	return func(s *Service) { s.codes = v }
}

func WithAppendix(p AppendixPropagator) Option {
	return func(s *Service) { s.appendix = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a new bordereau in DRAFT with a fresh reference code.
func (s *Service) Create(ctx context.Context, f *models.Form) (*models.Form, error) {
	now := requestcontext.Now(ctx)
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.ReadableID = readableid.New(now)
	f.Status = models.StatusDraft
	if f.EmitterType == "" {
		f.EmitterType = models.EmitterTypeProducer
	}
	f.CreatedAt = now
	f.UpdatedAt = now

	if err := s.store.CreateForm(ctx, f); err != nil {
		return nil, translateStoreErr(err)
	}
	s.notify(ctx, f.ReadableID)
	return f, nil
}

// Delete soft-deletes a bordereau. Only documents that have not entered the
// logistics chain can be deleted.
func (s *Service) Delete(ctx context.Context, formID uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.store.FindFormForUpdate(ctx, formID)
		if err != nil {
			return translateStoreErr(err)
		}
		switch f.Status {
		case models.StatusDraft, models.StatusSealed:
			return s.store.DeleteForm(ctx, formID)
		default:
			return dErrors.Newf(dErrors.CodeForbidden,
				"a bordereau in status %s can no longer be deleted", f.Status)
		}
	})
	return err
}

// Transition applies one lifecycle event to a document: resolve the edge, run
// the guards, verify out-of-band preconditions, persist the new status with
// its audit record, and trigger the appendix side effects, all atomically. No
// change is persisted until the final stable status is known.
func (s *Service) Transition(ctx context.Context, formID uuid.UUID, event Event, p Params) (*models.Form, error) {
	start := time.Now()

	var (
		updated *models.Form
		touched []string
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.store.FindFormForUpdate(ctx, formID)
		if err != nil {
			return translateStoreErr(err)
		}
		if f.IsDeleted {
			return dErrors.New(dErrors.CodeNotFound, "bordereau not found")
		}

		links, err := s.store.GroupementsByInitialForm(ctx, f.ID)
		if err != nil {
			return translateStoreErr(err)
		}

		next, err := Resolve(GuardInput{Form: f, Params: p, Groupements: links}, event)
		if err != nil {
			return err
		}

		if holder := SecurityCodeHolder(f, event); holder != "" {
			if s.codes == nil {
				return dErrors.New(dErrors.CodeInternal, "security code verifier is not configured")
			}
			if err := s.codes.Verify(ctx, holder, p.SecurityCode); err != nil {
				return NewInvalidSecurityCode()
			}
		}

		now := requestcontext.Now(ctx)
		Apply(f, event, p, now)
		f.Status = next
		f.UpdatedAt = now

		if err := s.store.UpdateForm(ctx, f); err != nil {
			return translateStoreErr(err)
		}

		actor := requestcontext.ActorFrom(ctx)
		entry := &models.StatusLog{
			ID:            uuid.New(),
			FormID:        f.ID,
			UserID:        actor.UserID,
			AuthType:      actor.AuthType,
			Status:        next,
			LoggedAt:      now,
			UpdatedFields: loggedDiff(event, f, p),
		}
		if err := s.store.AppendStatusLog(ctx, entry); err != nil {
			return translateStoreErr(err)
		}

		if s.appendix != nil {
			switch next {
			case models.StatusSealed, models.StatusSent:
				ids, err := s.appendix.OnContainerSealed(ctx, f)
				if err != nil {
					return NewAppendixError(err)
				}
				touched = append(touched, ids...)
			case models.StatusReceived, models.StatusAccepted:
				ids, err := s.appendix.OnContainerReceived(ctx, f)
				if err != nil {
					return NewAppendixError(err)
				}
				touched = append(touched, ids...)
			}

			if f.EmitterType == models.EmitterTypeAppendix1 && propagatesToAppendix1(next) {
				ids, err := s.appendix.UpdateAppendix1Forms(ctx, f)
				if err != nil {
					return NewAppendixError(err)
				}
				touched = append(touched, ids...)
			}
		}

		updated = f
		return nil
	})

	if err != nil {
		s.metrics.ObserveTransition(string(event), "rejected", time.Since(start))
		return nil, err
	}

	s.metrics.ObserveTransition(string(event), string(updated.Status), time.Since(start))
	s.logger.Info("status transition",
		"readable_id", updated.ReadableID,
		"event", string(event),
		"status", string(updated.Status),
	)

	s.notify(ctx, updated.ReadableID)
	for _, id := range touched {
		s.notify(ctx, id)
	}
	return updated, nil
}

// propagatesToAppendix1 lists the container statuses whose entry is mirrored
// onto appendix-1 children. Sealing and transport are signed per child at
// pickup, so they do not propagate.
func propagatesToAppendix1(s models.Status) bool {
	switch s {
	case models.StatusReceived, models.StatusAccepted, models.StatusRefused,
		models.StatusProcessed, models.StatusNoTraceability,
		models.StatusFollowedWithPnttd, models.StatusAwaitingGroup,
		models.StatusResealed:
		return true
	}
	return false
}

// notify schedules the post-commit reindex signal. Best effort only.
func (s *Service) notify(ctx context.Context, readableID string) {
	if s.notifier == nil || readableID == "" {
		return
	}
	s.notifier.NotifyChanged(ctx, readableID)
}

// translateStoreErr maps infrastructure sentinels onto caller-facing codes.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "bordereau not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "the document was modified concurrently, retry the operation")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}
