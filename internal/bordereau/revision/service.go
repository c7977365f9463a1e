// Package revision implements the correction workflow: a counterparty
// proposes a partial diff against a live bordereau, every other company on the
// document approves or refuses, and a unanimously approved diff is merged
// exactly once.
package revision

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/metrics"
	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/ports"
	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/platform/sentinel"
	"wastetrack/pkg/requestcontext"
)

// Decision is an approver's verdict on a revision request.
type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionRefuse Decision = "REFUSE"
)

// Service sequences the revision lifecycle. The count-remaining-then-merge
// sequence runs under a lock on the parent request so exactly one of two
// concurrent last-approvers performs the merge.
type Service struct {
	store    ports.Store
	notifier ports.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the post-commit reindex notifier.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a revision Service backed by the given store.
func New(store ports.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statuses on which a revision request cannot be opened: the document either
// has not entered the tracked lifecycle or has left it.
func revisable(s models.Status) bool {
	switch s {
	case models.StatusDraft, models.StatusSealed,
		models.StatusRefused, models.StatusCanceled:
		return false
	}
	return true
}

// Create opens a revision request and fans out one approval per required
// approver. An empty approver set auto-approves: the diff merges immediately
// and the request is returned already ACCEPTED.
func (s *Service) Create(ctx context.Context, formID uuid.UUID, authorSiret, comment string, content models.RevisionContent, approverSirets []string) (*models.RevisionRequest, error) {
	if content.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a revision must modify at least one field")
	}

	var (
		request  *models.RevisionRequest
		readable string
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.store.FindFormForUpdate(ctx, formID)
		if err != nil {
			return translateStoreErr(err)
		}
		if f.IsDeleted {
			return dErrors.New(dErrors.CodeNotFound, "bordereau not found")
		}
		if !revisable(f.Status) {
			return dErrors.Newf(dErrors.CodeForbidden,
				"bordereau %s cannot be revised in status %s", f.ReadableID, f.Status)
		}

		pending, err := s.store.CountPendingRevisionRequests(ctx, f.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return dErrors.Newf(dErrors.CodeConflict,
				"a revision of bordereau %s is already pending", f.ReadableID)
		}

		request = &models.RevisionRequest{
			ID:                    uuid.New(),
			FormID:                f.ID,
			AuthoringCompanySiret: authorSiret,
			Status:                models.RevisionRequestPending,
			Comment:               comment,
			Content:               content,
			CreatedAt:             requestcontext.Now(ctx),
		}
		for _, siret := range approverSirets {
			request.Approvals = append(request.Approvals, models.RevisionApproval{
				ID:                uuid.New(),
				RevisionRequestID: request.ID,
				ApproverSiret:     siret,
				Status:            models.RevisionApprovalPending,
			})
		}
		if err := s.store.CreateRevisionRequest(ctx, request); err != nil {
			return translateStoreErr(err)
		}

		// Nobody to ask: the author's own correction applies immediately.
		if len(request.Approvals) == 0 {
			if err := s.merge(ctx, request, f); err != nil {
				return err
			}
			request.Status = models.RevisionRequestAccepted
			readable = f.ReadableID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if readable != "" {
		s.metrics.IncrementRevision("auto_approved")
		s.notify(ctx, readable)
	}
	return request, nil
}

// Cancel deletes a still-pending request. Only its author may cancel, and the
// target document is never touched.
func (s *Service) Cancel(ctx context.Context, requestID uuid.UUID, callerSiret string) error {
	return s.store.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.FindRevisionRequestForUpdate(ctx, requestID)
		if err != nil {
			return translateStoreErr(err)
		}
		if r.AuthoringCompanySiret != callerSiret {
			return dErrors.New(dErrors.CodeForbidden, "only the author may cancel a revision")
		}
		if r.Status != models.RevisionRequestPending {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"a %s revision can no longer be canceled", r.Status)
		}
		return translateStoreErr(s.store.DeleteRevisionRequest(ctx, r.ID))
	})
}

// SubmitApproval records one approver's verdict. A refusal settles the whole
// request; the last acceptance merges the diff into the live document.
func (s *Service) SubmitApproval(ctx context.Context, approvalID uuid.UUID, decision Decision, comment string) error {
	var (
		outcome  string
		readable string
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		approval, err := s.store.FindApproval(ctx, approvalID)
		if err != nil {
			return translateStoreErr(err)
		}

		// Lock the parent before re-reading the approval so concurrent
		// verdicts on siblings serialize here.
		request, err := s.store.FindRevisionRequestForUpdate(ctx, approval.RevisionRequestID)
		if err != nil {
			return translateStoreErr(err)
		}
		if request.Status != models.RevisionRequestPending {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"revision request is already %s", request.Status)
		}
		approval, err = s.store.FindApproval(ctx, approvalID)
		if err != nil {
			return translateStoreErr(err)
		}
		if approval.Status != models.RevisionApprovalPending {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"approval has already been settled as %s", approval.Status)
		}

		switch decision {
		case DecisionRefuse:
			if err := s.store.UpdateApprovalStatus(ctx, approval.ID, models.RevisionApprovalRefused, comment); err != nil {
				return err
			}
			if err := s.store.CancelPendingApprovals(ctx, request.ID); err != nil {
				return err
			}
			if err := s.store.UpdateRevisionRequestStatus(ctx, request.ID, models.RevisionRequestRefused); err != nil {
				return err
			}
			outcome = "refused"
			return nil

		case DecisionAccept:
			if err := s.store.UpdateApprovalStatus(ctx, approval.ID, models.RevisionApprovalAccepted, comment); err != nil {
				return err
			}
			remaining, err := s.store.CountPendingApprovals(ctx, request.ID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return nil
			}

			f, err := s.store.FindFormForUpdate(ctx, request.FormID)
			if err != nil {
				return translateStoreErr(err)
			}
			if err := s.merge(ctx, request, f); err != nil {
				return err
			}
			if err := s.store.UpdateRevisionRequestStatus(ctx, request.ID, models.RevisionRequestAccepted); err != nil {
				return err
			}
			outcome = "accepted"
			readable = f.ReadableID
			return nil

		default:
			return dErrors.Newf(dErrors.CodeBadRequest, "unknown decision %q", decision)
		}
	})
	if err != nil {
		return err
	}

	if outcome != "" {
		s.metrics.IncrementRevision(outcome)
	}
	if readable != "" {
		s.notify(ctx, readable)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, readableID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyChanged(ctx, readableID)
}

func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent modification, retry")
	default:
		return err
	}
}
