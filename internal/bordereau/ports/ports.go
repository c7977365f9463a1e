// Package ports defines shared interfaces for the bordereau module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
)

// Store is the transactional document store. Every method participates in the
// transaction carried by ctx when one is open; RunInTx opens one and is
// reentrant, so composed operations share a single commit.
type Store interface {
	// RunInTx executes fn inside one transaction. A nested call joins the
	// transaction already carried by ctx instead of opening another.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateForm(ctx context.Context, f *models.Form) error
	// FindForm hydrates the satellite records guards need: transport legs and
	// the temporary-storage detail.
	FindForm(ctx context.Context, id uuid.UUID) (*models.Form, error)
	FindFormByReadableID(ctx context.Context, readableID string) (*models.Form, error)
	// FindFormForUpdate locks the document row for the open transaction so
	// concurrent transitions on the same document serialize.
	FindFormForUpdate(ctx context.Context, id uuid.UUID) (*models.Form, error)
	// UpdateForm persists the document and its satellite records (transport
	// legs, temp-storage detail when present), rejecting stale versions with
	// sentinel.ErrConflict, and keeps the denormalized party set in sync.
	UpdateForm(ctx context.Context, f *models.Form) error
	// DeleteForm soft-deletes; a bordereau never physically disappears once
	// it has left DRAFT.
	DeleteForm(ctx context.Context, id uuid.UUID) error
	UpdateTempStorage(ctx context.Context, d *models.TempStorageDetail) error

	AppendStatusLog(ctx context.Context, entry *models.StatusLog) error
	ListStatusLogs(ctx context.Context, formID uuid.UUID) ([]models.StatusLog, error)

	// GroupementsByNextForm lists links aggregated by a container.
	GroupementsByNextForm(ctx context.Context, nextFormID uuid.UUID) ([]models.Groupement, error)
	// GroupementsByInitialForm lists every container link of a sub-document.
	GroupementsByInitialForm(ctx context.Context, initialFormID uuid.UUID) ([]models.Groupement, error)
	UpsertGroupement(ctx context.Context, link *models.Groupement) error
	DeleteGroupement(ctx context.Context, initialFormID, nextFormID uuid.UUID) error

	CreateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error
	// FindRevisionRequest hydrates the approvals fan-out.
	FindRevisionRequest(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error)
	// FindRevisionRequestForUpdate locks the request row so the
	// count-remaining-then-merge sequence is atomic across sibling approvals.
	FindRevisionRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error)
	CountPendingRevisionRequests(ctx context.Context, formID uuid.UUID) (int, error)
	UpdateRevisionRequestStatus(ctx context.Context, id uuid.UUID, status models.RevisionRequestStatus) error
	// DeleteRevisionRequest removes the request and cascades to its approvals.
	DeleteRevisionRequest(ctx context.Context, id uuid.UUID) error

	FindApproval(ctx context.Context, id uuid.UUID) (*models.RevisionApproval, error)
	UpdateApprovalStatus(ctx context.Context, id uuid.UUID, status models.RevisionApprovalStatus, comment string) error
	CountPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) (int, error)
	// CancelPendingApprovals flips every still-pending sibling to CANCELED.
	CancelPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) error
}

// Notifier is the post-commit reindex signal: at-least-once, fire-and-forget,
// keyed by the human-readable reference. Failures are logged and never
// propagate back into the core.
type Notifier interface {
	NotifyChanged(ctx context.Context, readableID string)
}

// SecurityCodeVerifier checks a signature security code against the company
// that owns it. Company management lives outside the core.
type SecurityCodeVerifier interface {
	Verify(ctx context.Context, companySiret string, code int) error
}
