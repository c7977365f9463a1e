// Package appendix maintains the grouping relation between sub-bordereaux and
// the container documents that aggregate them: appendix 1 collects
// not-yet-picked-up documents into a collection round, appendix 2 collects
// already-processed documents for joint onward shipment.
package appendix

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/ports"
	"wastetrack/pkg/requestcontext"
)

// Fraction names one sub-document and the quantity attributed to the
// container. Appendix-1 quantities are provisional; appendix-2 quantities are
// bound by the conservation invariant.
type Fraction struct {
	FormID   uuid.UUID
	Quantity float64
}

// Manager implements the linkage operations and the status propagation hooks
// the workflow engine calls on container transitions.
type Manager struct {
	store    ports.Store
	notifier ports.Notifier
	logger   *slog.Logger
}

type Option func(*Manager)

func WithNotifier(n ports.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func New(store ports.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	m := &Manager{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// setChildStatus writes a child's new status with its audit record. Child
// flips driven by container activity are attributed to the acting identity
// when one is present, the system actor otherwise.
func (m *Manager) setChildStatus(ctx context.Context, child *models.Form, status models.Status, diff map[string]any) error {
	now := requestcontext.Now(ctx)
	child.Status = status
	child.UpdatedAt = now
	if err := m.store.UpdateForm(ctx, child); err != nil {
		return err
	}

	actor := requestcontext.ActorFrom(ctx)
	if actor.AuthType == "" {
		actor = requestcontext.System
	}
	return m.store.AppendStatusLog(ctx, &models.StatusLog{
		ID:            uuid.New(),
		FormID:        child.ID,
		UserID:        actor.UserID,
		AuthType:      actor.AuthType,
		Status:        status,
		LoggedAt:      now,
		UpdatedFields: diff,
	})
}

func (m *Manager) notify(ctx context.Context, readableIDs ...string) {
	if m.notifier == nil {
		return
	}
	for _, id := range readableIDs {
		if id != "" {
			m.notifier.NotifyChanged(ctx, id)
		}
	}
}
