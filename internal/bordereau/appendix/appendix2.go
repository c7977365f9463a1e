package appendix

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	dErrors "wastetrack/pkg/domain-errors"
)

// SetAppendix2 replaces the set of already-processed sub-documents aggregated
// by an onward-shipment container. Every upsert is checked against the
// quantity-conservation invariant: across all containers, a sub-document can
// never have more than its received quantity attributed.
func (m *Manager) SetAppendix2(ctx context.Context, containerID uuid.UUID, fractions []Fraction) error {
	var touched []string

	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		container, err := m.store.FindFormForUpdate(ctx, containerID)
		if err != nil {
			return err
		}
		if container.EmitterType != models.EmitterTypeAppendix2 {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"bordereau %s is not an appendix 2 container", container.ReadableID)
		}

		current, err := m.store.GroupementsByNextForm(ctx, container.ID)
		if err != nil {
			return err
		}

		wanted := make(map[uuid.UUID]float64, len(fractions))
		for _, fr := range fractions {
			wanted[fr.FormID] = fr.Quantity
		}

		// Remove links dropped from the set, rolling back the grouped flag of
		// the affected sub-documents.
		for _, link := range current {
			if _, keep := wanted[link.InitialFormID]; keep {
				continue
			}
			if err := m.store.DeleteGroupement(ctx, link.InitialFormID, container.ID); err != nil {
				return err
			}
			child, err := m.store.FindFormForUpdate(ctx, link.InitialFormID)
			if err != nil {
				return err
			}
			if child.Status == models.StatusGrouped {
				if err := m.setChildStatus(ctx, child, models.StatusAwaitingGroup, nil); err != nil {
					return err
				}
			}
			touched = append(touched, child.ReadableID)
		}

		for _, fr := range fractions {
			child, err := m.store.FindFormForUpdate(ctx, fr.FormID)
			if err != nil {
				return fmt.Errorf("load appendix 2 form %s: %w", fr.FormID, err)
			}
			if child.Status != models.StatusAwaitingGroup && child.Status != models.StatusGrouped {
				return dErrors.Newf(dErrors.CodeBadRequest,
					"bordereau %s is not awaiting grouping", child.ReadableID)
			}
			if child.QuantityReceived == nil {
				return dErrors.Newf(dErrors.CodeBadRequest,
					"bordereau %s has no received quantity", child.ReadableID)
			}
			if fr.Quantity <= 0 {
				return dErrors.Newf(dErrors.CodeBadRequest,
					"the quantity grouped from bordereau %s must be positive", child.ReadableID)
			}

			// Conservation check across the child's other containers.
			committed, err := m.committedElsewhere(ctx, child.ID, container.ID)
			if err != nil {
				return err
			}
			if remaining := *child.QuantityReceived - committed; fr.Quantity > remaining {
				return &QuantityExceededError{
					ReadableID: child.ReadableID,
					Requested:  fr.Quantity,
					Remaining:  remaining,
				}
			}

			link := &models.Groupement{
				ID:            uuid.New(),
				InitialFormID: child.ID,
				NextFormID:    container.ID,
				Quantity:      fr.Quantity,
			}
			if err := m.store.UpsertGroupement(ctx, link); err != nil {
				return err
			}

			if _, err := m.recomputeGrouped(ctx, child); err != nil {
				return err
			}
			touched = append(touched, child.ReadableID)
		}

		touched = append(touched, container.ReadableID)
		return nil
	})
	if err != nil {
		return err
	}

	m.notify(ctx, touched...)
	return nil
}

// committedElsewhere sums the quantities a sub-document already has attributed
// to containers other than the one being edited.
func (m *Manager) committedElsewhere(ctx context.Context, initialFormID, excludeNextFormID uuid.UUID) (float64, error) {
	links, err := m.store.GroupementsByInitialForm(ctx, initialFormID)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, link := range links {
		if link.NextFormID == excludeNextFormID {
			continue
		}
		sum += link.Quantity
	}
	return sum, nil
}

// recomputeGrouped flips a sub-document between AWAITING_GROUP and GROUPED.
// It reaches GROUPED iff every linking container is at least sealed and the
// cumulative grouped quantity equals its received quantity.
func (m *Manager) recomputeGrouped(ctx context.Context, child *models.Form) (bool, error) {
	if child.QuantityReceived == nil {
		return false, nil
	}

	links, err := m.store.GroupementsByInitialForm(ctx, child.ID)
	if err != nil {
		return false, err
	}

	var total float64
	allSealed := true
	for _, link := range links {
		total += link.Quantity
		container, err := m.store.FindForm(ctx, link.NextFormID)
		if err != nil {
			return false, err
		}
		if !container.Status.AtLeastSealed() {
			allSealed = false
		}
	}

	grouped := len(links) > 0 && allSealed && total == *child.QuantityReceived

	switch {
	case grouped && child.Status == models.StatusAwaitingGroup:
		return true, m.setChildStatus(ctx, child, models.StatusGrouped, nil)
	case !grouped && child.Status == models.StatusGrouped:
		return true, m.setChildStatus(ctx, child, models.StatusAwaitingGroup, nil)
	default:
		return false, nil
	}
}

// OnContainerSealed is invoked by the workflow engine when a container enters
// SEALED or SENT: sub-documents whose full received quantity is now held by
// sealed containers flip to GROUPED atomically with the container transition.
func (m *Manager) OnContainerSealed(ctx context.Context, container *models.Form) ([]string, error) {
	if container.EmitterType != models.EmitterTypeAppendix2 {
		return nil, nil
	}
	links, err := m.store.GroupementsByNextForm(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	var touched []string
	for _, link := range links {
		child, err := m.store.FindFormForUpdate(ctx, link.InitialFormID)
		if err != nil {
			return nil, err
		}
		changed, err := m.recomputeGrouped(ctx, child)
		if err != nil {
			return nil, err
		}
		if changed {
			touched = append(touched, child.ReadableID)
		}
	}
	return touched, nil
}

// OnContainerReceived cascades grouped sub-documents to PROCESSED once the
// container has been received on the accepted branch: their grouping
// operation is complete when the regrouped shipment reaches its destination.
func (m *Manager) OnContainerReceived(ctx context.Context, container *models.Form) ([]string, error) {
	if container.EmitterType != models.EmitterTypeAppendix2 {
		return nil, nil
	}
	links, err := m.store.GroupementsByNextForm(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	var touched []string
	for _, link := range links {
		child, err := m.store.FindFormForUpdate(ctx, link.InitialFormID)
		if err != nil {
			return nil, err
		}
		if child.Status != models.StatusGrouped {
			continue
		}
		child.ProcessedAt = container.ReceivedAt
		if err := m.setChildStatus(ctx, child, models.StatusProcessed, nil); err != nil {
			return nil, err
		}
		touched = append(touched, child.ReadableID)
	}
	return touched, nil
}
