package appendix

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/workflow"
	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/requestcontext"
)

// SetAppendix1 replaces the set of sub-documents aggregated by a collection
// round container. Draft children are sealed first; the call fails whole if
// any of them fails the sealing validation. Container-owned fields are then
// force-copied down onto every child of the new set, links absent from the new
// set are removed, and new links are created.
func (m *Manager) SetAppendix1(ctx context.Context, containerID uuid.UUID, newFractions []Fraction) error {
	var touched []string

	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		container, err := m.store.FindFormForUpdate(ctx, containerID)
		if err != nil {
			return err
		}
		if container.EmitterType != models.EmitterTypeAppendix1 {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"bordereau %s is not an appendix 1 container", container.ReadableID)
		}

		current, err := m.store.GroupementsByNextForm(ctx, container.ID)
		if err != nil {
			return err
		}

		wanted := make(map[uuid.UUID]float64, len(newFractions))
		for _, fr := range newFractions {
			wanted[fr.FormID] = fr.Quantity
		}

		// Unlink children removed from the round.
		for _, link := range current {
			if _, keep := wanted[link.InitialFormID]; keep {
				continue
			}
			if err := m.store.DeleteGroupement(ctx, link.InitialFormID, container.ID); err != nil {
				return err
			}
		}

		for _, fr := range newFractions {
			child, err := m.store.FindFormForUpdate(ctx, fr.FormID)
			if err != nil {
				return fmt.Errorf("load appendix 1 form %s: %w", fr.FormID, err)
			}

			if child.Status == models.StatusDraft {
				in := workflow.GuardInput{Form: child}
				next, err := workflow.Resolve(in, workflow.EventMarkAsSealed)
				if err != nil {
					return fmt.Errorf("seal appendix 1 form %s: %w", child.ReadableID, err)
				}
				if err := m.setChildStatus(ctx, child, next, nil); err != nil {
					return err
				}
			}

			copyContainerFields(container, child)
			child.UpdatedAt = requestcontext.Now(ctx)
			if err := m.store.UpdateForm(ctx, child); err != nil {
				return err
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

// copyContainerFields forces the container-owned fields down onto an
// appendix-1 child. These fields are not independently editable on the child.
func copyContainerFields(container, child *models.Form) {
	child.WasteDetailsCode = container.WasteDetailsCode
	child.WasteDetailsName = container.WasteDetailsName
	child.WasteDetailsIsDangerous = container.WasteDetailsIsDangerous
	child.RecipientCompanySiret = container.RecipientCompanySiret
	child.RecipientCompanyName = container.RecipientCompanyName
	// The recipient is the container's, so the temp-storage flag must follow
	// it; a stale flag on the child would reroute its reception events.
	child.RecipientIsTempStorage = container.RecipientIsTempStorage
	child.EcoOrganismeSiret = container.EcoOrganismeSiret
	child.EcoOrganismeName = container.EcoOrganismeName

	if containerLeg := container.FirstTransporter(); containerLeg != nil {
		leg := models.Transporter{
			ID:           uuid.New(),
			FormID:       child.ID,
			Number:       1,
			CompanySiret: containerLeg.CompanySiret,
			CompanyName:  containerLeg.CompanyName,
		}
		if existing := child.FirstTransporter(); existing != nil {
			leg.ID = existing.ID
			leg.TakenOverAt = existing.TakenOverAt
			leg.TakenOverBy = existing.TakenOverBy
		}
		replaced := false
		for i := range child.Transporters {
			if child.Transporters[i].Number == 1 {
				child.Transporters[i] = leg
				replaced = true
				break
			}
		}
		if !replaced {
			child.Transporters = append(child.Transporters, leg)
		}
	}
}

// UpdateAppendix1Forms propagates a container status advance onto its
// appendix-1 children. Children that never entered the logistics chain are
// deleted and unlinked; children already on the road mirror the container.
// The container cannot be partially accepted, so the carried-over acceptance
// outcome is uniform across children.
func (m *Manager) UpdateAppendix1Forms(ctx context.Context, container *models.Form) ([]string, error) {
	links, err := m.store.GroupementsByNextForm(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	var touched []string
	for _, link := range links {
		child, err := m.store.FindFormForUpdate(ctx, link.InitialFormID)
		if err != nil {
			return nil, fmt.Errorf("load appendix 1 form %s: %w", link.InitialFormID, err)
		}

		switch child.Status {
		case models.StatusDraft, models.StatusSealed, models.StatusSignedByProducer:
			// Never picked up: drop it from the round instead of advancing a
			// document that never entered the logistics chain.
			if err := m.store.DeleteGroupement(ctx, child.ID, container.ID); err != nil {
				return nil, err
			}
			if err := m.store.DeleteForm(ctx, child.ID); err != nil {
				return nil, err
			}
			touched = append(touched, child.ReadableID)
			continue
		}

		if child.Status.IsTerminal() {
			continue
		}

		event, params, err := appendix1ChildEvent(container, child)
		if err != nil {
			return nil, err
		}
		if event == "" {
			continue
		}

		in := workflow.GuardInput{Form: child, Params: params}
		next, err := workflow.Resolve(in, event)
		if err != nil {
			return nil, fmt.Errorf("propagate %s to appendix 1 form %s: %w", container.Status, child.ReadableID, err)
		}
		workflow.Apply(child, event, params, requestcontext.Now(ctx))
		if err := m.setChildStatus(ctx, child, next, nil); err != nil {
			return nil, err
		}
		touched = append(touched, child.ReadableID)
	}
	return touched, nil
}

// appendix1ChildEvent maps the container's status onto the event a child must
// attempt. A container status outside the mapped set is a programming defect
// and fails loudly rather than silently losing the child's state.
func appendix1ChildEvent(container, child *models.Form) (workflow.Event, workflow.Params, error) {
	switch container.Status {
	case models.StatusReceived:
		return workflow.EventMarkAsReceived, workflow.Params{
			ReceivedAt: container.ReceivedAt,
			ReceivedBy: container.ReceivedBy,
		}, nil

	case models.StatusAccepted, models.StatusRefused:
		p := workflow.Params{
			ReceivedAt:             container.ReceivedAt,
			ReceivedBy:             container.ReceivedBy,
			WasteAcceptationStatus: container.WasteAcceptationStatus,
			WasteRefusalReason:     container.WasteRefusalReason,
			QuantityReceived:       child.WasteDetailsQuantity,
		}
		if child.Status == models.StatusReceived {
			return workflow.EventMarkAsAccepted, p, nil
		}
		return workflow.EventMarkAsReceived, p, nil

	case models.StatusProcessed, models.StatusNoTraceability,
		models.StatusFollowedWithPnttd, models.StatusAwaitingGroup,
		models.StatusResealed:
		noTraceability := container.NoTraceability
		return workflow.EventMarkAsProcessed, workflow.Params{
			ProcessedAt:             container.ProcessedAt,
			ProcessingOperationDone: container.ProcessingOperationDone,
			ProcessingOperationDesc: container.ProcessingOperationDesc,
			NoTraceability:          &noTraceability,
		}, nil

	default:
		return "", workflow.Params{}, dErrors.Newf(dErrors.CodeInternal,
			"no appendix 1 propagation is defined for container status %s, this is a bug", container.Status)
	}
}
