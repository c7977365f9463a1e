package revision

import (
	"context"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/requestcontext"
)

// statuses past the point of no return for cancellation: once the waste has
// been received, the paper trail must survive.
func cancellable(s models.Status) bool {
	switch s {
	case models.StatusSealed, models.StatusSignedByProducer, models.StatusSent,
		models.StatusSignedByTempStorer, models.StatusResealed, models.StatusResent:
		return true
	}
	return false
}

// merge applies the request's non-nil diff fields to the live document. This
// is the only code path through which a revision ever reaches the document,
// and it runs at most once per request, inside the caller's transaction.
func (s *Service) merge(ctx context.Context, request *models.RevisionRequest, f *models.Form) error {
	c := request.Content
	changed := map[string]any{}

	if c.IsCanceled != nil && *c.IsCanceled {
		if !cancellable(f.Status) {
			return dErrors.Newf(dErrors.CodeForbidden,
				"bordereau %s cannot be canceled in status %s", f.ReadableID, f.Status)
		}
		f.Status = models.StatusCanceled
		changed["status"] = string(models.StatusCanceled)
	}

	if c.RecipientCap != nil {
		f.RecipientCap = *c.RecipientCap
		changed["recipientCap"] = *c.RecipientCap
	}
	if c.WasteDetailsCode != nil {
		f.WasteDetailsCode = *c.WasteDetailsCode
		changed["wasteDetailsCode"] = *c.WasteDetailsCode
	}
	if c.WasteDetailsName != nil {
		f.WasteDetailsName = *c.WasteDetailsName
		changed["wasteDetailsName"] = *c.WasteDetailsName
	}
	if c.WasteDetailsPop != nil {
		f.WasteDetailsPop = *c.WasteDetailsPop
		changed["wasteDetailsPop"] = *c.WasteDetailsPop
	}
	if c.WasteDetailsQuantity != nil {
		f.WasteDetailsQuantity = ptr(*c.WasteDetailsQuantity)
		changed["wasteDetailsQuantity"] = *c.WasteDetailsQuantity
	}
	if c.QuantityReceived != nil {
		f.QuantityReceived = ptr(*c.QuantityReceived)
		changed["quantityReceived"] = *c.QuantityReceived
	}
	if c.QuantityRefused != nil {
		f.QuantityRefused = ptr(*c.QuantityRefused)
		changed["quantityRefused"] = *c.QuantityRefused
	}
	if c.WasteAcceptationStatus != nil {
		f.WasteAcceptationStatus = *c.WasteAcceptationStatus
		changed["wasteAcceptationStatus"] = string(*c.WasteAcceptationStatus)
	}
	if c.WasteRefusalReason != nil {
		f.WasteRefusalReason = *c.WasteRefusalReason
		changed["wasteRefusalReason"] = *c.WasteRefusalReason
	}
	if c.ProcessingOperationDone != nil {
		f.ProcessingOperationDone = *c.ProcessingOperationDone
		changed["processingOperationDone"] = *c.ProcessingOperationDone
		recomputeProcessedStatus(f, changed)
	}
	if c.ProcessingOperationDesc != nil {
		f.ProcessingOperationDesc = *c.ProcessingOperationDesc
		changed["processingOperationDesc"] = *c.ProcessingOperationDesc
	}
	if c.TraderCompanySiret != nil {
		f.TraderCompanySiret = *c.TraderCompanySiret
		changed["traderCompanySiret"] = *c.TraderCompanySiret
	}
	if c.TraderCompanyName != nil {
		f.TraderCompanyName = *c.TraderCompanyName
		changed["traderCompanyName"] = *c.TraderCompanyName
	}
	if c.BrokerCompanySiret != nil {
		f.BrokerCompanySiret = *c.BrokerCompanySiret
		changed["brokerCompanySiret"] = *c.BrokerCompanySiret
	}
	if c.BrokerCompanyName != nil {
		f.BrokerCompanyName = *c.BrokerCompanyName
		changed["brokerCompanyName"] = *c.BrokerCompanyName
	}

	if err := s.store.UpdateForm(ctx, f); err != nil {
		return translateStoreErr(err)
	}

	if ts := c.TempStorage; ts != nil {
		if f.TempStorage == nil {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"bordereau %s has no temporary-storage detail to revise", f.ReadableID)
		}
		detail := f.TempStorage
		if ts.TemporaryStorerQuantityReceived != nil {
			detail.TemporaryStorerQuantityReceived = ptr(*ts.TemporaryStorerQuantityReceived)
			changed["temporaryStorerQuantityReceived"] = *ts.TemporaryStorerQuantityReceived
		}
		if ts.DestinationCap != nil {
			detail.DestinationCap = *ts.DestinationCap
			changed["temporaryStorageDestinationCap"] = *ts.DestinationCap
		}
		if ts.DestinationProcessingOperation != nil {
			detail.DestinationProcessingOperation = *ts.DestinationProcessingOperation
			changed["temporaryStorageDestinationProcessingOperation"] = *ts.DestinationProcessingOperation
		}
		if err := s.store.UpdateTempStorage(ctx, detail); err != nil {
			return translateStoreErr(err)
		}
	}

	actor := requestcontext.ActorFrom(ctx)
	entry := &models.StatusLog{
		ID:            uuid.New(),
		FormID:        f.ID,
		UserID:        actor.UserID,
		AuthType:      actor.AuthType,
		Status:        f.Status,
		LoggedAt:      requestcontext.Now(ctx),
		UpdatedFields: changed,
	}
	return translateStoreErr(s.store.AppendStatusLog(ctx, entry))
}

// recomputeProcessedStatus moves a settled document between PROCESSED and
// AWAITING_GROUP when a revision rewrites the processing operation across the
// grouping boundary.
func recomputeProcessedStatus(f *models.Form, changed map[string]any) {
	switch f.Status {
	case models.StatusProcessed:
		if models.IsGroupingOperation(f.ProcessingOperationDone) {
			f.Status = models.StatusAwaitingGroup
			changed["status"] = string(models.StatusAwaitingGroup)
		}
	case models.StatusAwaitingGroup:
		if models.IsFinalOperation(f.ProcessingOperationDone) {
			f.Status = models.StatusProcessed
			changed["status"] = string(models.StatusProcessed)
		}
	}
}

func ptr[T any](v T) *T { return &v }
