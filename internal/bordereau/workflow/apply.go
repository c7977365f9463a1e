package workflow

import (
	"time"

	"wastetrack/internal/bordereau/models"
)

// Apply copies the event's inputs onto the form. It runs only after the
// machine resolved a next status, so the engine never persists a partially
// mutated document.
func Apply(f *models.Form, event Event, p Params, now time.Time) {
	switch event {
	case EventSignedByProducer:
		f.SignedAt = timeOr(p.SignedAt, now)

	case EventSignedByTransporter, EventMarkAsSent:
		f.SentAt = timeOr(p.SentAt, now)
		// Sending records the takeover of the first leg. Any later leg keeps
		// blocking reception until its own takeover is recorded.
		if t := f.FirstTransporter(); t != nil && t.TakenOverAt == nil {
			t.TakenOverAt = timeOr(p.SentAt, now)
			t.TakenOverBy = p.SignedBy
		}

	case EventMarkAsReceived:
		f.ReceivedAt = timeOr(p.ReceivedAt, now)
		f.ReceivedBy = p.ReceivedBy
		f.QuantityReceived = p.QuantityReceived
		f.QuantityRefused = p.QuantityRefused
		f.WasteAcceptationStatus = p.WasteAcceptationStatus
		f.WasteRefusalReason = p.WasteRefusalReason
		if p.WasteAcceptationStatus != "" {
			f.SignedAt = timeOr(p.SignedAt, now)
		}

	case EventMarkAsAccepted:
		f.SignedAt = timeOr(p.SignedAt, now)
		f.QuantityReceived = p.QuantityReceived
		f.QuantityRefused = p.QuantityRefused
		f.WasteAcceptationStatus = p.WasteAcceptationStatus
		f.WasteRefusalReason = p.WasteRefusalReason

	case EventMarkAsProcessed:
		f.ProcessedAt = timeOr(p.ProcessedAt, now)
		f.ProcessingOperationDone = p.ProcessingOperationDone
		f.ProcessingOperationDesc = p.ProcessingOperationDesc
		f.DestinationOperationMode = p.DestinationOperationMode
		if p.NoTraceability != nil {
			f.NoTraceability = *p.NoTraceability
		}
		if p.NextDestinationProcessingOperation != "" {
			f.NextDestinationProcessingOperation = p.NextDestinationProcessingOperation
		}

	case EventMarkAsTempStored:
		if f.TempStorage != nil {
			f.TempStorage.TemporaryStorerReceivedAt = timeOr(p.ReceivedAt, now)
			f.TempStorage.TemporaryStorerReceivedBy = p.ReceivedBy
			f.TempStorage.TemporaryStorerQuantityReceived = p.QuantityReceived
			f.TempStorage.TemporaryStorerAcceptationStatus = p.WasteAcceptationStatus
			f.TempStorage.TemporaryStorerWasteRefusalReason = p.WasteRefusalReason
		}

	case EventMarkAsTempStorerAccepted:
		if f.TempStorage != nil {
			f.TempStorage.TemporaryStorerAcceptationStatus = p.WasteAcceptationStatus
			f.TempStorage.TemporaryStorerWasteRefusalReason = p.WasteRefusalReason
		}
		if !p.WasteAcceptationStatus.Accepted() {
			f.WasteAcceptationStatus = p.WasteAcceptationStatus
			f.WasteRefusalReason = p.WasteRefusalReason
		}

	case EventSignedByTempStorer, EventMarkAsResent:
		f.SentAt = timeOr(p.SentAt, now)

	case EventMarkAsSealed, EventMarkAsResealed, EventMarkAsGrouped:
		// Nothing beyond the status itself.
	}
}

func timeOr(t *time.Time, fallback time.Time) *time.Time {
	if t != nil {
		return t
	}
	return &fallback
}
