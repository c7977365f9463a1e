package workflow

import (
	"time"

	"wastetrack/internal/bordereau/models"
)

// Event identifies a caller-requested transition.
type Event string

const (
	EventMarkAsSealed             Event = "MARK_AS_SEALED"
	EventSignedByProducer         Event = "SIGNED_BY_PRODUCER"
	EventSignedByTransporter      Event = "SIGNED_BY_TRANSPORTER"
	EventMarkAsSent               Event = "MARK_AS_SENT"
	EventMarkAsReceived           Event = "MARK_AS_RECEIVED"
	EventMarkAsAccepted           Event = "MARK_AS_ACCEPTED"
	EventMarkAsProcessed          Event = "MARK_AS_PROCESSED"
	EventMarkAsTempStored         Event = "MARK_AS_TEMP_STORED"
	EventMarkAsTempStorerAccepted Event = "MARK_AS_TEMP_STORER_ACCEPTED"
	EventMarkAsResealed           Event = "MARK_AS_RESEALED"
	EventSignedByTempStorer       Event = "SIGNED_BY_TEMP_STORER"
	EventMarkAsResent             Event = "MARK_AS_RESENT"
	EventMarkAsGrouped            Event = "MARK_AS_GROUPED"
)

// Params carries the event-specific inputs. Which fields matter depends on the
// event; Apply copies the relevant subset onto the form.
type Params struct {
	SignedBy string
	SignedAt *time.Time
	SentAt   *time.Time

	ReceivedAt *time.Time
	ReceivedBy string

	QuantityReceived       *float64
	QuantityRefused        *float64
	WasteAcceptationStatus models.WasteAcceptationStatus
	WasteRefusalReason     string

	ProcessedAt              *time.Time
	ProcessingOperationDone  string
	ProcessingOperationDesc  string
	DestinationOperationMode *string
	NoTraceability           *bool

	NextDestinationProcessingOperation string

	// SecurityCode is checked against the holder company's code on
	// transporter and temp-storer sign-offs.
	SecurityCode int
}
