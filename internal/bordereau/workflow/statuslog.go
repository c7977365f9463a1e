package workflow

import (
	"time"

	"wastetrack/internal/bordereau/models"
)

// loggedFields is the per-event whitelist of fields recorded in the status
// log diff. Keeping it a static map avoids silent drift between events and
// their logged fields.
var loggedFields = map[Event][]string{
	EventMarkAsSealed:        {},
	EventSignedByProducer:    {"signedAt", "signedBy"},
	EventSignedByTransporter: {"sentAt", "signedBy"},
	EventMarkAsSent:          {"sentAt"},
	EventMarkAsReceived: {
		"receivedAt", "receivedBy", "quantityReceived", "quantityRefused",
		"wasteAcceptationStatus", "wasteRefusalReason",
	},
	EventMarkAsAccepted: {
		"signedAt", "quantityReceived", "quantityRefused",
		"wasteAcceptationStatus", "wasteRefusalReason",
	},
	EventMarkAsProcessed: {
		"processedAt", "processingOperationDone", "processingOperationDescription",
		"destinationOperationMode", "noTraceability",
	},
	EventMarkAsTempStored: {
		"temporaryStorerReceivedAt", "temporaryStorerReceivedBy",
		"temporaryStorerQuantityReceived", "temporaryStorerAcceptationStatus",
	},
	EventMarkAsTempStorerAccepted: {
		"temporaryStorerAcceptationStatus", "temporaryStorerWasteRefusalReason",
	},
	EventMarkAsResealed:     {},
	EventSignedByTempStorer: {"signedAt", "signedBy"},
	EventMarkAsResent:       {"sentAt"},
	EventMarkAsGrouped:      {},
}

// loggedDiff builds the sparse status-log diff for an event from the applied
// parameters. Only whitelisted fields appear; absent inputs are omitted rather
// than logged as nulls.
func loggedDiff(event Event, f *models.Form, p Params) map[string]any {
	fields, ok := loggedFields[event]
	if !ok || len(fields) == 0 {
		return nil
	}

	values := map[string]func() (any, bool){
		"signedAt":         func() (any, bool) { return derefTime(p.SignedAt) },
		"signedBy":         func() (any, bool) { return p.SignedBy, p.SignedBy != "" },
		"sentAt":           func() (any, bool) { return derefTime(p.SentAt) },
		"receivedAt":       func() (any, bool) { return derefTime(p.ReceivedAt) },
		"receivedBy":       func() (any, bool) { return p.ReceivedBy, p.ReceivedBy != "" },
		"quantityReceived": func() (any, bool) { return derefFloat(p.QuantityReceived) },
		"quantityRefused":  func() (any, bool) { return derefFloat(p.QuantityRefused) },
		"wasteAcceptationStatus": func() (any, bool) {
			return string(p.WasteAcceptationStatus), p.WasteAcceptationStatus != ""
		},
		"wasteRefusalReason": func() (any, bool) { return p.WasteRefusalReason, p.WasteRefusalReason != "" },
		"processedAt":        func() (any, bool) { return derefTime(p.ProcessedAt) },
		"processingOperationDone": func() (any, bool) {
			return p.ProcessingOperationDone, p.ProcessingOperationDone != ""
		},
		"processingOperationDescription": func() (any, bool) {
			return p.ProcessingOperationDesc, p.ProcessingOperationDesc != ""
		},
		"destinationOperationMode": func() (any, bool) {
			if p.DestinationOperationMode == nil {
				return nil, false
			}
			return *p.DestinationOperationMode, true
		},
		"noTraceability": func() (any, bool) {
			if p.NoTraceability == nil {
				return nil, false
			}
			return *p.NoTraceability, true
		},
		"temporaryStorerReceivedAt":       func() (any, bool) { return derefTime(p.ReceivedAt) },
		"temporaryStorerReceivedBy":       func() (any, bool) { return p.ReceivedBy, p.ReceivedBy != "" },
		"temporaryStorerQuantityReceived": func() (any, bool) { return derefFloat(p.QuantityReceived) },
		"temporaryStorerAcceptationStatus": func() (any, bool) {
			return string(p.WasteAcceptationStatus), p.WasteAcceptationStatus != ""
		},
		"temporaryStorerWasteRefusalReason": func() (any, bool) {
			return p.WasteRefusalReason, p.WasteRefusalReason != ""
		},
	}

	diff := make(map[string]any, len(fields))
	for _, name := range fields {
		if get, ok := values[name]; ok {
			if v, present := get(); present {
				diff[name] = v
			}
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

func derefTime(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return *t, true
}

func derefFloat(f *float64) (any, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}
