package models

// Status is the lifecycle state of a bordereau. Values match the wire/database
// representation used across the platform.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusSealed             Status = "SEALED"
	StatusSignedByProducer   Status = "SIGNED_BY_PRODUCER"
	StatusSent               Status = "SENT"
	StatusReceived           Status = "RECEIVED"
	StatusAccepted           Status = "ACCEPTED"
	StatusProcessed          Status = "PROCESSED"
	StatusFollowedWithPnttd  Status = "FOLLOWED_WITH_PNTTD"
	StatusAwaitingGroup      Status = "AWAITING_GROUP"
	StatusGrouped            Status = "GROUPED"
	StatusNoTraceability     Status = "NO_TRACEABILITY"
	StatusRefused            Status = "REFUSED"
	StatusTempStored         Status = "TEMP_STORED"
	StatusTempStorerAccepted Status = "TEMP_STORER_ACCEPTED"
	StatusSignedByTempStorer Status = "SIGNED_BY_TEMP_STORER"
	StatusResealed           Status = "RESEALED"
	StatusResent             Status = "RESENT"
	StatusCanceled           Status = "CANCELED"
)

// IsTerminal reports whether a bordereau can never leave this status through
// the workflow. GROUPED still advances to PROCESSED with its container, so it
// is not terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProcessed, StatusFollowedWithPnttd, StatusNoTraceability, StatusRefused, StatusCanceled:
		return true
	}
	return false
}

// AtLeastSealed reports whether the bordereau has left the editable phase.
// Used by the appendix-2 "grouped" recomputation: a sub-document only counts
// as grouped once every container holding it has been sealed.
func (s Status) AtLeastSealed() bool {
	return s != StatusDraft
}

// WasteAcceptationStatus records the destination's acceptance decision.
type WasteAcceptationStatus string

const (
	WasteAccepted         WasteAcceptationStatus = "ACCEPTED"
	WasteRefused          WasteAcceptationStatus = "REFUSED"
	WastePartiallyRefused WasteAcceptationStatus = "PARTIALLY_REFUSED"
)

// Accepted reports whether the decision routes the bordereau onto the accepted
// branch of the workflow. Anything other than a full or partial acceptance
// routes to REFUSED.
func (w WasteAcceptationStatus) Accepted() bool {
	return w == WasteAccepted || w == WastePartiallyRefused
}

// EmitterType distinguishes ordinary bordereaux from grouping containers.
type EmitterType string

const (
	EmitterTypeProducer          EmitterType = "PRODUCER"
	EmitterTypeAppendix1         EmitterType = "APPENDIX1"
	EmitterTypeAppendix1Producer EmitterType = "APPENDIX1_PRODUCER"
	EmitterTypeAppendix2         EmitterType = "APPENDIX2"
)

// RevisionRequestStatus is the lifecycle state of a revision request.
type RevisionRequestStatus string

const (
	RevisionRequestPending  RevisionRequestStatus = "PENDING"
	RevisionRequestAccepted RevisionRequestStatus = "ACCEPTED"
	RevisionRequestRefused  RevisionRequestStatus = "REFUSED"
)

// RevisionApprovalStatus is the state of one counterparty's approval.
type RevisionApprovalStatus string

const (
	RevisionApprovalPending  RevisionApprovalStatus = "PENDING"
	RevisionApprovalAccepted RevisionApprovalStatus = "ACCEPTED"
	RevisionApprovalRefused  RevisionApprovalStatus = "REFUSED"
	RevisionApprovalCanceled RevisionApprovalStatus = "CANCELED"
)
