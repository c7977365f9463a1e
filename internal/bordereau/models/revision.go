package models

import (
	"time"

	"github.com/google/uuid"
)

// RevisionRequest is a proposed, partial correction to a bordereau that has
// already left DRAFT. It is immutable once it leaves PENDING.
type RevisionRequest struct {
	ID                    uuid.UUID
	FormID                uuid.UUID
	AuthoringCompanySiret string
	Status                RevisionRequestStatus
	Comment               string
	Content               RevisionContent
	CreatedAt             time.Time

	// Approvals is the fan-out of counterparty approvals, one per required
	// approver, created alongside the request.
	Approvals []RevisionApproval
}

// RevisionApproval is one counterparty's pending blessing of a revision
// request. It is mutated exactly once by its holder, or canceled collectively
// when a sibling refuses.
type RevisionApproval struct {
	ID                uuid.UUID
	RevisionRequestID uuid.UUID
	ApproverSiret     string
	Status            RevisionApprovalStatus
	Comment           string
}

// RevisionContent is the diff payload. Nil fields were not touched by the
// reviewers and must never overwrite the live document.
type RevisionContent struct {
	IsCanceled *bool `json:"isCanceled,omitempty"`

	RecipientCap *string `json:"recipientCap,omitempty"`

	WasteDetailsCode     *string  `json:"wasteDetailsCode,omitempty"`
	WasteDetailsName     *string  `json:"wasteDetailsName,omitempty"`
	WasteDetailsPop      *bool    `json:"wasteDetailsPop,omitempty"`
	WasteDetailsQuantity *float64 `json:"wasteDetailsQuantity,omitempty"`

	QuantityReceived        *float64                `json:"quantityReceived,omitempty"`
	QuantityRefused         *float64                `json:"quantityRefused,omitempty"`
	WasteAcceptationStatus  *WasteAcceptationStatus `json:"wasteAcceptationStatus,omitempty"`
	WasteRefusalReason      *string                 `json:"wasteRefusalReason,omitempty"`
	ProcessingOperationDone *string                 `json:"processingOperationDone,omitempty"`
	ProcessingOperationDesc *string                 `json:"processingOperationDescription,omitempty"`

	TraderCompanySiret *string `json:"traderCompanySiret,omitempty"`
	TraderCompanyName  *string `json:"traderCompanyName,omitempty"`
	BrokerCompanySiret *string `json:"brokerCompanySiret,omitempty"`
	BrokerCompanyName  *string `json:"brokerCompanyName,omitempty"`

	TempStorage *TempStorageRevision `json:"tempStorage,omitempty"`
}

// TempStorageRevision is the temporary-storage sub-object diff, applied to the
// linked temp-storage record rather than the bordereau itself.
type TempStorageRevision struct {
	TemporaryStorerQuantityReceived *float64 `json:"temporaryStorerQuantityReceived,omitempty"`
	DestinationCap                  *string  `json:"destinationCap,omitempty"`
	DestinationProcessingOperation  *string  `json:"destinationProcessingOperation,omitempty"`
}

// IsEmpty reports whether the diff touches nothing. Empty revisions are
// rejected at creation.
func (c RevisionContent) IsEmpty() bool {
	return c.IsCanceled == nil &&
		c.RecipientCap == nil &&
		c.WasteDetailsCode == nil &&
		c.WasteDetailsName == nil &&
		c.WasteDetailsPop == nil &&
		c.WasteDetailsQuantity == nil &&
		c.QuantityReceived == nil &&
		c.QuantityRefused == nil &&
		c.WasteAcceptationStatus == nil &&
		c.WasteRefusalReason == nil &&
		c.ProcessingOperationDone == nil &&
		c.ProcessingOperationDesc == nil &&
		c.TraderCompanySiret == nil &&
		c.TraderCompanyName == nil &&
		c.BrokerCompanySiret == nil &&
		c.BrokerCompanyName == nil &&
		c.TempStorage == nil
}
