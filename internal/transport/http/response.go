package httptransport

import (
	"time"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
)

type transporterResponse struct {
	CompanySiret string     `json:"companySiret"`
	CompanyName  string     `json:"companyName"`
	Number       int        `json:"number"`
	TakenOverAt  *time.Time `json:"takenOverAt,omitempty"`
	TakenOverBy  string     `json:"takenOverBy,omitempty"`
}

type tempStorageResponse struct {
	DestinationCompanySiret          string     `json:"destinationCompanySiret"`
	DestinationCap                   string     `json:"destinationCap"`
	DestinationProcessingOperation   string     `json:"destinationProcessingOperation"`
	TemporaryStorerQuantityReceived  *float64   `json:"temporaryStorerQuantityReceived,omitempty"`
	TemporaryStorerAcceptationStatus string     `json:"temporaryStorerAcceptationStatus,omitempty"`
	TemporaryStorerReceivedAt        *time.Time `json:"temporaryStorerReceivedAt,omitempty"`
	TemporaryStorerReceivedBy        string     `json:"temporaryStorerReceivedBy,omitempty"`
}

type formResponse struct {
	ID                     uuid.UUID             `json:"id"`
	ReadableID             string                `json:"readableId"`
	Status                 models.Status         `json:"status"`
	EmitterType            models.EmitterType    `json:"emitterType"`
	RecipientIsTempStorage bool                  `json:"recipientIsTempStorage"`
	NoTraceability         bool                  `json:"noTraceability"`
	EmitterCompanySiret    string                `json:"emitterCompanySiret"`
	RecipientCompanySiret  string                `json:"recipientCompanySiret"`
	RecipientCap           string                `json:"recipientCap,omitempty"`
	WasteDetailsCode       string                `json:"wasteDetailsCode"`
	WasteDetailsName       string                `json:"wasteDetailsName,omitempty"`
	WasteDetailsQuantity   *float64              `json:"wasteDetailsQuantity,omitempty"`
	QuantityReceived       *float64              `json:"quantityReceived,omitempty"`
	QuantityRefused        *float64              `json:"quantityRefused,omitempty"`
	WasteAcceptationStatus string                `json:"wasteAcceptationStatus,omitempty"`
	WasteRefusalReason     string                `json:"wasteRefusalReason,omitempty"`
	ProcessingOperation    string                `json:"processingOperationDone,omitempty"`
	SentAt                 *time.Time            `json:"sentAt,omitempty"`
	ReceivedAt             *time.Time            `json:"receivedAt,omitempty"`
	ProcessedAt            *time.Time            `json:"processedAt,omitempty"`
	CreatedAt              time.Time             `json:"createdAt"`
	UpdatedAt              time.Time             `json:"updatedAt"`
	Transporters           []transporterResponse `json:"transporters,omitempty"`
	TempStorage            *tempStorageResponse  `json:"tempStorageDetail,omitempty"`
}

func toFormResponse(f *models.Form) formResponse {
	out := formResponse{
		ID:                     f.ID,
		ReadableID:             f.ReadableID,
		Status:                 f.Status,
		EmitterType:            f.EmitterType,
		RecipientIsTempStorage: f.RecipientIsTempStorage,
		NoTraceability:         f.NoTraceability,
		EmitterCompanySiret:    f.EmitterCompanySiret,
		RecipientCompanySiret:  f.RecipientCompanySiret,
		RecipientCap:           f.RecipientCap,
		WasteDetailsCode:       f.WasteDetailsCode,
		WasteDetailsName:       f.WasteDetailsName,
		WasteDetailsQuantity:   f.WasteDetailsQuantity,
		QuantityReceived:       f.QuantityReceived,
		QuantityRefused:        f.QuantityRefused,
		WasteAcceptationStatus: string(f.WasteAcceptationStatus),
		WasteRefusalReason:     f.WasteRefusalReason,
		ProcessingOperation:    f.ProcessingOperationDone,
		SentAt:                 f.SentAt,
		ReceivedAt:             f.ReceivedAt,
		ProcessedAt:            f.ProcessedAt,
		CreatedAt:              f.CreatedAt,
		UpdatedAt:              f.UpdatedAt,
	}
	for _, t := range f.Transporters {
		out.Transporters = append(out.Transporters, transporterResponse{
			CompanySiret: t.CompanySiret,
			CompanyName:  t.CompanyName,
			Number:       t.Number,
			TakenOverAt:  t.TakenOverAt,
			TakenOverBy:  t.TakenOverBy,
		})
	}
	if f.TempStorage != nil {
		out.TempStorage = &tempStorageResponse{
			DestinationCompanySiret:          f.TempStorage.DestinationCompanySiret,
			DestinationCap:                   f.TempStorage.DestinationCap,
			DestinationProcessingOperation:   f.TempStorage.DestinationProcessingOperation,
			TemporaryStorerQuantityReceived:  f.TempStorage.TemporaryStorerQuantityReceived,
			TemporaryStorerAcceptationStatus: string(f.TempStorage.TemporaryStorerAcceptationStatus),
			TemporaryStorerReceivedAt:        f.TempStorage.TemporaryStorerReceivedAt,
			TemporaryStorerReceivedBy:        f.TempStorage.TemporaryStorerReceivedBy,
		}
	}
	return out
}

type statusLogResponse struct {
	ID            uuid.UUID      `json:"id"`
	Status        models.Status  `json:"status"`
	UserID        uuid.UUID      `json:"userId"`
	AuthType      string         `json:"authType"`
	LoggedAt      time.Time      `json:"loggedAt"`
	UpdatedFields map[string]any `json:"updatedFields,omitempty"`
}

type approvalResponse struct {
	ID            uuid.UUID                     `json:"id"`
	ApproverSiret string                        `json:"approverSiret"`
	Status        models.RevisionApprovalStatus `json:"status"`
	Comment       string                        `json:"comment,omitempty"`
}

type revisionResponse struct {
	ID                    uuid.UUID                    `json:"id"`
	FormID                uuid.UUID                    `json:"formId"`
	AuthoringCompanySiret string                       `json:"authoringCompanySiret"`
	Status                models.RevisionRequestStatus `json:"status"`
	Comment               string                       `json:"comment,omitempty"`
	Content               models.RevisionContent       `json:"content"`
	CreatedAt             time.Time                    `json:"createdAt"`
	Approvals             []approvalResponse           `json:"approvals"`
}

func toRevisionResponse(r *models.RevisionRequest) revisionResponse {
	out := revisionResponse{
		ID:                    r.ID,
		FormID:                r.FormID,
		AuthoringCompanySiret: r.AuthoringCompanySiret,
		Status:                r.Status,
		Comment:               r.Comment,
		Content:               r.Content,
		CreatedAt:             r.CreatedAt,
		Approvals:             []approvalResponse{},
	}
	for _, a := range r.Approvals {
		out.Approvals = append(out.Approvals, approvalResponse{
			ID:            a.ID,
			ApproverSiret: a.ApproverSiret,
			Status:        a.Status,
			Comment:       a.Comment,
		})
	}
	return out
}
