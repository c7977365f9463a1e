package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wastetrack/internal/bordereau/appendix"
	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/ports"
	"wastetrack/internal/bordereau/revision"
	"wastetrack/internal/bordereau/workflow"
	dErrors "wastetrack/pkg/domain-errors"
	"wastetrack/pkg/platform/sentinel"
)

// Handler exposes the lifecycle engine over HTTP. Authorization happens at
// the gateway; the handler only decodes, dispatches and maps errors.
type Handler struct {
	workflow  *workflow.Service
	appendix  *appendix.Manager
	revisions *revision.Service
	store     ports.Store
	logger    *slog.Logger
}

// New creates the bordereau API handler.
func New(wf *workflow.Service, ap *appendix.Manager, rev *revision.Service, store ports.Store, logger *slog.Logger) *Handler {
	return &Handler{
		workflow:  wf,
		appendix:  ap,
		revisions: rev,
		store:     store,
		logger:    logger,
	}
}

// Register mounts the API routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/bordereaux", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Post("/events", h.handleEvent)
			r.Get("/status-logs", h.handleStatusLogs)
			r.Put("/appendix1", h.handleSetAppendix1)
			r.Put("/appendix2", h.handleSetAppendix2)
			r.Post("/revisions", h.handleCreateRevision)
		})
	})
	r.Route("/v1/revisions/{revisionID}", func(r chi.Router) {
		r.Get("/", h.handleGetRevision)
		r.Delete("/", h.handleCancelRevision)
	})
	r.Post("/v1/revision-approvals/{approvalID}", h.handleSubmitApproval)
}

type transporterRequest struct {
	CompanySiret string `json:"companySiret"`
	CompanyName  string `json:"companyName"`
}

type tempStorageRequest struct {
	DestinationCompanySiret        string `json:"destinationCompanySiret"`
	DestinationCap                 string `json:"destinationCap"`
	DestinationProcessingOperation string `json:"destinationProcessingOperation"`
}

type createFormRequest struct {
	EmitterType            models.EmitterType   `json:"emitterType"`
	RecipientIsTempStorage bool                 `json:"recipientIsTempStorage"`
	EmitterCompanySiret    string               `json:"emitterCompanySiret"`
	EmitterCompanyName     string               `json:"emitterCompanyName"`
	RecipientCompanySiret  string               `json:"recipientCompanySiret"`
	RecipientCompanyName   string               `json:"recipientCompanyName"`
	RecipientCap           string               `json:"recipientCap"`
	TraderCompanySiret     string               `json:"traderCompanySiret"`
	TraderCompanyName      string               `json:"traderCompanyName"`
	BrokerCompanySiret     string               `json:"brokerCompanySiret"`
	BrokerCompanyName      string               `json:"brokerCompanyName"`
	EcoOrganismeSiret      string               `json:"ecoOrganismeSiret"`
	EcoOrganismeName       string               `json:"ecoOrganismeName"`
	IntermediarySirets     []string             `json:"intermediarySirets"`
	WasteDetailsCode       string               `json:"wasteDetailsCode"`
	WasteDetailsName       string               `json:"wasteDetailsName"`
	WasteDetailsDangerous  bool                 `json:"wasteDetailsIsDangerous"`
	WasteDetailsPop        bool                 `json:"wasteDetailsPop"`
	WasteDetailsQuantity   *float64             `json:"wasteDetailsQuantity"`
	WasteDetailsPackagings string               `json:"wasteDetailsPackagings"`
	Transporters           []transporterRequest `json:"transporters"`
	TempStorage            *tempStorageRequest  `json:"tempStorageDetail"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	f := &models.Form{
		EmitterType:             req.EmitterType,
		RecipientIsTempStorage:  req.RecipientIsTempStorage,
		EmitterCompanySiret:     req.EmitterCompanySiret,
		EmitterCompanyName:      req.EmitterCompanyName,
		RecipientCompanySiret:   req.RecipientCompanySiret,
		RecipientCompanyName:    req.RecipientCompanyName,
		RecipientCap:            req.RecipientCap,
		TraderCompanySiret:      req.TraderCompanySiret,
		TraderCompanyName:       req.TraderCompanyName,
		BrokerCompanySiret:      req.BrokerCompanySiret,
		BrokerCompanyName:       req.BrokerCompanyName,
		EcoOrganismeSiret:       req.EcoOrganismeSiret,
		EcoOrganismeName:        req.EcoOrganismeName,
		IntermediarySirets:      req.IntermediarySirets,
		WasteDetailsCode:        req.WasteDetailsCode,
		WasteDetailsName:        req.WasteDetailsName,
		WasteDetailsIsDangerous: req.WasteDetailsDangerous,
		WasteDetailsPop:         req.WasteDetailsPop,
		WasteDetailsQuantity:    req.WasteDetailsQuantity,
		WasteDetailsPackagings:  req.WasteDetailsPackagings,
	}
	for i, t := range req.Transporters {
		f.Transporters = append(f.Transporters, models.Transporter{
			Number:       i + 1,
			CompanySiret: t.CompanySiret,
			CompanyName:  t.CompanyName,
		})
	}
	if req.TempStorage != nil {
		f.TempStorage = &models.TempStorageDetail{
			DestinationCompanySiret:        req.TempStorage.DestinationCompanySiret,
			DestinationCap:                 req.TempStorage.DestinationCap,
			DestinationProcessingOperation: req.TempStorage.DestinationProcessingOperation,
		}
	}

	created, err := h.workflow.Create(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create bordereau", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFormResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := h.store.FindForm(r.Context(), id)
	if err != nil {
		writeError(w, translateLookupErr(err))
		return
	}
	if f.IsDeleted {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "bordereau not found"))
		return
	}
	writeJSON(w, http.StatusOK, toFormResponse(f))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.workflow.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventRequest struct {
	Event workflow.Event `json:"event"`

	SignedBy     string     `json:"signedBy"`
	SignedAt     *time.Time `json:"signedAt"`
	SecurityCode int        `json:"securityCode"`
	SentAt       *time.Time `json:"sentAt"`

	ReceivedAt *time.Time `json:"receivedAt"`
	ReceivedBy string     `json:"receivedBy"`

	QuantityReceived       *float64                      `json:"quantityReceived"`
	QuantityRefused        *float64                      `json:"quantityRefused"`
	WasteAcceptationStatus models.WasteAcceptationStatus `json:"wasteAcceptationStatus"`
	WasteRefusalReason     string                        `json:"wasteRefusalReason"`

	ProcessedAt              *time.Time `json:"processedAt"`
	ProcessingOperationDone  string     `json:"processingOperationDone"`
	ProcessingOperationDesc  string     `json:"processingOperationDescription"`
	DestinationOperationMode *string    `json:"destinationOperationMode"`
	NoTraceability           *bool      `json:"noTraceability"`

	NextDestinationProcessingOperation string `json:"nextDestinationProcessingOperation"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Event == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "event is required"))
		return
	}

	f, err := h.workflow.Transition(r.Context(), id, req.Event, workflow.Params{
		SignedBy:                           req.SignedBy,
		SignedAt:                           req.SignedAt,
		SentAt:                             req.SentAt,
		ReceivedAt:                         req.ReceivedAt,
		ReceivedBy:                         req.ReceivedBy,
		QuantityReceived:                   req.QuantityReceived,
		QuantityRefused:                    req.QuantityRefused,
		WasteAcceptationStatus:             req.WasteAcceptationStatus,
		WasteRefusalReason:                 req.WasteRefusalReason,
		ProcessedAt:                        req.ProcessedAt,
		ProcessingOperationDone:            req.ProcessingOperationDone,
		ProcessingOperationDesc:            req.ProcessingOperationDesc,
		DestinationOperationMode:           req.DestinationOperationMode,
		NoTraceability:                     req.NoTraceability,
		NextDestinationProcessingOperation: req.NextDestinationProcessingOperation,
		SecurityCode:                       req.SecurityCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFormResponse(f))
}

func (h *Handler) handleStatusLogs(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	logs, err := h.store.ListStatusLogs(r.Context(), id)
	if err != nil {
		writeError(w, translateLookupErr(err))
		return
	}
	out := make([]statusLogResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, statusLogResponse{
			ID:            entry.ID,
			Status:        entry.Status,
			UserID:        entry.UserID,
			AuthType:      entry.AuthType,
			LoggedAt:      entry.LoggedAt,
			UpdatedFields: entry.UpdatedFields,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type fractionRequest struct {
	FormID   uuid.UUID `json:"formId"`
	Quantity float64   `json:"quantity"`
}

type setAppendixRequest struct {
	Fractions []fractionRequest `json:"fractions"`
}

func (h *Handler) handleSetAppendix1(w http.ResponseWriter, r *http.Request) {
	h.handleSetAppendix(w, r, h.appendix.SetAppendix1)
}

func (h *Handler) handleSetAppendix2(w http.ResponseWriter, r *http.Request) {
	h.handleSetAppendix(w, r, h.appendix.SetAppendix2)
}

func (h *Handler) handleSetAppendix(w http.ResponseWriter, r *http.Request,
	set func(ctx context.Context, containerID uuid.UUID, fractions []appendix.Fraction) error) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setAppendixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	fractions := make([]appendix.Fraction, 0, len(req.Fractions))
	for _, fr := range req.Fractions {
		fractions = append(fractions, appendix.Fraction{FormID: fr.FormID, Quantity: fr.Quantity})
	}
	if err := set(r.Context(), id, fractions); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRevisionRequest struct {
	AuthorSiret    string                 `json:"authorSiret"`
	Comment        string                 `json:"comment"`
	Content        models.RevisionContent `json:"content"`
	ApproverSirets []string               `json:"approverSirets"`
}

func (h *Handler) handleCreateRevision(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createRevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.AuthorSiret == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "authorSiret is required"))
		return
	}
	created, err := h.revisions.Create(r.Context(), id, req.AuthorSiret, req.Comment, req.Content, req.ApproverSirets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevisionResponse(created))
}

func (h *Handler) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "revisionID")
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := h.store.FindRevisionRequest(r.Context(), id)
	if err != nil {
		writeError(w, translateLookupErr(err))
		return
	}
	writeJSON(w, http.StatusOK, toRevisionResponse(req))
}

type cancelRevisionRequest struct {
	CallerSiret string `json:"callerSiret"`
}

func (h *Handler) handleCancelRevision(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "revisionID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req cancelRevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.revisions.Cancel(r.Context(), id, req.CallerSiret); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitApprovalRequest struct {
	Decision revision.Decision `json:"decision"`
	Comment  string            `json:"comment"`
}

func (h *Handler) handleSubmitApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "approvalID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.revisions.SubmitApproval(r.Context(), id, req.Decision, req.Comment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formID(r *http.Request) (uuid.UUID, error) {
	return pathUUID(r, "formID")
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", param)
	}
	return id, nil
}

func translateLookupErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	}
	return err
}
