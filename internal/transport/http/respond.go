package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"wastetrack/internal/bordereau/appendix"
	"wastetrack/internal/bordereau/workflow"
	dErrors "wastetrack/pkg/domain-errors"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain error codes and workflow error kinds onto HTTP
// statuses. Unclassified errors become opaque 500s so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		writeJSON(w, workflowStatus(wfErr.Kind), errorBody{Error: errorPayload{
			Code:    string(wfErr.Kind),
			Message: wfErr.Message,
			Fields:  wfErr.Fields,
		}})
		return
	}

	var qErr *appendix.QuantityExceededError
	if errors.As(err, &qErr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorPayload{
			Code:    "QUANTITY_EXCEEDED",
			Message: qErr.Error(),
		}})
		return
	}

	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		message = "internal server error"
	}
	writeJSON(w, codeStatus(code), errorBody{Error: errorPayload{
		Code:    string(code),
		Message: message,
	}})
}

func workflowStatus(kind workflow.ErrorKind) int {
	switch kind {
	case workflow.KindInvalidTransition:
		return http.StatusConflict
	case workflow.KindInvalidForm, workflow.KindSegmentsToTakeOver, workflow.KindAppendix:
		return http.StatusBadRequest
	case workflow.KindMissingSignature, workflow.KindInvalidSecurityCode:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func codeStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
