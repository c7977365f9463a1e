package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"wastetrack/internal/bordereau/appendix"
	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/revision"
	"wastetrack/internal/bordereau/store"
	"wastetrack/internal/bordereau/workflow"
	"wastetrack/internal/company"
)

const (
	emitterSiret   = "11111111111111"
	recipientSiret = "22222222222222"
	emitterCode    = 1234
	recipientCode  = 5678
)

type HandlerSuite struct {
	suite.Suite

	store  *store.MemoryStore
	router chi.Router
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ap, err := appendix.New(s.store)
	s.Require().NoError(err)
	wf, err := workflow.New(s.store,
		workflow.WithAppendix(ap),
		workflow.WithSecurityCodeVerifier(company.StaticVerifier{
			emitterSiret:   emitterCode,
			recipientSiret: recipientCode,
		}),
	)
	s.Require().NoError(err)
	rev := revision.New(s.store)

	h := New(wf, ap, rev, s.store, logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	s.T().Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.T().Helper()
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *HandlerSuite) errorCode(w *httptest.ResponseRecorder) string {
	s.T().Helper()
	var body errorBody
	s.decode(w, &body)
	return body.Error.Code
}

func validCreateBody() createFormRequest {
	qty := 12.5
	return createFormRequest{
		EmitterType:            models.EmitterTypeProducer,
		EmitterCompanySiret:    emitterSiret,
		EmitterCompanyName:     "Producteur SA",
		RecipientCompanySiret:  recipientSiret,
		RecipientCompanyName:   "Exutoire SARL",
		WasteDetailsCode:       "06 01 01*",
		WasteDetailsName:       "acides de decapage",
		WasteDetailsQuantity:   &qty,
		WasteDetailsPackagings: `[{"type":"FUT","quantity":2}]`,
		Transporters: []transporterRequest{
			{CompanySiret: "33333333333333", CompanyName: "Transports Durand"},
		},
	}
}

// createDraft posts a valid bordereau and returns its decoded response.
func (s *HandlerSuite) createDraft() formResponse {
	s.T().Helper()
	w := s.do(http.MethodPost, "/v1/bordereaux", validCreateBody())
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp formResponse
	s.decode(w, &resp)
	return resp
}

func (s *HandlerSuite) event(id uuid.UUID, req eventRequest) *httptest.ResponseRecorder {
	s.T().Helper()
	return s.do(http.MethodPost, fmt.Sprintf("/v1/bordereaux/%s/events", id), req)
}

func (s *HandlerSuite) TestCreate() {
	resp := s.createDraft()

	s.NotEqual(uuid.Nil, resp.ID)
	s.Regexp(`^BSD-`, resp.ReadableID)
	s.Equal(models.StatusDraft, resp.Status)
	s.Require().Len(resp.Transporters, 1)
	s.Equal(1, resp.Transporters[0].Number)
	s.Equal("33333333333333", resp.Transporters[0].CompanySiret)
}

func (s *HandlerSuite) TestCreateRejectsMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/v1/bordereaux", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.errorCode(w))
}

func (s *HandlerSuite) TestGet() {
	created := s.createDraft()

	s.Run("found", func() {
		w := s.do(http.MethodGet, "/v1/bordereaux/"+created.ID.String(), nil)
		s.Require().Equal(http.StatusOK, w.Code)
		var resp formResponse
		s.decode(w, &resp)
		s.Equal(created.ID, resp.ID)
		s.Equal(created.ReadableID, resp.ReadableID)
	})

	s.Run("unknown id", func() {
		w := s.do(http.MethodGet, "/v1/bordereaux/"+uuid.NewString(), nil)
		s.Equal(http.StatusNotFound, w.Code)
		s.Equal("not_found", s.errorCode(w))
	})

	s.Run("malformed id", func() {
		w := s.do(http.MethodGet, "/v1/bordereaux/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestLifecycle() {
	created := s.createDraft()
	id := created.ID

	w := s.event(id, eventRequest{Event: workflow.EventMarkAsSealed})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.event(id, eventRequest{
		Event:        workflow.EventSignedByTransporter,
		SignedBy:     "Jean Durand",
		SecurityCode: emitterCode,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sent formResponse
	s.decode(w, &sent)
	s.Equal(models.StatusSent, sent.Status)
	s.NotNil(sent.SentAt)
	s.Require().Len(sent.Transporters, 1)
	s.NotNil(sent.Transporters[0].TakenOverAt)

	received := 12.5
	w = s.event(id, eventRequest{
		Event:                  workflow.EventMarkAsReceived,
		ReceivedBy:             "Marie Exutoire",
		QuantityReceived:       &received,
		WasteAcceptationStatus: models.WasteAccepted,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var accepted formResponse
	s.decode(w, &accepted)
	s.Equal(models.StatusAccepted, accepted.Status)

	w = s.event(id, eventRequest{
		Event:                   workflow.EventMarkAsProcessed,
		ProcessingOperationDone: "D 10",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var processed formResponse
	s.decode(w, &processed)
	s.Equal(models.StatusProcessed, processed.Status)
	s.NotNil(processed.ProcessedAt)

	w = s.do(http.MethodGet, fmt.Sprintf("/v1/bordereaux/%s/status-logs", id), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var logs []statusLogResponse
	s.decode(w, &logs)
	s.Require().Len(logs, 4)
	s.Equal(models.StatusSealed, logs[0].Status)
	s.Equal(models.StatusSent, logs[1].Status)
	s.Equal(models.StatusAccepted, logs[2].Status)
	s.Equal(models.StatusProcessed, logs[3].Status)
}

func (s *HandlerSuite) TestEventRejections() {
	created := s.createDraft()
	id := created.ID

	s.Run("missing event name", func() {
		w := s.event(id, eventRequest{})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("undeclared edge conflicts", func() {
		w := s.event(id, eventRequest{Event: workflow.EventMarkAsReceived, ReceivedBy: "x"})
		s.Equal(http.StatusConflict, w.Code)
		s.Equal(string(workflow.KindInvalidTransition), s.errorCode(w))
	})

	s.Run("wrong security code is forbidden", func() {
		seal := s.event(id, eventRequest{Event: workflow.EventMarkAsSealed})
		s.Require().Equal(http.StatusOK, seal.Code)

		w := s.event(id, eventRequest{
			Event:        workflow.EventSignedByTransporter,
			SignedBy:     "Jean Durand",
			SecurityCode: 9999,
		})
		s.Equal(http.StatusForbidden, w.Code)
		s.Equal(string(workflow.KindInvalidSecurityCode), s.errorCode(w))
	})
}

func (s *HandlerSuite) TestSealValidationListsFields() {
	body := validCreateBody()
	body.WasteDetailsQuantity = nil
	body.WasteDetailsPackagings = ""
	w := s.do(http.MethodPost, "/v1/bordereaux", body)
	s.Require().Equal(http.StatusCreated, w.Code)
	var created formResponse
	s.decode(w, &created)

	w = s.event(created.ID, eventRequest{Event: workflow.EventMarkAsSealed})
	s.Require().Equal(http.StatusBadRequest, w.Code)
	var resp errorBody
	s.decode(w, &resp)
	s.Equal(string(workflow.KindInvalidForm), resp.Error.Code)
	s.ElementsMatch([]string{"wasteDetailsQuantity", "wasteDetailsPackagingInfos"}, resp.Error.Fields)
}

func (s *HandlerSuite) TestDelete() {
	s.Run("draft is deletable", func() {
		created := s.createDraft()
		w := s.do(http.MethodDelete, "/v1/bordereaux/"+created.ID.String(), nil)
		s.Require().Equal(http.StatusNoContent, w.Code)

		w = s.do(http.MethodGet, "/v1/bordereaux/"+created.ID.String(), nil)
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("sent is not", func() {
		created := s.createDraft()
		s.Require().Equal(http.StatusOK, s.event(created.ID, eventRequest{Event: workflow.EventMarkAsSealed}).Code)
		s.Require().Equal(http.StatusOK, s.event(created.ID, eventRequest{
			Event:        workflow.EventSignedByTransporter,
			SignedBy:     "Jean Durand",
			SecurityCode: emitterCode,
		}).Code)

		w := s.do(http.MethodDelete, "/v1/bordereaux/"+created.ID.String(), nil)
		s.Equal(http.StatusForbidden, w.Code)
	})
}
