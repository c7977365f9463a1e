package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
)

// seedForm bypasses the API to install a document in an arbitrary lifecycle
// state, as the appendix endpoints only act on documents that already
// progressed.
func (s *HandlerSuite) seedForm(f *models.Form) *models.Form {
	s.T().Helper()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.ReadableID == "" {
		f.ReadableID = "BSD-SEED-" + f.ID.String()[:8]
	}
	s.Require().NoError(s.store.CreateForm(context.Background(), f))
	return f
}

func (s *HandlerSuite) putAppendix(kind string, containerID uuid.UUID, fractions []fractionRequest) *httptest.ResponseRecorder {
	s.T().Helper()
	return s.do(http.MethodPut,
		fmt.Sprintf("/v1/bordereaux/%s/%s", containerID, kind),
		setAppendixRequest{Fractions: fractions})
}

func (s *HandlerSuite) TestSetAppendix1() {
	containerBody := validCreateBody()
	containerBody.EmitterType = models.EmitterTypeAppendix1
	w := s.do(http.MethodPost, "/v1/bordereaux", containerBody)
	s.Require().Equal(http.StatusCreated, w.Code)
	var container formResponse
	s.decode(w, &container)

	childBody := validCreateBody()
	childBody.EmitterType = models.EmitterTypeAppendix1Producer
	childBody.Transporters = nil
	w = s.do(http.MethodPost, "/v1/bordereaux", childBody)
	s.Require().Equal(http.StatusCreated, w.Code)
	var child formResponse
	s.decode(w, &child)

	w = s.putAppendix("appendix1", container.ID, []fractionRequest{
		{FormID: child.ID, Quantity: 2},
	})
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/bordereaux/"+child.ID.String(), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var sealed formResponse
	s.decode(w, &sealed)
	s.Equal(models.StatusSealed, sealed.Status)
}

func (s *HandlerSuite) TestSetAppendix1RejectsOrdinaryBordereau() {
	created := s.createDraft()
	w := s.putAppendix("appendix1", created.ID, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.errorCode(w))
}

func (s *HandlerSuite) TestSetAppendix2QuantityConservation() {
	receivedQty := 4.0
	wasteQty := 4.0
	child := s.seedForm(&models.Form{
		EmitterType:           models.EmitterTypeProducer,
		Status:                models.StatusAwaitingGroup,
		EmitterCompanySiret:   emitterSiret,
		RecipientCompanySiret: recipientSiret,
		WasteDetailsCode:      "06 01 01*",
		WasteDetailsQuantity:  &wasteQty,
		QuantityReceived:      &receivedQty,
	})
	container := s.seedForm(&models.Form{
		EmitterType:           models.EmitterTypeAppendix2,
		Status:                models.StatusDraft,
		EmitterCompanySiret:   recipientSiret,
		RecipientCompanySiret: "44444444444444",
		WasteDetailsCode:      "06 01 01*",
	})

	s.Run("over-allocation is rejected", func() {
		w := s.putAppendix("appendix2", container.ID, []fractionRequest{
			{FormID: child.ID, Quantity: 5},
		})
		s.Require().Equal(http.StatusBadRequest, w.Code)
		var resp errorBody
		s.decode(w, &resp)
		s.Equal("QUANTITY_EXCEEDED", resp.Error.Code)
		s.Contains(resp.Error.Message, child.ReadableID)
	})

	s.Run("exact allocation is accepted", func() {
		w := s.putAppendix("appendix2", container.ID, []fractionRequest{
			{FormID: child.ID, Quantity: 4},
		})
		s.Equal(http.StatusNoContent, w.Code, w.Body.String())
	})
}
