package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/revision"
	"wastetrack/internal/bordereau/workflow"
)

// createSent drives a fresh bordereau to SENT through the API.
func (s *HandlerSuite) createSent() formResponse {
	s.T().Helper()
	created := s.createDraft()
	w := s.event(created.ID, eventRequest{Event: workflow.EventMarkAsSealed})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	w = s.event(created.ID, eventRequest{
		Event:        workflow.EventSignedByTransporter,
		SignedBy:     "Jean Durand",
		SecurityCode: emitterCode,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sent formResponse
	s.decode(w, &sent)
	return sent
}

func (s *HandlerSuite) createRevision(formID uuid.UUID, req createRevisionRequest) revisionResponse {
	s.T().Helper()
	w := s.do(http.MethodPost, "/v1/bordereaux/"+formID.String()+"/revisions", req)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp revisionResponse
	s.decode(w, &resp)
	return resp
}

func (s *HandlerSuite) TestRevisionApprovalFlow() {
	sent := s.createSent()
	newQty := 9.5

	created := s.createRevision(sent.ID, createRevisionRequest{
		AuthorSiret:    emitterSiret,
		Comment:        "quantity corrected after weighbridge ticket",
		Content:        models.RevisionContent{WasteDetailsQuantity: &newQty},
		ApproverSirets: []string{recipientSiret},
	})
	s.Equal(models.RevisionRequestPending, created.Status)
	s.Require().Len(created.Approvals, 1)
	s.Equal(recipientSiret, created.Approvals[0].ApproverSiret)
	s.Equal(models.RevisionApprovalPending, created.Approvals[0].Status)

	w := s.do(http.MethodGet, "/v1/revisions/"+created.ID.String(), nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/revision-approvals/"+created.Approvals[0].ID.String(),
		submitApprovalRequest{Decision: revision.DecisionAccept})
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/revisions/"+created.ID.String(), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var settled revisionResponse
	s.decode(w, &settled)
	s.Equal(models.RevisionRequestAccepted, settled.Status)

	w = s.do(http.MethodGet, "/v1/bordereaux/"+sent.ID.String(), nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var form formResponse
	s.decode(w, &form)
	s.Require().NotNil(form.WasteDetailsQuantity)
	s.Equal(9.5, *form.WasteDetailsQuantity)

	s.Run("settled requests cannot be canceled", func() {
		w := s.do(http.MethodDelete, "/v1/revisions/"+created.ID.String(),
			cancelRevisionRequest{CallerSiret: emitterSiret})
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestCreateRevisionRejections() {
	sent := s.createSent()
	newQty := 9.5

	s.Run("author is required", func() {
		w := s.do(http.MethodPost, "/v1/bordereaux/"+sent.ID.String()+"/revisions",
			createRevisionRequest{Content: models.RevisionContent{WasteDetailsQuantity: &newQty}})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("empty diff", func() {
		w := s.do(http.MethodPost, "/v1/bordereaux/"+sent.ID.String()+"/revisions",
			createRevisionRequest{AuthorSiret: emitterSiret})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown bordereau", func() {
		w := s.do(http.MethodPost, "/v1/bordereaux/"+uuid.NewString()+"/revisions",
			createRevisionRequest{
				AuthorSiret: emitterSiret,
				Content:     models.RevisionContent{WasteDetailsQuantity: &newQty},
			})
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("draft is not revisable", func() {
		draft := s.createDraft()
		w := s.do(http.MethodPost, "/v1/bordereaux/"+draft.ID.String()+"/revisions",
			createRevisionRequest{
				AuthorSiret: emitterSiret,
				Content:     models.RevisionContent{WasteDetailsQuantity: &newQty},
			})
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *HandlerSuite) TestCancelRevision() {
	sent := s.createSent()
	newQty := 9.5
	created := s.createRevision(sent.ID, createRevisionRequest{
		AuthorSiret:    emitterSiret,
		Content:        models.RevisionContent{WasteDetailsQuantity: &newQty},
		ApproverSirets: []string{recipientSiret},
	})

	s.Run("only the author may cancel", func() {
		w := s.do(http.MethodDelete, "/v1/revisions/"+created.ID.String(),
			cancelRevisionRequest{CallerSiret: recipientSiret})
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("author cancels and the request disappears", func() {
		w := s.do(http.MethodDelete, "/v1/revisions/"+created.ID.String(),
			cancelRevisionRequest{CallerSiret: emitterSiret})
		s.Require().Equal(http.StatusNoContent, w.Code)

		w = s.do(http.MethodGet, "/v1/revisions/"+created.ID.String(), nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}
