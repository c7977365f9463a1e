package appendix_test

import (
	"wastetrack/internal/bordereau/appendix"
	"wastetrack/internal/bordereau/models"
	"wastetrack/internal/bordereau/workflow"
	dErrors "wastetrack/pkg/domain-errors"
)

// awaitingGroup walks a fresh document through its full lifecycle up to
// AWAITING_GROUP: received quantity accepted, then processed with a grouping
// operation.
func (s *ManagerSuite) awaitingGroup(quantityReceived float64) *models.Form {
	f := s.create(models.EmitterTypeProducer)
	s.advance(f.ID, workflow.EventMarkAsSealed, workflow.Params{})
	s.advance(f.ID, workflow.EventMarkAsSent, workflow.Params{})
	s.advance(f.ID, workflow.EventMarkAsReceived, workflow.Params{
		ReceivedBy:             "Claire Morel",
		QuantityReceived:       &quantityReceived,
		WasteAcceptationStatus: models.WasteAccepted,
	})
	f = s.advance(f.ID, workflow.EventMarkAsProcessed, workflow.Params{
		ProcessingOperationDone: "D 13",
	})
	s.Require().Equal(models.StatusAwaitingGroup, f.Status)
	return f
}

func (s *ManagerSuite) TestSetAppendix2QuantityConservation() {
	child := s.awaitingGroup(10)
	containerA := s.create(models.EmitterTypeAppendix2)
	containerB := s.create(models.EmitterTypeAppendix2)

	s.Require().NoError(s.manager.SetAppendix2(s.ctx, containerA.ID, []appendix.Fraction{
		{FormID: child.ID, Quantity: 6},
	}))

	s.Run("over-allocation across containers is rejected", func() {
		err := s.manager.SetAppendix2(s.ctx, containerB.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 5},
		})
		s.Require().Error(err)

		var qErr *appendix.QuantityExceededError
		s.Require().ErrorAs(err, &qErr)
		s.Equal(child.ReadableID, qErr.ReadableID)
		s.Equal(5.0, qErr.Requested)
		s.Equal(4.0, qErr.Remaining)

		links, err := s.store.GroupementsByNextForm(s.ctx, containerB.ID)
		s.Require().NoError(err)
		s.Empty(links, "a rejected set leaves no link behind")
	})

	s.Run("the remaining quantity is accepted", func() {
		s.Require().NoError(s.manager.SetAppendix2(s.ctx, containerB.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 4},
		}))
	})

	s.Run("re-editing a container does not count its own link", func() {
		s.Require().NoError(s.manager.SetAppendix2(s.ctx, containerA.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 6},
		}))
	})
}

func (s *ManagerSuite) TestSetAppendix2Validation() {
	container := s.create(models.EmitterTypeAppendix2)

	s.Run("container type is checked", func() {
		plain := s.create(models.EmitterTypeProducer)
		child := s.awaitingGroup(10)
		err := s.manager.SetAppendix2(s.ctx, plain.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 1},
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("child must await grouping", func() {
		notGroupable := s.create(models.EmitterTypeProducer)
		err := s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
			{FormID: notGroupable.ID, Quantity: 1},
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("quantity must be positive", func() {
		child := s.awaitingGroup(10)
		err := s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 0},
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *ManagerSuite) TestGroupedRequiresSealedContainersAndExactSum() {
	child := s.awaitingGroup(10)
	container := s.create(models.EmitterTypeAppendix2)

	s.Run("exact sum on a draft container is not enough", func() {
		s.Require().NoError(s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
			{FormID: child.ID, Quantity: 10},
		}))
		s.Equal(models.StatusAwaitingGroup, s.reload(child.ID).Status)
	})

	s.Run("sealing the container flips the child to GROUPED", func() {
		s.advance(container.ID, workflow.EventMarkAsSealed, workflow.Params{})
		s.Equal(models.StatusGrouped, s.reload(child.ID).Status)
	})

	s.Run("dropping the link rolls the child back", func() {
		s.Require().NoError(s.manager.SetAppendix2(s.ctx, container.ID, nil))
		s.Equal(models.StatusAwaitingGroup, s.reload(child.ID).Status)
	})
}

func (s *ManagerSuite) TestPartialSumStaysAwaitingGroup() {
	child := s.awaitingGroup(10)
	container := s.create(models.EmitterTypeAppendix2)

	s.Require().NoError(s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
		{FormID: child.ID, Quantity: 7},
	}))
	s.advance(container.ID, workflow.EventMarkAsSealed, workflow.Params{})

	s.Equal(models.StatusAwaitingGroup, s.reload(child.ID).Status,
		"a partially attributed quantity never reaches GROUPED")
}

func (s *ManagerSuite) TestContainerReceptionCascadesToProcessed() {
	child := s.awaitingGroup(10)
	container := s.create(models.EmitterTypeAppendix2)

	s.Require().NoError(s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
		{FormID: child.ID, Quantity: 10},
	}))
	s.advance(container.ID, workflow.EventMarkAsSealed, workflow.Params{})
	s.advance(container.ID, workflow.EventMarkAsSent, workflow.Params{})
	s.Require().Equal(models.StatusGrouped, s.reload(child.ID).Status)

	received := 10.0
	got := s.advance(container.ID, workflow.EventMarkAsReceived, workflow.Params{
		ReceivedBy:             "Claire Morel",
		QuantityReceived:       &received,
		WasteAcceptationStatus: models.WasteAccepted,
	})

	processed := s.reload(child.ID)
	s.Equal(models.StatusProcessed, processed.Status,
		"grouped children complete when the regrouped shipment arrives")
	s.Require().NotNil(processed.ProcessedAt)
	s.Equal(*got.ReceivedAt, *processed.ProcessedAt)
}

func (s *ManagerSuite) TestContainerRefusalLeavesChildrenGrouped() {
	child := s.awaitingGroup(10)
	container := s.create(models.EmitterTypeAppendix2)

	s.Require().NoError(s.manager.SetAppendix2(s.ctx, container.ID, []appendix.Fraction{
		{FormID: child.ID, Quantity: 10},
	}))
	s.advance(container.ID, workflow.EventMarkAsSealed, workflow.Params{})
	s.advance(container.ID, workflow.EventMarkAsSent, workflow.Params{})

	got := s.advance(container.ID, workflow.EventMarkAsReceived, workflow.Params{
		ReceivedBy:             "Claire Morel",
		WasteAcceptationStatus: models.WasteRefused,
		WasteRefusalReason:     "non-conforming load",
	})
	s.Equal(models.StatusRefused, got.Status)
	s.Equal(models.StatusGrouped, s.reload(child.ID).Status,
		"a refused container does not cascade")
}
