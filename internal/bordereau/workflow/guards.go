package workflow

// Named guard predicates. Each one is independently testable and reports the
// precise rejection the caller must surface verbatim.

// guardSealable runs the sealing schema validation and lists every failing
// field.
func guardSealable(in GuardInput) error {
	if fields := sealableFields(in.Form); len(fields) > 0 {
		return NewInvalidForm(fields)
	}
	return nil
}

// guardResealable validates the temp-storage destination frames before the
// bordereau leaves the storage site.
func guardResealable(in GuardInput) error {
	if fields := resealableFields(in.Form); len(fields) > 0 {
		return NewInvalidForm(fields)
	}
	return nil
}

// guardSignature requires a signature author on sign-off events.
func guardSignature(in GuardInput) error {
	if in.Params.SignedBy == "" {
		return NewMissingSignature()
	}
	return nil
}

// guardNoSegmentsToTakeOver blocks reception while any transport leg has not
// been taken over by its transporter.
func guardNoSegmentsToTakeOver(in GuardInput) error {
	if in.Form.HasSegmentsToTakeOver() {
		return NewSegmentsToTakeOver()
	}
	return nil
}

// guardTempStorage restricts the temp-storage reception event to bordereaux
// whose recipient is a temporary-storage site.
func guardTempStorage(in GuardInput) error {
	if !in.Form.RecipientIsTempStorage {
		return NewInvalidTransition(in.Form.Status, EventMarkAsTempStored)
	}
	return nil
}

// guardNotTempStorage routes temp-storage bordereaux onto their dedicated
// reception event. Once resent from the storage site the ordinary reception
// edge applies (RESENT declares MarkAsReceived without this guard).
func guardNotTempStorage(in GuardInput) error {
	if in.Form.RecipientIsTempStorage {
		return NewInvalidTransition(in.Form.Status, EventMarkAsReceived)
	}
	return nil
}

// guardFullyAllocated only lets a sub-document reach GROUPED once its whole
// received quantity has been attributed to containers.
func guardFullyAllocated(in GuardInput) error {
	if in.Form.QuantityReceived == nil {
		return NewInvalidForm([]string{"quantityReceived"})
	}
	var grouped float64
	for _, g := range in.Groupements {
		if g.InitialFormID == in.Form.ID {
			grouped += g.Quantity
		}
	}
	if grouped < *in.Form.QuantityReceived {
		return NewInvalidForm([]string{"quantityGrouped"})
	}
	return nil
}
