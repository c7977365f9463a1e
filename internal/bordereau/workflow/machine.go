package workflow

import (
	"wastetrack/internal/bordereau/models"
)

// GuardInput is everything a guard may inspect: the document with its loaded
// satellites, the event parameters, and the groupement links where the
// document is the initial form.
type GuardInput struct {
	Form        *models.Form
	Params      Params
	Groupements []models.Groupement
}

// Guard is a named predicate evaluated before a transition commits. Guards
// never mutate; a non-nil error rejects the whole call.
type Guard func(in GuardInput) error

// securityCodeHolder selects whose security code must authorize a sign-off.
type securityCodeHolder func(f *models.Form) string

// rule declares one edge of the transition table.
type rule struct {
	guards []Guard
	// resolve picks the next status from the event parameters. nextStatus
	// builds a constant resolver for unconditional edges.
	resolve func(f *models.Form, p Params) models.Status
	// securityCode, when set, requires an out-of-band code verification
	// against the named company before the transition persists. The check is
	// a two-phase pre-commit step, not a machine state.
	securityCode securityCodeHolder
}

func nextStatus(s models.Status) func(*models.Form, Params) models.Status {
	return func(*models.Form, Params) models.Status { return s }
}

// resolveReception merges reception and acceptance when the caller provides an
// acceptance outcome alongside reception.
func resolveReception(_ *models.Form, p Params) models.Status {
	if p.WasteAcceptationStatus == "" {
		return models.StatusReceived
	}
	if p.WasteAcceptationStatus.Accepted() {
		return models.StatusAccepted
	}
	return models.StatusRefused
}

func resolveAcceptance(_ *models.Form, p Params) models.Status {
	if p.WasteAcceptationStatus.Accepted() {
		return models.StatusAccepted
	}
	return models.StatusRefused
}

func resolveTempStorage(_ *models.Form, p Params) models.Status {
	if p.WasteAcceptationStatus != "" && !p.WasteAcceptationStatus.Accepted() {
		return models.StatusRefused
	}
	return models.StatusTempStored
}

func resolveTempStorerAcceptance(_ *models.Form, p Params) models.Status {
	if p.WasteAcceptationStatus.Accepted() {
		return models.StatusTempStorerAccepted
	}
	return models.StatusRefused
}

// resolveProcessing routes the processing outcome: lost traceability, a
// grouping operation awaiting an appendix-2 container, or a final treatment.
func resolveProcessing(f *models.Form, p Params) models.Status {
	if p.NoTraceability != nil && *p.NoTraceability {
		return models.StatusNoTraceability
	}
	if models.IsGroupingOperation(p.ProcessingOperationDone) {
		return models.StatusAwaitingGroup
	}
	return models.StatusProcessed
}

func emitterCode(f *models.Form) string   { return f.EmitterCompanySiret }
func recipientCode(f *models.Form) string { return f.RecipientCompanySiret }

// transitions is the full edge table. A status/event pair absent from the
// table is an InvalidTransition, whatever the guards would have said.
var transitions = map[models.Status]map[Event]rule{
	models.StatusDraft: {
		EventMarkAsSealed: {
			guards:  []Guard{guardSealable},
			resolve: nextStatus(models.StatusSealed),
		},
		EventSignedByProducer: {
			guards:  []Guard{guardSealable, guardSignature},
			resolve: nextStatus(models.StatusSignedByProducer),
		},
	},
	models.StatusSealed: {
		EventSignedByProducer: {
			guards:  []Guard{guardSignature},
			resolve: nextStatus(models.StatusSignedByProducer),
		},
		EventSignedByTransporter: {
			guards:       []Guard{guardSignature},
			resolve:      nextStatus(models.StatusSent),
			securityCode: emitterCode,
		},
		EventMarkAsSent: {
			resolve: nextStatus(models.StatusSent),
		},
	},
	models.StatusSignedByProducer: {
		EventSignedByTransporter: {
			guards:       []Guard{guardSignature},
			resolve:      nextStatus(models.StatusSent),
			securityCode: emitterCode,
		},
	},
	models.StatusSent: {
		EventMarkAsReceived: {
			guards:  []Guard{guardNotTempStorage, guardNoSegmentsToTakeOver},
			resolve: resolveReception,
		},
		EventMarkAsTempStored: {
			guards:  []Guard{guardTempStorage, guardNoSegmentsToTakeOver},
			resolve: resolveTempStorage,
		},
	},
	models.StatusReceived: {
		EventMarkAsAccepted: {
			resolve: resolveAcceptance,
		},
	},
	models.StatusAccepted: {
		EventMarkAsProcessed: {
			resolve: resolveProcessing,
		},
	},
	models.StatusTempStored: {
		EventMarkAsTempStorerAccepted: {
			resolve: resolveTempStorerAcceptance,
		},
	},
	models.StatusTempStorerAccepted: {
		EventMarkAsResealed: {
			guards:  []Guard{guardResealable},
			resolve: nextStatus(models.StatusResealed),
		},
	},
	models.StatusResealed: {
		EventSignedByTempStorer: {
			guards:       []Guard{guardSignature},
			resolve:      nextStatus(models.StatusResent),
			securityCode: recipientCode,
		},
		EventMarkAsResent: {
			resolve: nextStatus(models.StatusResent),
		},
	},
	models.StatusResent: {
		EventMarkAsReceived: {
			guards:  []Guard{guardNoSegmentsToTakeOver},
			resolve: resolveReception,
		},
	},
	models.StatusAwaitingGroup: {
		EventMarkAsGrouped: {
			guards:  []Guard{guardFullyAllocated},
			resolve: nextStatus(models.StatusGrouped),
		},
	},
	models.StatusGrouped: {
		EventMarkAsProcessed: {
			resolve: nextStatus(models.StatusProcessed),
		},
	},
}

// Resolve is the pure state machine: it checks the edge exists, runs every
// guard, and returns the next status. It never touches storage.
func Resolve(in GuardInput, event Event) (models.Status, error) {
	r, ok := edge(in.Form.Status, event)
	if !ok {
		return "", NewInvalidTransition(in.Form.Status, event)
	}
	for _, g := range r.guards {
		if err := g(in); err != nil {
			return "", err
		}
	}
	return r.resolve(in.Form, in.Params), nil
}

// Declared reports whether an event is declared for a status, regardless of
// guards.
func Declared(status models.Status, event Event) bool {
	_, ok := edge(status, event)
	return ok
}

// SecurityCodeHolder returns the SIRET whose security code must authorize the
// edge, or "" when no code check applies to it.
func SecurityCodeHolder(f *models.Form, event Event) string {
	if r, ok := edge(f.Status, event); ok && r.securityCode != nil {
		return r.securityCode(f)
	}
	return ""
}

func edge(status models.Status, event Event) (rule, bool) {
	byEvent, ok := transitions[status]
	if !ok {
		return rule{}, false
	}
	r, ok := byEvent[event]
	return r, ok
}
