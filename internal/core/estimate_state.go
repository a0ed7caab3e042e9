package core

// EstimateEvent is an input to the estimate state machine.
type EstimateEvent string

const (
	EstimateEventSend      EstimateEvent = "send"
	EstimateEventConvert   EstimateEvent = "convert"
	EstimateEventUnconvert EstimateEvent = "unconvert"
	EstimateEventRepair    EstimateEvent = "repair"
	EstimateEventUnlink    EstimateEvent = "unlink" // stale link dropped during update
)

// estimateTransitions is the complete transition table. A missing entry is an
// illegal transition.
var estimateTransitions = map[EstimateStatus]map[EstimateEvent]EstimateStatus{
	EstimateStatusDraft: {
		EstimateEventSend:    EstimateStatusSent,
		EstimateEventConvert: EstimateStatusApproved,
		EstimateEventRepair:  EstimateStatusDraft,
		EstimateEventUnlink:  EstimateStatusDraft,
	},
	EstimateStatusSent: {
		EstimateEventSend:    EstimateStatusSent,
		EstimateEventConvert: EstimateStatusApproved,
		EstimateEventRepair:  EstimateStatusDraft,
		EstimateEventUnlink:  EstimateStatusSent,
	},
	EstimateStatusApproved: {
		EstimateEventSend:      EstimateStatusApproved,
		EstimateEventConvert:   EstimateStatusApproved,
		EstimateEventUnconvert: EstimateStatusDraft,
		EstimateEventRepair:    EstimateStatusDraft,
		EstimateEventUnlink:    EstimateStatusDraft,
	},
}

// IsValid reports whether s is a known estimate status.
func (s EstimateStatus) IsValid() bool {
	_, ok := estimateTransitions[s]
	return ok
}

// Next returns the state reached from s on ev.
func (s EstimateStatus) Next(ev EstimateEvent) (EstimateStatus, error) {
	next, ok := estimateTransitions[s][ev]
	if !ok {
		return s, &Error{
			Kind:    KindConflict,
			Code:    CodeInvalidState,
			Message: "estimate in status " + string(s) + " cannot " + string(ev),
		}
	}
	return next, nil
}
