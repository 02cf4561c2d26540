package app

import (
	"fmt"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
)

// State is the position of one citation in the pipeline.
type State string

const (
	StateDiscover   State = "DISCOVER"
	StateFetching   State = "FETCHING"
	StateFetched    State = "FETCHED"
	StateParsing    State = "PARSING"
	StateParsed     State = "PARSED"
	StateConverting State = "CONVERTING"
	StateDone       State = "DONE"
	StateSkipped    State = "SKIPPED"
	StateFailed     State = "FAILED"
)

var transitions = map[State][]State{
	StateDiscover:   {StateFetching, StateSkipped, StateFailed},
	StateFetching:   {StateFetched, StateSkipped, StateFailed},
	StateFetched:    {StateParsing, StateFailed},
	StateParsing:    {StateParsed, StateFailed},
	StateParsed:     {StateConverting, StateFailed},
	StateConverting: {StateDone, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}

func canMove(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome is the record of one citation: the states it went through and
// how it ended.
type Outcome struct {
	Citation citation.Citation
	State    State
	History  []State
	// Kind is set for FAILED and SKIPPED outcomes.
	Kind   errs.Kind
	Reason string
	// Degraded marks a DONE citation whose payload lacked an expected
	// element; its text may be incomplete.
	Degraded bool
	// Unchanged marks a DONE citation whose stored records already matched.
	Unchanged bool
	CacheHit  bool
	Attempts  int
	// Sections counts the records written for a whole-document target.
	Sections int
}

func newOutcome(c citation.Citation) *Outcome {
	return &Outcome{Citation: c, State: StateDiscover, History: []State{StateDiscover}}
}

func (o *Outcome) advance(to State) error {
	if !canMove(o.State, to) {
		return &errs.InvariantViolationError{
			Citation: o.Citation.String(),
			Reason:   fmt.Sprintf("illegal transition %s -> %s", o.State, to),
		}
	}
	o.State = to
	o.History = append(o.History, to)
	return nil
}

// fail moves o to FAILED, or SKIPPED when the source reports the citation
// does not exist.
func (o *Outcome) fail(err error) {
	o.Kind = errs.KindOf(err)
	o.Reason = err.Error()
	to := StateFailed
	if o.Kind == errs.KindNotFound {
		to = StateSkipped
	}
	if o.State.Terminal() {
		return
	}
	// Every non terminal state may fail; SKIPPED is only reachable while
	// fetching or discovering.
	if !canMove(o.State, to) {
		to = StateFailed
	}
	o.State = to
	o.History = append(o.History, to)
}

func (o *Outcome) String() string {
	if o.Kind != "" {
		return fmt.Sprintf("%s %s(%s)", o.Citation, o.State, o.Kind)
	}
	return fmt.Sprintf("%s %s", o.Citation, o.State)
}
