package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
)

// Report summarizes one run. Outcomes are grouped by job in submission
// order and by document order within a job.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []*Outcome
	// NotReached lists the citations left untouched by a cancelled run.
	NotReached []citation.Citation
}

func (r *Report) Count(state State) int {
	return lo.CountBy(r.Outcomes, func(o *Outcome) bool { return o.State == state })
}

func (r *Report) Failures() []*Outcome {
	return lo.Filter(r.Outcomes, func(o *Outcome, _ int) bool { return o.State == StateFailed })
}

// FailuresByKind groups failed citations by error kind.
func (r *Report) FailuresByKind() map[errs.Kind][]citation.Citation {
	return lo.MapValues(
		lo.GroupBy(r.Failures(), func(o *Outcome) errs.Kind { return o.Kind }),
		func(group []*Outcome, _ errs.Kind) []citation.Citation {
			return lo.Map(group, func(o *Outcome, _ int) citation.Citation { return o.Citation })
		},
	)
}

func (r *Report) Degraded() []citation.Citation {
	return lo.FilterMap(r.Outcomes, func(o *Outcome, _ int) (citation.Citation, bool) {
		return o.Citation, o.Degraded
	})
}

// Complete reports whether every discovered citation ended DONE or SKIPPED
// and nothing was left behind by cancellation.
func (r *Report) Complete() bool {
	return len(r.NotReached) == 0 && r.Count(StateFailed) == 0
}

func (r *Report) Outcome(c citation.Citation) (*Outcome, bool) {
	return lo.Find(r.Outcomes, func(o *Outcome) bool { return o.Citation.Equal(c) })
}

func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d done, %d skipped, %d failed",
		r.RunID, r.Count(StateDone), r.Count(StateSkipped), r.Count(StateFailed))
	if d := len(r.Degraded()); d > 0 {
		fmt.Fprintf(&b, ", %d degraded", d)
	}
	if n := len(r.NotReached); n > 0 {
		fmt.Fprintf(&b, ", %d not reached (cancelled)", n)
	}
	for _, o := range r.Failures() {
		fmt.Fprintf(&b, "\n  %s: %s", o, o.Reason)
	}
	return b.String()
}
