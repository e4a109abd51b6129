package models

import (
	"fmt"
	"time"
)

// CaseKind identifies one of the three validation phases run per template.
type CaseKind string

const (
	CaseStructure CaseKind = "install" // Generated file-system shape
	CaseDev       CaseKind = "dev"     // Dev server liveness and HTTP probe
	CaseBuild     CaseKind = "build"   // Production build artifacts
)

// CaseKinds lists the phases in the order they run for one template.
var CaseKinds = []CaseKind{CaseStructure, CaseDev, CaseBuild}

// CaseResult is the pass/fail outcome of one validation case.
type CaseResult struct {
	Template  Template      // Template the case is bound to
	Kind      CaseKind      // Which phase ran
	Passed    bool          // True when the case succeeded
	Message   string        // Human-readable diagnostic (empty on success)
	Error     error         // Underlying error when the case failed
	Output    string        // Tail of captured subprocess output, for diagnostics
	Duration  time.Duration // Wall time of the case, setup wait included
	StartedAt time.Time     // When the case started
}

// Label returns the display name of the case, e.g. "minimal (dev)".
func (r CaseResult) Label() string {
	return fmt.Sprintf("%s (%s)", r.Template.Name, r.Kind)
}

// Status returns "PASS" or "FAIL".
func (r CaseResult) Status() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

// ProbeResult is what the dev server answered to the readiness probe.
type ProbeResult struct {
	StatusCode int
	Body       string
}

// RunResult aggregates every case outcome of one harness run.
type RunResult struct {
	RunID     string        // Unique identifier of the run
	Revision  string        // Template revision under test
	Cases     []CaseResult  // Results in template order, then case order
	Total     int           // Number of cases run
	Passed    int           // Number of passing cases
	Failed    int           // Number of failing cases
	Duration  time.Duration // Total run time
	StartedAt time.Time     // When the run started
}

// Add appends a case result and updates the counters.
func (r *RunResult) Add(c CaseResult) {
	r.Cases = append(r.Cases, c)
	r.Total++
	if c.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// FailedCases returns the failing cases in run order.
func (r *RunResult) FailedCases() []CaseResult {
	var failed []CaseResult
	for _, c := range r.Cases {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// OK reports whether every case passed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}
