// Package stage executes one slice of the test collection: every test in
// its boundary, in order, in an isolated subprocess per test.
//
// A stage shares nothing mutable with its siblings. Whether the sibling
// stages run on this machine or elsewhere, the only inputs a stage consumes
// are the immutable collection definition and its own boundary, and its only
// output is the Result. A failing test never stops the rest of the slice;
// every failing identifier is enumerated so the hosting pipeline can report
// them without rerunning anything.
package stage

import "fmt"

// Failure records one failing test with the output it produced.
type Failure struct {
	Test   string
	Output string
	Err    error
}

// Result is the outcome of one stage run.
type Result struct {
	Stage    string
	Total    int
	Failures []Failure
}

// OK reports whether every test in the stage's slice passed. An empty slice
// trivially succeeds.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

// FailedTests returns the identifiers of every failing test, in run order.
func (r *Result) FailedTests() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Test)
	}
	return out
}

// Err converts the result into an error suitable for the pipeline verdict,
// or nil when the stage succeeded.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("stage %s: %d of %d test(s) failed: %v", r.Stage, len(r.Failures), r.Total, r.FailedTests())
}
