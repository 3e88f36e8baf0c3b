package html2preview

import (
	"fmt"
	"io"
)

// JobFailure is one page that did not produce an image.
type JobFailure struct {
	RelativePath string `json:"path"`
	Reason       string `json:"reason"`  // NavigationTimeout, ElementNotFound, CaptureError, WriteError, ...
	Message      string `json:"message"` // Full error text
	Err          error  `json:"-"`
}

// RunReport aggregates the outcome of one run. Failed and Outputs follow
// discovery order, not completion order.
type RunReport struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    []JobFailure `json:"failed"`
	Outputs   []string     `json:"outputs"`

	failOnJobError bool
}

// newRunReport builds a report from results indexed in discovery order.
func newRunReport(total int, results []CaptureResult, failOnJobError bool) *RunReport {
	r := &RunReport{
		Total:          total,
		Failed:         []JobFailure{},
		Outputs:        []string{},
		failOnJobError: failOnJobError,
	}
	for _, res := range results {
		r.add(res)
	}
	return r
}

func (r *RunReport) add(res CaptureResult) {
	if res.Err != nil {
		r.Failed = append(r.Failed, JobFailure{
			RelativePath: res.Job.RelativePath,
			Reason:       Reason(res.Err),
			Message:      res.Err.Error(),
			Err:          res.Err,
		})
		return
	}
	r.Succeeded++
	r.Outputs = append(r.Outputs, res.OutputPath)
}

// FailedCount returns the number of failed pages.
func (r *RunReport) FailedCount() int {
	return len(r.Failed)
}

// Err returns ErrJobsFailed when the run was configured with
// FailOnJobError and at least one page failed. Otherwise nil: page
// failures alone do not fail a run.
func (r *RunReport) Err() error {
	if r == nil || !r.failOnJobError || len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", ErrJobsFailed, len(r.Failed), r.Total)
}

// WriteSummary prints one line per failure followed by the totals.
func (r *RunReport) WriteSummary(w io.Writer) {
	for _, f := range r.Failed {
		fmt.Fprintf(w, "FAILED %s: %s (%s)\n", f.RelativePath, f.Reason, f.Message)
	}
	fmt.Fprintf(w, "%d pages, %d succeeded, %d failed\n", r.Total, r.Succeeded, len(r.Failed))
}
