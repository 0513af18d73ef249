package entities

// Result is published on the results channel by the worker that won the
// lock for Origin.
type Result struct {
	ID     string
	Output []byte
	Origin Job
}

func NewResult(job Job, output []byte) Result {
	return Result{ID: job.ID, Output: output, Origin: job}
}

// Failed reports the empty-output sentinel. A converted file is never zero
// bytes long.
func (r Result) Failed() bool { return len(r.Output) == 0 }
