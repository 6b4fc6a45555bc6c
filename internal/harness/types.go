package harness

import "github.com/axisenergy/checklist/internal/ir"

// Trace event types.
const (
	EventAnswer     = "answer"
	EventRejected   = "rejected"
	EventActivate   = "activate"
	EventDeactivate = "deactivate"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type      string     `json:"type"`
	MeasureID string     `json:"measure_id,omitempty"`
	Value     ir.IRValue `json:"value,omitempty"`

	// Reason and Sweep are set on activate events from the activation trace.
	Reason string `json:"reason,omitempty"`
	Sweep  int    `json:"sweep,omitempty"`

	Seq int64 `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Active is the checklist after the last step.
	Active []string `json:"active"`

	// Evaluations counts the evaluations recorded during the run.
	Evaluations int `json:"evaluations"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Active: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddAnswerTrace adds an accepted answer to the trace.
func (r *Result) AddAnswerTrace(measureID string, value ir.IRValue, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      EventAnswer,
		MeasureID: measureID,
		Value:     value,
		Seq:       seq,
	})
}

// AddRejectedTrace adds a rejected answer to the trace. seq is the clock
// reading at rejection; nothing was written under it.
func (r *Result) AddRejectedTrace(measureID string, value ir.IRValue, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      EventRejected,
		MeasureID: measureID,
		Value:     value,
		Seq:       seq,
	})
}
