package harness

import (
	"fmt"
	"strings"
)

// Trace event kinds.
const (
	EventStep   = "step"
	EventCall   = "call"
	EventRemap  = "remap"
	EventStatus = "status"
	EventError  = "error"
)

// TraceEvent is one line of a scenario trace.
type TraceEvent struct {
	Step int    `json:"step"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// String renders the event as a trace line.
func (e TraceEvent) String() string {
	return fmt.Sprintf("%02d %s %s", e.Step, e.Kind, e.Text)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step behaved as expected and every expect
	// clause held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(step int, kind, format string, args ...any) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Kind: kind, Text: fmt.Sprintf(format, args...)})
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
