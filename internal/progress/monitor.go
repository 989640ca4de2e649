// Package progress carries solver events to observers and stop requests
// back to the solver.
package progress

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Event is one of Message, Snapshot or Restarted.
type Event interface {
	kind() string
}

// Message is free-form text. Fatal marks the error that ended a run.
type Message struct {
	Text  string `json:"text"`
	Fatal bool   `json:"fatal,omitempty"`
}

// Snapshot samples the monitored particle after a completed step.
type Snapshot struct {
	Step     int     `json:"step"`
	Time     float64 `json:"time"`
	Dt       float64 `json:"dt"`
	Particle int     `json:"particle"`
	X        r3.Vec  `json:"x"`
	V        r3.Vec  `json:"v"`
	A        r3.Vec  `json:"a"`
}

// Restarted reports a run resumed from a checkpoint.
type Restarted struct {
	Path string  `json:"path"`
	Step int     `json:"step"`
	Time float64 `json:"time"`
}

func (Message) kind() string   { return "message" }
func (Snapshot) kind() string  { return "snapshot" }
func (Restarted) kind() string { return "restarted" }

// Kind names the event type for transports.
func Kind(e Event) string { return e.kind() }

// Monitor receives events and answers stop queries. ShouldStop is asked once
// per completed step with the number of the step that would run next.
type Monitor interface {
	Report(Event)
	ShouldStop(next int) bool
}

// Funcs adapts plain functions to a Monitor. Nil fields are no-ops.
type Funcs struct {
	OnReport func(Event)
	Stop     func(next int) bool
}

func (f Funcs) Report(e Event) {
	if f.OnReport != nil {
		f.OnReport(e)
	}
}

func (f Funcs) ShouldStop(next int) bool {
	return f.Stop != nil && f.Stop(next)
}

// Multi fans events out to every monitor and stops when any of them asks.
type Multi []Monitor

func (m Multi) Report(e Event) {
	for _, mon := range m {
		mon.Report(e)
	}
}

func (m Multi) ShouldStop(next int) bool {
	stop := false
	for _, mon := range m {
		// every monitor is polled so each sees the step count
		if mon.ShouldStop(next) {
			stop = true
		}
	}
	return stop
}

// Nop discards events and never stops.
type Nop struct{}

func (Nop) Report(Event)        {}
func (Nop) ShouldStop(int) bool { return false }
