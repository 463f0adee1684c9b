package engine

import (
	"fmt"
	"time"
)

// Severity of a status line message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// StatusMessage is one user-visible message.
type StatusMessage struct {
	Severity Severity
	Text     string
	At       time.Time
}

func (m StatusMessage) String() string {
	return fmt.Sprintf("[%s] %s", m.Severity, m.Text)
}

const statusHistoryLimit = 64

// StatusLine holds the last user-visible message plus a short history.
// Owner-side only.
type StatusLine struct {
	clock   Clock
	current StatusMessage
	history []StatusMessage
	posted  int
}

// NewStatusLine creates an empty status line.
func NewStatusLine(clock Clock) *StatusLine {
	return &StatusLine{clock: clock}
}

func (l *StatusLine) set(sev Severity, text string) {
	m := StatusMessage{Severity: sev, Text: text, At: l.clock.Now()}
	l.current = m
	l.posted++
	l.history = append(l.history, m)
	if len(l.history) > statusHistoryLimit {
		l.history = l.history[len(l.history)-statusHistoryLimit:]
	}
}

// Info shows an informational message.
func (l *StatusLine) Info(text string) { l.set(SeverityInfo, text) }

// Warn shows a warning.
func (l *StatusLine) Warn(text string) { l.set(SeverityWarn, text) }

// Error shows an error. The text is shown verbatim.
func (l *StatusLine) Error(text string) { l.set(SeverityError, text) }

// Current returns the latest message.
func (l *StatusLine) Current() StatusMessage { return l.current }

// History returns a copy of the recent messages, oldest first.
func (l *StatusLine) History() []StatusMessage {
	out := make([]StatusMessage, len(l.history))
	copy(out, l.history)
	return out
}

// Posted returns how many messages were ever shown, including those dropped
// from the history.
func (l *StatusLine) Posted() int { return l.posted }
