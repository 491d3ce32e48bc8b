package notify

import "log"

// Severity classifies a user-facing message.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Notifier is the side channel the engine uses to surface human-readable
// messages. Calls are fire-and-forget: they must not block or fail engine
// logic.
type Notifier interface {
	Emit(message string, severity Severity)
}

// Func adapts a function to the Notifier interface.
type Func func(message string, severity Severity)

func (f Func) Emit(message string, severity Severity) { f(message, severity) }

// Logger emits messages through the standard logger.
type Logger struct {
	Log *log.Logger
}

func (l Logger) Emit(message string, severity Severity) {
	logger := l.Log
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[%s] %s", severity, message)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Emit(string, Severity) {}

// Message is one recorded notification.
type Message struct {
	Text     string
	Severity Severity
}

// Recorder collects messages, newest last. Used by tests and by the HTTP
// layer to return the messages produced by an operation.
type Recorder struct {
	Messages []Message
}

func (r *Recorder) Emit(message string, severity Severity) {
	r.Messages = append(r.Messages, Message{Text: message, Severity: severity})
}
