package provisioning

import (
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog"
)

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	// Printf logs a free-form progress line.
	Printf(format string, v ...any)

	// Warn logs a non-fatal problem.
	Warn(err error, msg string)

	// Event emits a structured event
	Event(event Event)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "storage", "model")
	Message   string            // Human-readable message
	Resource  string            // Resource name if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a provisioning phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a provisioning phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a provisioning phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreated indicates a resource was created successfully.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already exists.
	EventResourceExists EventType = "resource.exists"
	// EventResourceDeleted indicates a resource was released.
	EventResourceDeleted EventType = "resource.deleted"

	// EventStateChanged indicates the session moved to a new state.
	EventStateChanged EventType = "state.changed"
)

// LogObserver implements Observer on top of a zerolog logger.
type LogObserver struct {
	log    zerolog.Logger
	fields map[string]string
}

// NewLogObserver creates an observer writing to logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{log: logger, fields: map[string]string{}}
}

// Printf implements Observer.
func (o *LogObserver) Printf(format string, v ...any) {
	o.with(o.log.Info()).Msg(fmt.Sprintf(format, v...))
}

// Warn implements Observer.
func (o *LogObserver) Warn(err error, msg string) {
	o.with(o.log.Warn()).Err(err).Msg(msg)
}

// Event implements Observer.
func (o *LogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var e *zerolog.Event
	switch event.Type {
	case EventPhaseFailed:
		e = o.log.Error()
	case EventStateChanged:
		e = o.log.Debug()
	default:
		e = o.log.Info()
	}

	e = o.with(e).Str("event", string(event.Type)).Time("at", event.Timestamp)
	if event.Phase != "" {
		e = e.Str("phase", event.Phase)
	}
	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}
	for k, v := range event.Fields {
		e = e.Str(k, v)
	}
	e.Msg(event.Message)
}

// WithFields implements Observer.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	merged := maps.Clone(o.fields)
	maps.Copy(merged, fields)
	return &LogObserver{log: o.log, fields: merged}
}

func (o *LogObserver) with(e *zerolog.Event) *zerolog.Event {
	for k, v := range o.fields {
		e = e.Str(k, v)
	}
	return e
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogOutcome logs an ensure result as resource.created or resource.exists.
func LogOutcome(observer Observer, phase, resourceType, resourceName string, outcome Outcome) {
	eventType := EventResourceCreated
	msg := fmt.Sprintf("%s created", resourceType)
	if outcome == AlreadyPresent {
		eventType = EventResourceExists
		msg = fmt.Sprintf("%s already present", resourceType)
	}
	observer.Event(Event{
		Type:     eventType,
		Phase:    phase,
		Resource: resourceName,
		Message:  msg,
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogResourceDeleted logs a successful teardown.
func LogResourceDeleted(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s released", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}
