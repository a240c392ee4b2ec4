// Package audit provides audit logging for configuration store mutations.
package audit

import (
	"fmt"
	"time"
)

// Event represents an auditable configuration change event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	ECID      string    `json:"ec_id,omitempty"`
	Operation string    `json:"operation"`
	Entity    string    `json:"entity,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Online    bool      `json:"online"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	ClientIP  string    `json:"client_ip,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// EventType categorizes audit events.
type EventType string

const (
	EventTypeSessionOpen  EventType = "session_open"
	EventTypeSessionClose EventType = "session_close"
	EventTypeMutate       EventType = "mutate"
	EventTypeCommit       EventType = "commit"
	EventTypeDiscard      EventType = "discard"
)

// Severity indicates the importance of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Filter defines criteria for querying audit events.
type Filter struct {
	User        string
	Entity      string
	EntityID    string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event for operation, run by user against
// the graph in its current online/offline mode.
func NewEvent(user, operation string, online bool) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Operation: operation,
		Online:    online,
	}
}

// WithEntity records which entity kind/uuid this event mutated.
func (e *Event) WithEntity(kind, id string) *Event {
	e.Entity = kind
	e.EntityID = id
	return e
}

// WithECID records the reservation execution context this event ran under.
func (e *Event) WithECID(ecID string) *Event {
	e.ECID = ecID
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
