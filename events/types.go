package events

import (
	"fmt"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	TypeSpawned   = "spawned"
	TypeCompleted = "completed"
	TypeCanceled  = "canceled"
	TypeDetached  = "detached"
	TypeFailed    = "failed"
)

var (
	spawnedJSON   = []byte(`{"type":"spawned"}`)
	completedJSON = []byte(`{"type":"completed"}`)
	canceledJSON  = []byte(`{"type":"canceled"}`)
	detachedJSON  = []byte(`{"type":"detached"}`)
	failedJSON    = []byte(`{"type":"failed"}`)
)

// Event is implemented by every lifecycle event.
type Event interface {
	Meta() Header
	lifecycleEvent()
}

// Task identifies the task an event is about.
type Task struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Executor string `json:"executor"`
}

// TaskOf converts the identity of a spawned unit.
func TaskOf(info taskrt.Info) Task {
	return Task{ID: info.ID, Kind: info.Kind.String(), Executor: info.Executor}
}

// Header holds the fields shared by all events.
type Header struct {
	EventID   uuid.UUID       `json:"event_id"`
	Task      Task            `json:"task"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

// NewHeader stamps a new event about task.
func NewHeader(task Task) Header {
	return Header{
		EventID:   uuid.New(),
		Task:      task,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}

type Spawned struct{ Header }

type Completed struct{ Header }

type Canceled struct{ Header }

type Detached struct{ Header }

// Failed reports a task that resolved with a fatal error. Error holds the
// message; the error value itself does not travel.
type Failed struct {
	Header
	Error string `json:"error"`
}

func (e Spawned) Meta() Header   { return e.Header }
func (e Completed) Meta() Header { return e.Header }
func (e Canceled) Meta() Header  { return e.Header }
func (e Detached) Meta() Header  { return e.Header }
func (e Failed) Meta() Header    { return e.Header }

func (Spawned) lifecycleEvent()   {}
func (Completed) lifecycleEvent() {}
func (Canceled) lifecycleEvent()  {}
func (Detached) lifecycleEvent()  {}
func (Failed) lifecycleEvent()    {}

func (h Header) marshal(result []byte) ([]byte, error) {
	var err error
	result, err = sjson.SetBytes(result, "event_id", h.EventID.String())
	if err != nil {
		return nil, err
	}

	taskBytes, err := json.Marshal(h.Task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "task", taskBytes)
	if err != nil {
		return nil, err
	}

	if !h.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", h.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *Header) unmarshal(data []byte, typ string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != typ {
		return fmt.Errorf("missing or invalid type, expected '%s'", typ)
	}

	eventID := gjson.GetBytes(data, "event_id")
	if !eventID.Exists() {
		return fmt.Errorf("missing required field 'event_id'")
	}
	if err := h.EventID.UnmarshalText([]byte(eventID.String())); err != nil {
		return fmt.Errorf("invalid event_id: %w", err)
	}

	task := gjson.GetBytes(data, "task")
	if !task.Exists() || !task.IsObject() {
		return fmt.Errorf("missing required field 'task'")
	}
	if err := json.Unmarshal([]byte(task.Raw), &h.Task); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if h.Task.ID == "" {
		return fmt.Errorf("missing required field 'task.id'")
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := h.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for Spawned
func (e Spawned) MarshalJSON() ([]byte, error) {
	return e.Header.marshal(spawnedJSON)
}

// UnmarshalJSON implements custom JSON unmarshaling for Spawned
func (e *Spawned) UnmarshalJSON(data []byte) error {
	return e.Header.unmarshal(data, TypeSpawned)
}

// MarshalJSON implements custom JSON marshaling for Completed
func (e Completed) MarshalJSON() ([]byte, error) {
	return e.Header.marshal(completedJSON)
}

// UnmarshalJSON implements custom JSON unmarshaling for Completed
func (e *Completed) UnmarshalJSON(data []byte) error {
	return e.Header.unmarshal(data, TypeCompleted)
}

// MarshalJSON implements custom JSON marshaling for Canceled
func (e Canceled) MarshalJSON() ([]byte, error) {
	return e.Header.marshal(canceledJSON)
}

// UnmarshalJSON implements custom JSON unmarshaling for Canceled
func (e *Canceled) UnmarshalJSON(data []byte) error {
	return e.Header.unmarshal(data, TypeCanceled)
}

// MarshalJSON implements custom JSON marshaling for Detached
func (e Detached) MarshalJSON() ([]byte, error) {
	return e.Header.marshal(detachedJSON)
}

// UnmarshalJSON implements custom JSON unmarshaling for Detached
func (e *Detached) UnmarshalJSON(data []byte) error {
	return e.Header.unmarshal(data, TypeDetached)
}

// MarshalJSON implements custom JSON marshaling for Failed
func (e Failed) MarshalJSON() ([]byte, error) {
	result, err := e.Header.marshal(failedJSON)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "error", e.Error)
}

// UnmarshalJSON implements custom JSON unmarshaling for Failed
func (e *Failed) UnmarshalJSON(data []byte) error {
	if err := e.Header.unmarshal(data, TypeFailed); err != nil {
		return err
	}
	msg := gjson.GetBytes(data, "error")
	if !msg.Exists() {
		return fmt.Errorf("missing required field 'error'")
	}
	e.Error = msg.String()
	return nil
}

// ToJSON encodes any event.
func ToJSON(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	return json.Marshal(event)
}

// FromJSON decodes an event of any type.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	var (
		event Event
		err   error
	)
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case TypeSpawned:
		var e Spawned
		err = e.UnmarshalJSON(data)
		event = e
	case TypeCompleted:
		var e Completed
		err = e.UnmarshalJSON(data)
		event = e
	case TypeCanceled:
		var e Canceled
		err = e.UnmarshalJSON(data)
		event = e
	case TypeDetached:
		var e Detached
		err = e.UnmarshalJSON(data)
		event = e
	case TypeFailed:
		var e Failed
		err = e.UnmarshalJSON(data)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type: %q", typ)
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}
