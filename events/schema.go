package events

import (
	"reflect"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// Types lists the event types in the order they are usually seen.
var Types = []string{TypeSpawned, TypeCompleted, TypeCanceled, TypeDetached, TypeFailed}

// Schemas returns the JSON schema of each event type, keyed by type.
func Schemas() *orderedmap.OrderedMap[string, *jsonschema.Schema] {
	out := orderedmap.New[string, *jsonschema.Schema]()
	for _, typ := range Types {
		out.Set(typ, eventSchema(typ))
	}
	return out
}

// Schema returns a schema accepting any event.
func Schema() *jsonschema.Schema {
	all := Schemas()
	schema := &jsonschema.Schema{
		Version: jsonschema.Version,
		Title:   "taskrt task lifecycle event",
		OneOf:   make([]*jsonschema.Schema, 0, all.Len()),
	}
	for pair := all.Oldest(); pair != nil; pair = pair.Next() {
		schema.OneOf = append(schema.OneOf, pair.Value)
	}
	return schema
}

func eventSchema(typ string) *jsonschema.Schema {
	task := reflector.ReflectFromType(reflect.TypeOf(Task{}))
	task.Version = ""

	props := orderedmap.New[string, *jsonschema.Schema]()
	props.Set("type", &jsonschema.Schema{Type: "string", Const: typ})
	props.Set("event_id", &jsonschema.Schema{Type: "string", Format: "uuid"})
	props.Set("task", task)
	props.Set("timestamp", &jsonschema.Schema{Type: "string", Format: "date-time"})

	required := []string{"type", "event_id", "task"}
	if typ == TypeFailed {
		props.Set("error", &jsonschema.Schema{Type: "string"})
		required = append(required, "error")
	}

	return &jsonschema.Schema{
		Title:                typ,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}
