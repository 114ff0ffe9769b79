// Package events describes task lifecycle events and their wire format.
//
// Every event carries its own id, the task it is about and a timestamp:
//
//   - Spawned: an executor accepted a unit of work
//   - Completed: the task produced a result
//   - Canceled: the task was canceled without a result
//   - Detached: the task was released and will never be observed
//   - Failed: the task resolved with a fatal error
//
// Events encode as JSON objects tagged with a "type" field, so a consumer can
// decode any event with FromJSON. Schema describes that format for consumers
// outside Go.
//
// Observer turns the transitions reported by an executor into events and
// publishes them, typically on a broker topic. Hook is the subscriber side.
package events
