// Package events fans record changes out to websocket and TCP subscribers.
package events

import "time"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one record change. Record is the record as returned by the API.
type Event struct {
	Action     string    `json:"action"`
	Collection string    `json:"collection"`
	Record     any       `json:"record"`
	At         time.Time `json:"at"`
}
