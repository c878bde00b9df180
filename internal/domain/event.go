package domain

import "time"

type EventAction string

const (
	EventCreated EventAction = "created"
	EventUpdated EventAction = "updated"
	EventDeleted EventAction = "deleted"
)

const (
	EntityPool       = "pool"
	EntityAssignment = "assignment"
)

// ChangeEvent describes one successful mutation of the registry or ledger.
type ChangeEvent struct {
	Entity       string      `json:"entity"`
	Action       EventAction `json:"action"`
	PoolID       int         `json:"ip_pool_id"`
	AssignmentID int         `json:"assignment_id,omitempty"`
	Pool         *Pool       `json:"pool,omitempty"`
	Assignment   *Assignment `json:"assignment,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Subject is the message subject the event is published on, e.g.
// "ippool.assignment.created".
func (e ChangeEvent) Subject() string {
	return "ippool." + e.Entity + "." + string(e.Action)
}
