package domain

// AssignmentStatus is the ledger state of an assignment. Callers may write any
// value; the constants below are the ones the service itself understands.
type AssignmentStatus string

const (
	StatusAvailable AssignmentStatus = "available"
	StatusActive    AssignmentStatus = "active"
	StatusReserved  AssignmentStatus = "reserved"
	StatusBlocked   AssignmentStatus = "blocked"
)

// DefaultStatus is written when an assignment is created without a status.
const DefaultStatus = StatusAvailable

// AssignmentTypeActive marks an assignment as live; last_seen is stamped at creation.
const AssignmentTypeActive = "active"

// Known reports whether s is one of the recognised members. Unknown values
// are still valid and are stored verbatim.
func (s AssignmentStatus) Known() bool {
	switch s {
	case StatusAvailable, StatusActive, StatusReserved, StatusBlocked:
		return true
	}
	return false
}

func (s AssignmentStatus) String() string {
	return string(s)
}
