package domain

import (
	"context"
	"encoding/json"
	"time"
)

type Pool struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Subnet          string        `json:"subnet"`
	Mask            string        `json:"mask"`
	Gateway         string        `json:"gateway"`
	DNSPrimary      *string       `json:"dns_primary"`
	DNSSecondary    *string       `json:"dns_secondary"`
	AssignmentCount int           `json:"assignment_count"`
	Assignments     []*Assignment `json:"assignments,omitempty"`
}

type Assignment struct {
	ID             int              `json:"id"`
	PoolID         int              `json:"ip_pool_id"`
	IP             string           `json:"ip"`
	Status         AssignmentStatus `json:"status"`
	CustomerName   *string          `json:"customer_name"`
	CustomerID     *int             `json:"customer_id"`
	AssignmentType *string          `json:"assignment_type"`
	MACAddress     *string          `json:"mac_address"`
	LastSeen       *time.Time       `json:"last_seen"`
	Pool           *Pool            `json:"ip_pool,omitempty"`
}

// Nullable is one nullable column of a partial update. Set reports whether
// the update touches the column; Set with a nil Value writes null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func SetNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// UnmarshalJSON is only called for keys present in the document, so an
// absent key leaves Set false and an explicit null clears the column.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// PoolUpdate carries the fields of a partial pool update. A nil required
// field means "leave as is".
type PoolUpdate struct {
	Name         *string
	Subnet       *string
	Mask         *string
	Gateway      *string
	DNSPrimary   Nullable[string]
	DNSSecondary Nullable[string]
}

func (u PoolUpdate) IsEmpty() bool {
	return u.Name == nil && u.Subnet == nil && u.Mask == nil && u.Gateway == nil &&
		!u.DNSPrimary.Set && !u.DNSSecondary.Set
}

// AssignmentUpdate carries the fields of a partial assignment update. The IP
// literal and owning pool of an assignment are fixed at creation.
type AssignmentUpdate struct {
	Status         *AssignmentStatus
	CustomerName   Nullable[string]
	CustomerID     Nullable[int]
	AssignmentType Nullable[string]
	MACAddress     Nullable[string]
	LastSeen       Nullable[time.Time]
}

func (u AssignmentUpdate) IsEmpty() bool {
	return u.Status == nil && !u.CustomerName.Set && !u.CustomerID.Set &&
		!u.AssignmentType.Set && !u.MACAddress.Set && !u.LastSeen.Set
}

type AssignmentFilter struct {
	PoolID     *int
	Status     *AssignmentStatus
	CustomerID *int
	// IncludePool embeds the owning pool in every result.
	IncludePool bool
}

type PoolPage struct {
	Pools []*Pool
	Page  int
	Limit int
	Total int
	Pages int
}

// PoolUsage summarises how much of a pool's address space is in the ledger.
type PoolUsage struct {
	PoolID      int                      `json:"ip_pool_id"`
	Subnet      string                   `json:"subnet"`
	Capacity    uint64                   `json:"capacity"`
	Assignments int                      `json:"assignments"`
	ByStatus    map[AssignmentStatus]int `json:"by_status"`
}

type IPAMRepository interface {
	ListPools(ctx context.Context, offset, limit int) ([]*Pool, int, error)
	GetPool(ctx context.Context, id int) (*Pool, error)
	CreatePool(ctx context.Context, pool *Pool) error
	UpdatePool(ctx context.Context, id int, update PoolUpdate) (*Pool, error)
	DeletePool(ctx context.Context, id int) error

	CreateAssignment(ctx context.Context, assignment *Assignment) error
	GetAssignment(ctx context.Context, poolID, id int) (*Assignment, error)
	UpdateAssignment(ctx context.Context, poolID, id int, update AssignmentUpdate) (*Assignment, error)
	DeleteAssignment(ctx context.Context, poolID, id int) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)
	CountAssignmentsByStatus(ctx context.Context, poolID int) (map[AssignmentStatus]int, error)
}
