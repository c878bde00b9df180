// Package memory is a process-local IPAMRepository used for development and
// tests. It enforces the same invariants as the Postgres repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zinrai/ippool-go/internal/domain"
)

type IPAMRepository struct {
	mu          sync.RWMutex
	pools       map[int]*domain.Pool
	assignments map[int]*domain.Assignment
	nextPoolID  int
	nextAssign  int
}

func NewIPAMRepository() *IPAMRepository {
	return &IPAMRepository{
		pools:       make(map[int]*domain.Pool),
		assignments: make(map[int]*domain.Assignment),
		nextPoolID:  1,
		nextAssign:  1,
	}
}

func (r *IPAMRepository) ListPools(ctx context.Context, offset, limit int) ([]*domain.Pool, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		all = append(all, r.poolCopy(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return []*domain.Pool{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *IPAMRepository) GetPool(ctx context.Context, id int) (*domain.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[id]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return r.poolCopy(p), nil
}

func (r *IPAMRepository) CreatePool(ctx context.Context, pool *domain.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(pool.Name, 0) {
		return domain.ErrPoolNameTaken
	}
	pool.ID = r.nextPoolID
	r.nextPoolID++
	pool.AssignmentCount = 0

	stored := *pool
	stored.Assignments = nil
	stored.DNSPrimary = copyString(pool.DNSPrimary)
	stored.DNSSecondary = copyString(pool.DNSSecondary)
	r.pools[pool.ID] = &stored
	return nil
}

func (r *IPAMRepository) UpdatePool(ctx context.Context, id int, update domain.PoolUpdate) (*domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[id]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	if update.Name != nil && *update.Name != p.Name && r.nameTaken(*update.Name, id) {
		return nil, domain.ErrPoolNameTaken
	}

	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Subnet != nil {
		p.Subnet = *update.Subnet
	}
	if update.Mask != nil {
		p.Mask = *update.Mask
	}
	if update.Gateway != nil {
		p.Gateway = *update.Gateway
	}
	if update.DNSPrimary.Set {
		p.DNSPrimary = copyString(update.DNSPrimary.Value)
	}
	if update.DNSSecondary.Set {
		p.DNSSecondary = copyString(update.DNSSecondary.Value)
	}
	return r.poolCopy(p), nil
}

func (r *IPAMRepository) DeletePool(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[id]; !ok {
		return domain.ErrPoolNotFound
	}
	if r.countAssignments(id) > 0 {
		return domain.ErrPoolHasAssignments
	}
	delete(r.pools, id)
	return nil
}

func (r *IPAMRepository) CreateAssignment(ctx context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[assignment.PoolID]; !ok {
		return domain.ErrPoolNotFound
	}
	for _, a := range r.assignments {
		if a.PoolID == assignment.PoolID && a.IP == assignment.IP {
			return domain.ErrIPAlreadyAssigned
		}
	}
	assignment.ID = r.nextAssign
	r.nextAssign++

	stored := assignmentCopy(assignment)
	stored.Pool = nil
	r.assignments[assignment.ID] = stored
	return nil
}

func (r *IPAMRepository) GetAssignment(ctx context.Context, poolID, id int) (*domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[id]
	if !ok || a.PoolID != poolID {
		return nil, domain.ErrAssignmentNotFound
	}
	return assignmentCopy(a), nil
}

func (r *IPAMRepository) UpdateAssignment(ctx context.Context, poolID, id int, update domain.AssignmentUpdate) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[id]
	if !ok || a.PoolID != poolID {
		return nil, domain.ErrAssignmentNotFound
	}
	if update.Status != nil {
		a.Status = *update.Status
	}
	if update.CustomerName.Set {
		a.CustomerName = copyString(update.CustomerName.Value)
	}
	if update.CustomerID.Set {
		a.CustomerID = nil
		if update.CustomerID.Value != nil {
			id := *update.CustomerID.Value
			a.CustomerID = &id
		}
	}
	if update.AssignmentType.Set {
		a.AssignmentType = copyString(update.AssignmentType.Value)
	}
	if update.MACAddress.Set {
		a.MACAddress = copyString(update.MACAddress.Value)
	}
	if update.LastSeen.Set {
		a.LastSeen = nil
		if update.LastSeen.Value != nil {
			t := *update.LastSeen.Value
			a.LastSeen = &t
		}
	}
	return assignmentCopy(a), nil
}

func (r *IPAMRepository) DeleteAssignment(ctx context.Context, poolID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[id]
	if !ok || a.PoolID != poolID {
		return domain.ErrAssignmentNotFound
	}
	delete(r.assignments, id)
	return nil
}

func (r *IPAMRepository) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]*domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Assignment, 0)
	for _, a := range r.assignments {
		if filter.PoolID != nil && a.PoolID != *filter.PoolID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && (a.CustomerID == nil || *a.CustomerID != *filter.CustomerID) {
			continue
		}
		c := assignmentCopy(a)
		if filter.IncludePool {
			c.Pool = r.poolCopy(r.pools[a.PoolID])
		}
		out = append(out, c)
	}
	// Byte-wise string order, matching the Postgres repository.
	sort.Slice(out, func(i, j int) bool {
		if out[i].IP != out[j].IP {
			return out[i].IP < out[j].IP
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *IPAMRepository) CountAssignmentsByStatus(ctx context.Context, poolID int) (map[domain.AssignmentStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.AssignmentStatus]int)
	for _, a := range r.assignments {
		if a.PoolID == poolID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (r *IPAMRepository) nameTaken(name string, exceptID int) bool {
	for id, p := range r.pools {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

func (r *IPAMRepository) countAssignments(poolID int) int {
	n := 0
	for _, a := range r.assignments {
		if a.PoolID == poolID {
			n++
		}
	}
	return n
}

// poolCopy must be called with r.mu held.
func (r *IPAMRepository) poolCopy(p *domain.Pool) *domain.Pool {
	c := *p
	c.DNSPrimary = copyString(p.DNSPrimary)
	c.DNSSecondary = copyString(p.DNSSecondary)
	c.AssignmentCount = r.countAssignments(p.ID)
	c.Assignments = nil
	return &c
}

func assignmentCopy(a *domain.Assignment) *domain.Assignment {
	c := *a
	c.CustomerName = copyString(a.CustomerName)
	c.AssignmentType = copyString(a.AssignmentType)
	c.MACAddress = copyString(a.MACAddress)
	if a.CustomerID != nil {
		id := *a.CustomerID
		c.CustomerID = &id
	}
	if a.LastSeen != nil {
		t := *a.LastSeen
		c.LastSeen = &t
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
