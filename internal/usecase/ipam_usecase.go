package usecase

import (
	"context"
	"net"
	"strings"

	"code.cloudfoundry.org/clock"
	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/sirupsen/logrus"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/logger"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// EventPublisher receives a ChangeEvent after every successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.ChangeEvent) error { return nil }

type Option func(*IPAMUseCase)

func WithPublisher(p EventPublisher) Option {
	return func(uc *IPAMUseCase) {
		if p != nil {
			uc.publisher = p
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(uc *IPAMUseCase) {
		if c != nil {
			uc.clock = c
		}
	}
}

type IPAMUseCase struct {
	repo      domain.IPAMRepository
	publisher EventPublisher
	clock     clock.Clock
}

func NewIPAMUseCase(repo domain.IPAMRepository, opts ...Option) *IPAMUseCase {
	uc := &IPAMUseCase{
		repo:      repo,
		publisher: nopPublisher{},
		clock:     clock.NewClock(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type CreatePoolInput struct {
	Name         string
	Subnet       string
	Mask         string
	Gateway      string
	DNSPrimary   *string
	DNSSecondary *string
}

type AddAssignmentInput struct {
	IP             string
	Status         *domain.AssignmentStatus
	CustomerName   *string
	CustomerID     *int
	AssignmentType *string
	MACAddress     *string
}

// ListPools returns one page of pools ordered by name. Non-positive page or
// limit values fall back to the defaults.
func (uc *IPAMUseCase) ListPools(ctx context.Context, page, limit int) (*domain.PoolPage, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	pools, total, err := uc.repo.ListPools(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &domain.PoolPage{
		Pools: pools,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// GetPool returns the pool together with its full assignment collection.
func (uc *IPAMUseCase) GetPool(ctx context.Context, id int) (*domain.Pool, error) {
	pool, err := uc.repo.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := uc.repo.ListAssignments(ctx, domain.AssignmentFilter{PoolID: &id})
	if err != nil {
		return nil, err
	}
	pool.Assignments = assignments
	return pool, nil
}

func (uc *IPAMUseCase) CreatePool(ctx context.Context, in CreatePoolInput) (*domain.Pool, error) {
	if in.Name == "" || in.Subnet == "" || in.Mask == "" || in.Gateway == "" {
		return nil, domain.ErrPoolFieldsRequired
	}
	pool := &domain.Pool{
		Name:         in.Name,
		Subnet:       in.Subnet,
		Mask:         in.Mask,
		Gateway:      in.Gateway,
		DNSPrimary:   in.DNSPrimary,
		DNSSecondary: in.DNSSecondary,
	}
	if err := uc.repo.CreatePool(ctx, pool); err != nil {
		return nil, err
	}
	logger.G(ctx).WithFields(logrus.Fields{"pool_id": pool.ID, "name": pool.Name}).Info("IP pool created")
	uc.publish(ctx, domain.ChangeEvent{Entity: domain.EntityPool, Action: domain.EventCreated, PoolID: pool.ID, Pool: pool})
	return pool, nil
}

// UpdatePool applies a partial update. Required fields may be changed but
// not cleared. An empty update returns the pool unchanged.
func (uc *IPAMUseCase) UpdatePool(ctx context.Context, id int, update domain.PoolUpdate) (*domain.Pool, error) {
	for _, f := range []*string{update.Name, update.Subnet, update.Mask, update.Gateway} {
		if f != nil && *f == "" {
			return nil, domain.ErrPoolFieldsRequired
		}
	}
	if update.IsEmpty() {
		return uc.repo.GetPool(ctx, id)
	}
	pool, err := uc.repo.UpdatePool(ctx, id, update)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.ChangeEvent{Entity: domain.EntityPool, Action: domain.EventUpdated, PoolID: pool.ID, Pool: pool})
	return pool, nil
}

func (uc *IPAMUseCase) DeletePool(ctx context.Context, id int) error {
	if err := uc.repo.DeletePool(ctx, id); err != nil {
		return err
	}
	logger.G(ctx).WithField("pool_id", id).Info("IP pool deleted")
	uc.publish(ctx, domain.ChangeEvent{Entity: domain.EntityPool, Action: domain.EventDeleted, PoolID: id})
	return nil
}

// AddAssignment records a new ledger entry in pool poolID. Status defaults to
// available, and last_seen is stamped only for active assignment types.
func (uc *IPAMUseCase) AddAssignment(ctx context.Context, poolID int, in AddAssignmentInput) (*domain.Assignment, error) {
	if in.IP == "" {
		return nil, domain.ErrIPRequired
	}
	a := &domain.Assignment{
		PoolID:         poolID,
		IP:             in.IP,
		Status:         domain.DefaultStatus,
		CustomerName:   in.CustomerName,
		CustomerID:     in.CustomerID,
		AssignmentType: in.AssignmentType,
		MACAddress:     in.MACAddress,
	}
	if in.Status != nil && *in.Status != "" {
		a.Status = *in.Status
	}
	if in.AssignmentType != nil && *in.AssignmentType == domain.AssignmentTypeActive {
		now := uc.clock.Now().UTC()
		a.LastSeen = &now
	}
	if err := uc.repo.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	logger.G(ctx).WithFields(logrus.Fields{
		"pool_id":       poolID,
		"assignment_id": a.ID,
		"ip":            a.IP,
		"status":        a.Status,
	}).Info("IP assignment created")
	uc.publish(ctx, domain.ChangeEvent{
		Entity:       domain.EntityAssignment,
		Action:       domain.EventCreated,
		PoolID:       poolID,
		AssignmentID: a.ID,
		Assignment:   a,
	})
	return a, nil
}

func (uc *IPAMUseCase) UpdateAssignment(ctx context.Context, poolID, id int, update domain.AssignmentUpdate) (*domain.Assignment, error) {
	if update.IsEmpty() {
		return uc.repo.GetAssignment(ctx, poolID, id)
	}
	a, err := uc.repo.UpdateAssignment(ctx, poolID, id, update)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.ChangeEvent{
		Entity:       domain.EntityAssignment,
		Action:       domain.EventUpdated,
		PoolID:       poolID,
		AssignmentID: a.ID,
		Assignment:   a,
	})
	return a, nil
}

func (uc *IPAMUseCase) DeleteAssignment(ctx context.Context, poolID, id int) error {
	if err := uc.repo.DeleteAssignment(ctx, poolID, id); err != nil {
		return err
	}
	logger.G(ctx).WithFields(logrus.Fields{"pool_id": poolID, "assignment_id": id}).Info("IP assignment deleted")
	uc.publish(ctx, domain.ChangeEvent{
		Entity:       domain.EntityAssignment,
		Action:       domain.EventDeleted,
		PoolID:       poolID,
		AssignmentID: id,
	})
	return nil
}

// ListPoolAssignments lists the assignments of one pool. The pool must exist.
func (uc *IPAMUseCase) ListPoolAssignments(ctx context.Context, poolID int, filter domain.AssignmentFilter) ([]*domain.Assignment, error) {
	if _, err := uc.repo.GetPool(ctx, poolID); err != nil {
		return nil, err
	}
	filter.PoolID = &poolID
	filter.IncludePool = false
	return uc.repo.ListAssignments(ctx, filter)
}

// ListAssignments lists assignments across all pools with the owning pool
// embedded in each result.
func (uc *IPAMUseCase) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]*domain.Assignment, error) {
	filter.IncludePool = true
	return uc.repo.ListAssignments(ctx, filter)
}

func (uc *IPAMUseCase) PoolUsage(ctx context.Context, poolID int) (*domain.PoolUsage, error) {
	pool, err := uc.repo.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	counts, err := uc.repo.CountAssignmentsByStatus(ctx, poolID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &domain.PoolUsage{
		PoolID:      pool.ID,
		Subnet:      pool.Subnet,
		Capacity:    subnetCapacity(pool.Subnet, pool.Mask),
		Assignments: total,
		ByStatus:    counts,
	}, nil
}

// subnetCapacity counts the addresses in subnet. The subnet may be a CIDR or
// a bare network address qualified by a dotted mask. Unparseable input
// yields 0.
func subnetCapacity(subnet, mask string) uint64 {
	subnet = strings.TrimSpace(subnet)
	if _, network, err := net.ParseCIDR(subnet); err == nil {
		return cidr.AddressCount(network)
	}
	ip := net.ParseIP(subnet)
	m := net.ParseIP(strings.TrimSpace(mask))
	if ip == nil || m == nil {
		return 0
	}
	var ipMask net.IPMask
	if ip4 := ip.To4(); ip4 != nil {
		m4 := m.To4()
		if m4 == nil {
			return 0
		}
		ip, ipMask = ip4, net.IPMask(m4)
	} else {
		ipMask = net.IPMask(m.To16())
	}
	if _, bits := ipMask.Size(); bits == 0 {
		return 0
	}
	return cidr.AddressCount(&net.IPNet{IP: ip.Mask(ipMask), Mask: ipMask})
}

// publish is best effort; a failed publish never fails the mutation.
func (uc *IPAMUseCase) publish(ctx context.Context, event domain.ChangeEvent) {
	event.OccurredAt = uc.clock.Now().UTC()
	if err := uc.publisher.Publish(ctx, event); err != nil {
		logger.G(ctx).WithError(err).WithField("subject", event.Subject()).Warn("Failed to publish change event")
	}
}
