package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/infrastructure/db"
)

const (
	poolColumns       = "p.id, p.name, p.subnet, p.mask, p.gateway, p.dns_primary, p.dns_secondary"
	poolReturning     = "id, name, subnet, mask, gateway, dns_primary, dns_secondary"
	assignmentColumns = "a.id, a.ip_pool_id, a.ip, a.status, a.customer_name, a.customer_id, a.assignment_type, a.mac_address, a.last_seen"
	assignmentReturn  = "id, ip_pool_id, ip, status, customer_name, customer_id, assignment_type, mac_address, last_seen"

	// IPs are ordered as plain byte strings, so "10.0.0.10" sorts before "10.0.0.9".
	assignmentOrder = `ORDER BY a.ip COLLATE "C" ASC, a.id ASC`
)

type IPAMRepository struct {
	db *db.DB
}

func NewIPAMRepository(db *db.DB) *IPAMRepository {
	return &IPAMRepository{db: db}
}

func (r *IPAMRepository) ListPools(ctx context.Context, offset, limit int) ([]*domain.Pool, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ip_pools`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count IP pools")
	}

	query := `
		SELECT ` + poolColumns + `, COUNT(a.id)
		FROM ip_pools p
		LEFT JOIN ip_assignments a ON a.ip_pool_id = p.id
		GROUP BY p.id
		ORDER BY p.name ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list IP pools")
	}
	defer rows.Close()

	pools := make([]*domain.Pool, 0)
	for rows.Next() {
		var row poolRow
		if err := rows.Scan(append(row.dest(), &row.count)...); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan IP pool row")
		}
		pools = append(pools, row.pool())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to iterate IP pools")
	}
	return pools, total, nil
}

func (r *IPAMRepository) GetPool(ctx context.Context, id int) (*domain.Pool, error) {
	query := `
		SELECT ` + poolColumns + `,
			(SELECT COUNT(*) FROM ip_assignments a WHERE a.ip_pool_id = p.id)
		FROM ip_pools p
		WHERE p.id = $1
	`
	var row poolRow
	err := r.db.QueryRowContext(ctx, query, id).Scan(append(row.dest(), &row.count)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPoolNotFound
		}
		return nil, errors.Wrap(err, "failed to get IP pool")
	}
	return row.pool(), nil
}

func (r *IPAMRepository) CreatePool(ctx context.Context, pool *domain.Pool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var existingID int
	err = tx.QueryRowContext(ctx, "SELECT id FROM ip_pools WHERE name = $1", pool.Name).Scan(&existingID)
	if err == nil {
		return domain.ErrPoolNameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "failed to check pool name uniqueness")
	}

	query := `
		INSERT INTO ip_pools (name, subnet, mask, gateway, dns_primary, dns_secondary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		pool.Name, pool.Subnet, pool.Mask, pool.Gateway,
		nullableString(pool.DNSPrimary), nullableString(pool.DNSSecondary),
	).Scan(&pool.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPoolNameTaken
		}
		return errors.Wrap(err, "failed to create IP pool")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	pool.AssignmentCount = 0
	return nil
}

func (r *IPAMRepository) UpdatePool(ctx context.Context, id int, update domain.PoolUpdate) (*domain.Pool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		SELECT ` + poolColumns + `,
			(SELECT COUNT(*) FROM ip_assignments a WHERE a.ip_pool_id = p.id)
		FROM ip_pools p
		WHERE p.id = $1
		FOR UPDATE OF p
	`
	var current poolRow
	if err := tx.QueryRowContext(ctx, query, id).Scan(append(current.dest(), &current.count)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPoolNotFound
		}
		return nil, errors.Wrap(err, "failed to lock IP pool")
	}

	if update.IsEmpty() {
		return current.pool(), nil
	}

	if update.Name != nil && *update.Name != current.name {
		var existingID int
		err = tx.QueryRowContext(ctx, "SELECT id FROM ip_pools WHERE name = $1 AND id <> $2", *update.Name, id).Scan(&existingID)
		if err == nil {
			return nil, domain.ErrPoolNameTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(err, "failed to check pool name uniqueness")
		}
	}

	var set setList
	set.addString("name", update.Name)
	set.addString("subnet", update.Subnet)
	set.addString("mask", update.Mask)
	set.addString("gateway", update.Gateway)
	set.addNullableString("dns_primary", update.DNSPrimary)
	set.addNullableString("dns_secondary", update.DNSSecondary)

	stmt := fmt.Sprintf("UPDATE ip_pools SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s",
		set.clause(), len(set.args)+1, poolReturning)
	var updated poolRow
	if err := tx.QueryRowContext(ctx, stmt, append(set.args, id)...).Scan(updated.dest()...); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrPoolNameTaken
		}
		return nil, errors.Wrap(err, "failed to update IP pool")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	updated.count = current.count
	return updated.pool(), nil
}

func (r *IPAMRepository) DeletePool(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var poolID int
	if err := tx.QueryRowContext(ctx, "SELECT id FROM ip_pools WHERE id = $1 FOR UPDATE", id).Scan(&poolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPoolNotFound
		}
		return errors.Wrap(err, "failed to lock IP pool")
	}

	var assigned int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1", id).Scan(&assigned); err != nil {
		return errors.Wrap(err, "failed to count pool assignments")
	}
	if assigned > 0 {
		return domain.ErrPoolHasAssignments
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM ip_pools WHERE id = $1", id); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrPoolHasAssignments
		}
		return errors.Wrap(err, "failed to delete IP pool")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// CreateAssignment inserts a ledger entry. The pool row is share-locked for the
// duration so the pool cannot be deleted underneath the insert, and the
// (ip_pool_id, ip) unique constraint settles concurrent inserts of one IP.
func (r *IPAMRepository) CreateAssignment(ctx context.Context, assignment *domain.Assignment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var poolID int
	if err := tx.QueryRowContext(ctx, "SELECT id FROM ip_pools WHERE id = $1 FOR SHARE", assignment.PoolID).Scan(&poolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPoolNotFound
		}
		return errors.Wrap(err, "failed to lock IP pool")
	}

	var existingID int
	err = tx.QueryRowContext(ctx, "SELECT id FROM ip_assignments WHERE ip_pool_id = $1 AND ip = $2",
		assignment.PoolID, assignment.IP).Scan(&existingID)
	if err == nil {
		return domain.ErrIPAlreadyAssigned
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "failed to check IP address")
	}

	query := `
		INSERT INTO ip_assignments (ip_pool_id, ip, status, customer_name, customer_id, assignment_type, mac_address, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		assignment.PoolID,
		assignment.IP,
		string(assignment.Status),
		nullableString(assignment.CustomerName),
		nullableInt(assignment.CustomerID),
		nullableString(assignment.AssignmentType),
		nullableString(assignment.MACAddress),
		nullableTime(assignment.LastSeen),
	).Scan(&assignment.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrIPAlreadyAssigned
		case isForeignKeyViolation(err):
			return domain.ErrPoolNotFound
		}
		return errors.Wrap(err, "failed to create IP assignment")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (r *IPAMRepository) GetAssignment(ctx context.Context, poolID, id int) (*domain.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM ip_assignments a WHERE a.id = $1 AND a.ip_pool_id = $2"
	var row assignmentRow
	if err := r.db.QueryRowContext(ctx, query, id, poolID).Scan(row.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, errors.Wrap(err, "failed to get IP assignment")
	}
	return row.assignment(), nil
}

func (r *IPAMRepository) UpdateAssignment(ctx context.Context, poolID, id int, update domain.AssignmentUpdate) (*domain.Assignment, error) {
	if update.IsEmpty() {
		return r.GetAssignment(ctx, poolID, id)
	}

	var set setList
	if update.Status != nil {
		set.add("status", string(*update.Status))
	}
	set.addNullableString("customer_name", update.CustomerName)
	if update.CustomerID.Set {
		set.add("customer_id", nullableInt(update.CustomerID.Value))
	}
	set.addNullableString("assignment_type", update.AssignmentType)
	set.addNullableString("mac_address", update.MACAddress)
	if update.LastSeen.Set {
		set.add("last_seen", nullableTime(update.LastSeen.Value))
	}

	stmt := fmt.Sprintf("UPDATE ip_assignments SET %s, updated_at = NOW() WHERE id = $%d AND ip_pool_id = $%d RETURNING %s",
		set.clause(), len(set.args)+1, len(set.args)+2, assignmentReturn)
	var row assignmentRow
	if err := r.db.QueryRowContext(ctx, stmt, append(set.args, id, poolID)...).Scan(row.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, errors.Wrap(err, "failed to update IP assignment")
	}
	return row.assignment(), nil
}

func (r *IPAMRepository) DeleteAssignment(ctx context.Context, poolID, id int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ip_assignments WHERE id = $1 AND ip_pool_id = $2", id, poolID)
	if err != nil {
		return errors.Wrap(err, "failed to delete IP assignment")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (r *IPAMRepository) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]*domain.Assignment, error) {
	var (
		conds []string
		args  []interface{}
	)
	where := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PoolID != nil {
		where("a.ip_pool_id = $%d", *filter.PoolID)
	}
	if filter.Status != nil {
		where("a.status = $%d", string(*filter.Status))
	}
	if filter.CustomerID != nil {
		where("a.customer_id = $%d", *filter.CustomerID)
	}

	var query strings.Builder
	query.WriteString("SELECT " + assignmentColumns)
	if filter.IncludePool {
		query.WriteString(", " + poolColumns + " FROM ip_assignments a JOIN ip_pools p ON p.id = a.ip_pool_id")
	} else {
		query.WriteString(" FROM ip_assignments a")
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" " + assignmentOrder)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list IP assignments")
	}
	defer rows.Close()

	assignments := make([]*domain.Assignment, 0)
	for rows.Next() {
		var (
			row  assignmentRow
			pool poolRow
		)
		dest := row.dest()
		if filter.IncludePool {
			dest = append(dest, pool.dest()...)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan IP assignment row")
		}
		a := row.assignment()
		if filter.IncludePool {
			a.Pool = pool.pool()
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate IP assignments")
	}
	return assignments, nil
}

func (r *IPAMRepository) CountAssignmentsByStatus(ctx context.Context, poolID int) (map[domain.AssignmentStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1 GROUP BY status", poolID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count IP assignments")
	}
	defer rows.Close()

	counts := make(map[domain.AssignmentStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		counts[domain.AssignmentStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate status counts")
	}
	return counts, nil
}

type poolRow struct {
	id                       int
	name, subnet, mask, gw   string
	dnsPrimary, dnsSecondary sql.NullString
	count                    int
}

func (p *poolRow) dest() []interface{} {
	return []interface{}{&p.id, &p.name, &p.subnet, &p.mask, &p.gw, &p.dnsPrimary, &p.dnsSecondary}
}

func (p *poolRow) pool() *domain.Pool {
	return &domain.Pool{
		ID:              p.id,
		Name:            p.name,
		Subnet:          p.subnet,
		Mask:            p.mask,
		Gateway:         p.gw,
		DNSPrimary:      stringPtr(p.dnsPrimary),
		DNSSecondary:    stringPtr(p.dnsSecondary),
		AssignmentCount: p.count,
	}
}

type assignmentRow struct {
	id, poolID     int
	ip, status     string
	customerName   sql.NullString
	customerID     sql.NullInt64
	assignmentType sql.NullString
	mac            sql.NullString
	lastSeen       pq.NullTime
}

func (a *assignmentRow) dest() []interface{} {
	return []interface{}{&a.id, &a.poolID, &a.ip, &a.status, &a.customerName, &a.customerID,
		&a.assignmentType, &a.mac, &a.lastSeen}
}

func (a *assignmentRow) assignment() *domain.Assignment {
	out := &domain.Assignment{
		ID:             a.id,
		PoolID:         a.poolID,
		IP:             a.ip,
		Status:         domain.AssignmentStatus(a.status),
		CustomerName:   stringPtr(a.customerName),
		AssignmentType: stringPtr(a.assignmentType),
		MACAddress:     stringPtr(a.mac),
	}
	if a.customerID.Valid {
		id := int(a.customerID.Int64)
		out.CustomerID = &id
	}
	if a.lastSeen.Valid {
		t := a.lastSeen.Time
		out.LastSeen = &t
	}
	return out
}

// setList accumulates "column = $n" clauses for a partial UPDATE.
type setList struct {
	clauses []string
	args    []interface{}
}

func (s *setList) add(column string, value interface{}) {
	s.args = append(s.args, value)
	s.clauses = append(s.clauses, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setList) addString(column string, value *string) {
	if value != nil {
		s.add(column, *value)
	}
}

// addNullableString writes NULL for a set field without a value.
func (s *setList) addNullableString(column string, value domain.Nullable[string]) {
	if value.Set {
		s.add(column, nullableString(value.Value))
	}
}

func (s *setList) clause() string {
	return strings.Join(s.clauses, ", ")
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
