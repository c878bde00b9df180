package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/infrastructure/db"
)

var (
	poolCols       = []string{"id", "name", "subnet", "mask", "gateway", "dns_primary", "dns_secondary"}
	assignmentCols = []string{"id", "ip_pool_id", "ip", "status", "customer_name", "customer_id", "assignment_type", "mac_address", "last_seen"}
)

func newMockRepo(t *testing.T) (*IPAMRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewIPAMRepository(db.NewDB(mockDB)), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

func TestListPools(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("Page of pools with assignment counts", func(t *testing.T) {
		mock.ExpectQuery(q("SELECT COUNT(*) FROM ip_pools")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
		mock.ExpectQuery("SELECT p.id, p.name").
			WithArgs(10, 10).
			WillReturnRows(sqlmock.NewRows(append(poolCols, "count")).
				AddRow(3, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", "1.1.1.1", nil, 2).
				AddRow(4, "LAN-B", "10.0.1.0/24", "255.255.255.0", "10.0.1.1", nil, nil, 0))

		pools, total, err := repo.ListPools(ctx, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, 12, total)
		require.Len(t, pools, 2)
		assert.Equal(t, "LAN-A", pools[0].Name)
		assert.Equal(t, 2, pools[0].AssignmentCount)
		require.NotNil(t, pools[0].DNSPrimary)
		assert.Equal(t, "1.1.1.1", *pools[0].DNSPrimary)
		assert.Nil(t, pools[0].DNSSecondary)
		assert.Equal(t, 0, pools[1].AssignmentCount)
	})

	t.Run("Database error when counting", func(t *testing.T) {
		mock.ExpectQuery(q("SELECT COUNT(*) FROM ip_pools")).
			WillReturnError(fmt.Errorf("database error"))

		_, _, err := repo.ListPools(ctx, 0, 10)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("Existing pool", func(t *testing.T) {
		mock.ExpectQuery("SELECT p.id, p.name").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(append(poolCols, "count")).
				AddRow(1, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", nil, nil, 5))

		pool, err := repo.GetPool(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, pool.ID)
		assert.Equal(t, 5, pool.AssignmentCount)
	})

	t.Run("Unknown pool", func(t *testing.T) {
		mock.ExpectQuery("SELECT p.id, p.name").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(append(poolCols, "count")))

		_, err := repo.GetPool(ctx, 2)
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePool(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	newPool := func() *domain.Pool {
		return &domain.Pool{
			Name:       "LAN-A",
			Subnet:     "10.0.0.0/24",
			Mask:       "255.255.255.0",
			Gateway:    "10.0.0.1",
			DNSPrimary: strp("8.8.8.8"),
		}
	}

	t.Run("Create pool successfully", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1")).
			WithArgs("LAN-A").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO ip_pools").
			WithArgs("LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", "8.8.8.8", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		pool := newPool()
		require.NoError(t, repo.CreatePool(ctx, pool))
		assert.Equal(t, 7, pool.ID)
	})

	t.Run("Name already in use", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1")).
			WithArgs("LAN-A").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectRollback()

		err := repo.CreatePool(ctx, newPool())
		assert.ErrorIs(t, err, domain.ErrPoolNameTaken)
	})

	t.Run("Concurrent insert of the same name", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1")).
			WithArgs("LAN-A").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO ip_pools").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := repo.CreatePool(ctx, newPool())
		assert.ErrorIs(t, err, domain.ErrPoolNameTaken)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Database error when inserting", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1")).
			WithArgs("LAN-A").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO ip_pools").
			WillReturnError(fmt.Errorf("database error"))
		mock.ExpectRollback()

		err := repo.CreatePool(ctx, newPool())
		require.Error(t, err)
		assert.False(t, domain.IsConflict(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePool(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	lockRows := func() *sqlmock.Rows {
		return sqlmock.NewRows(append(poolCols, "count")).
			AddRow(1, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", nil, nil, 3)
	}

	t.Run("Rename and change gateway", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(1).WillReturnRows(lockRows())
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1 AND id <> $2")).
			WithArgs("LAN-Z", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(q("UPDATE ip_pools SET name = $1, gateway = $2, updated_at = NOW() WHERE id = $3")).
			WithArgs("LAN-Z", "10.0.0.254", 1).
			WillReturnRows(sqlmock.NewRows(poolCols).
				AddRow(1, "LAN-Z", "10.0.0.0/24", "255.255.255.0", "10.0.0.254", nil, nil))
		mock.ExpectCommit()

		pool, err := repo.UpdatePool(ctx, 1, domain.PoolUpdate{Name: strp("LAN-Z"), Gateway: strp("10.0.0.254")})
		require.NoError(t, err)
		assert.Equal(t, "LAN-Z", pool.Name)
		assert.Equal(t, "10.0.0.254", pool.Gateway)
		assert.Equal(t, 3, pool.AssignmentCount)
	})

	t.Run("Rename to a name held by another pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(1).WillReturnRows(lockRows())
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE name = $1 AND id <> $2")).
			WithArgs("LAN-B", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectRollback()

		_, err := repo.UpdatePool(ctx, 1, domain.PoolUpdate{Name: strp("LAN-B")})
		assert.ErrorIs(t, err, domain.ErrPoolNameTaken)
	})

	t.Run("Rename to its own name skips the uniqueness check", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(1).WillReturnRows(lockRows())
		mock.ExpectQuery(q("UPDATE ip_pools SET name = $1, updated_at = NOW() WHERE id = $2")).
			WithArgs("LAN-A", 1).
			WillReturnRows(sqlmock.NewRows(poolCols).
				AddRow(1, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", nil, nil))
		mock.ExpectCommit()

		pool, err := repo.UpdatePool(ctx, 1, domain.PoolUpdate{Name: strp("LAN-A")})
		require.NoError(t, err)
		assert.Equal(t, "LAN-A", pool.Name)
	})

	t.Run("Explicit null clears a DNS server", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(1).WillReturnRows(lockRows())
		mock.ExpectQuery(q("UPDATE ip_pools SET dns_primary = $1, dns_secondary = $2, updated_at = NOW() WHERE id = $3")).
			WithArgs(nil, "9.9.9.9", 1).
			WillReturnRows(sqlmock.NewRows(poolCols).
				AddRow(1, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", nil, "9.9.9.9"))
		mock.ExpectCommit()

		pool, err := repo.UpdatePool(ctx, 1, domain.PoolUpdate{
			DNSPrimary:   domain.SetNull[string](),
			DNSSecondary: domain.SetTo("9.9.9.9"),
		})
		require.NoError(t, err)
		assert.Nil(t, pool.DNSPrimary)
		require.NotNil(t, pool.DNSSecondary)
		assert.Equal(t, "9.9.9.9", *pool.DNSSecondary)
	})

	t.Run("Empty update returns the pool unchanged", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(1).WillReturnRows(lockRows())
		mock.ExpectRollback()

		pool, err := repo.UpdatePool(ctx, 1, domain.PoolUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "LAN-A", pool.Name)
		assert.Equal(t, "10.0.0.1", pool.Gateway)
	})

	t.Run("Unknown pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT p.id, p.name").WithArgs(9).
			WillReturnRows(sqlmock.NewRows(append(poolCols, "count")))
		mock.ExpectRollback()

		_, err := repo.UpdatePool(ctx, 9, domain.PoolUpdate{Mask: strp("255.255.0.0")})
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePool(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("Delete empty pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR UPDATE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(q("DELETE FROM ip_pools WHERE id = $1")).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.DeletePool(ctx, 1))
	})

	t.Run("Pool with assignments", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR UPDATE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectRollback()

		err := repo.DeletePool(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrPoolHasAssignments)
	})

	t.Run("Foreign key rejects the delete", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR UPDATE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(q("DELETE FROM ip_pools WHERE id = $1")).
			WithArgs(1).
			WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		err := repo.DeletePool(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrPoolHasAssignments)
	})

	t.Run("Unknown pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR UPDATE")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := repo.DeletePool(ctx, 5)
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignment(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create assignment successfully", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR SHARE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT id FROM ip_assignments WHERE ip_pool_id = $1 AND ip = $2")).
			WithArgs(1, "10.0.0.5").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO ip_assignments").
			WithArgs(1, "10.0.0.5", "active", "ACME", 42, "active", nil, seen).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		a := &domain.Assignment{
			PoolID:         1,
			IP:             "10.0.0.5",
			Status:         domain.StatusActive,
			CustomerName:   strp("ACME"),
			CustomerID:     intp(42),
			AssignmentType: strp("active"),
			LastSeen:       &seen,
		}
		require.NoError(t, repo.CreateAssignment(ctx, a))
		assert.Equal(t, 11, a.ID)
	})

	t.Run("Unknown pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR SHARE")).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := repo.CreateAssignment(ctx, &domain.Assignment{PoolID: 3, IP: "10.0.0.5", Status: domain.StatusAvailable})
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	t.Run("IP already assigned in pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR SHARE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT id FROM ip_assignments WHERE ip_pool_id = $1 AND ip = $2")).
			WithArgs(1, "10.0.0.5").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectRollback()

		err := repo.CreateAssignment(ctx, &domain.Assignment{PoolID: 1, IP: "10.0.0.5", Status: domain.StatusAvailable})
		assert.ErrorIs(t, err, domain.ErrIPAlreadyAssigned)
	})

	t.Run("Concurrent insert of the same IP hits the unique constraint", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT id FROM ip_pools WHERE id = $1 FOR SHARE")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(q("SELECT id FROM ip_assignments WHERE ip_pool_id = $1 AND ip = $2")).
			WithArgs(1, "10.0.0.6").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO ip_assignments").
			WithArgs(1, "10.0.0.6", "available", nil, nil, nil, nil, nil).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := repo.CreateAssignment(ctx, &domain.Assignment{PoolID: 1, IP: "10.0.0.6", Status: domain.StatusAvailable})
		assert.ErrorIs(t, err, domain.ErrIPAlreadyAssigned)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssignment(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	seen := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	t.Run("Update status and last seen", func(t *testing.T) {
		status := domain.StatusBlocked
		mock.ExpectQuery(q("UPDATE ip_assignments SET status = $1, last_seen = $2, updated_at = NOW() WHERE id = $3 AND ip_pool_id = $4")).
			WithArgs("blocked", seen, 11, 1).
			WillReturnRows(sqlmock.NewRows(assignmentCols).
				AddRow(11, 1, "10.0.0.5", "blocked", nil, 42, "static", nil, seen))

		a, err := repo.UpdateAssignment(ctx, 1, 11, domain.AssignmentUpdate{Status: &status, LastSeen: domain.SetTo(seen)})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusBlocked, a.Status)
		require.NotNil(t, a.CustomerID)
		assert.Equal(t, 42, *a.CustomerID)
		require.NotNil(t, a.LastSeen)
		assert.True(t, seen.Equal(*a.LastSeen))
		assert.Nil(t, a.CustomerName)
	})

	t.Run("Unknown pair", func(t *testing.T) {
		mock.ExpectQuery(q("UPDATE ip_assignments SET customer_id = $1")).
			WithArgs(7, 11, 2).
			WillReturnRows(sqlmock.NewRows(assignmentCols))

		_, err := repo.UpdateAssignment(ctx, 2, 11, domain.AssignmentUpdate{CustomerID: domain.SetTo(7)})
		assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	})

	t.Run("Explicit null clears columns", func(t *testing.T) {
		mock.ExpectQuery(q("UPDATE ip_assignments SET customer_name = $1, customer_id = $2, mac_address = $3, updated_at = NOW() WHERE id = $4 AND ip_pool_id = $5")).
			WithArgs(nil, nil, nil, 11, 1).
			WillReturnRows(sqlmock.NewRows(assignmentCols).
				AddRow(11, 1, "10.0.0.5", "available", nil, nil, "static", nil, nil))

		a, err := repo.UpdateAssignment(ctx, 1, 11, domain.AssignmentUpdate{
			CustomerName: domain.SetNull[string](),
			CustomerID:   domain.SetNull[int](),
			MACAddress:   domain.SetNull[string](),
		})
		require.NoError(t, err)
		assert.Nil(t, a.CustomerName)
		assert.Nil(t, a.CustomerID)
		assert.Nil(t, a.MACAddress)
		require.NotNil(t, a.AssignmentType)
	})

	t.Run("Empty update reads the assignment", func(t *testing.T) {
		mock.ExpectQuery("SELECT a.id, a.ip_pool_id").
			WithArgs(11, 1).
			WillReturnRows(sqlmock.NewRows(assignmentCols).
				AddRow(11, 1, "10.0.0.5", "available", nil, nil, nil, nil, nil))

		a, err := repo.UpdateAssignment(ctx, 1, 11, domain.AssignmentUpdate{})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAvailable, a.Status)
		assert.Nil(t, a.LastSeen)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAssignment(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("Delete assignment", func(t *testing.T) {
		mock.ExpectExec(q("DELETE FROM ip_assignments WHERE id = $1 AND ip_pool_id = $2")).
			WithArgs(11, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteAssignment(ctx, 1, 11))
	})

	t.Run("Unknown pair", func(t *testing.T) {
		mock.ExpectExec(q("DELETE FROM ip_assignments WHERE id = $1 AND ip_pool_id = $2")).
			WithArgs(11, 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteAssignment(ctx, 2, 11)
		assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAssignments(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("Pool scoped with filters", func(t *testing.T) {
		status := domain.StatusActive
		mock.ExpectQuery(q(`FROM ip_assignments a WHERE a.ip_pool_id = $1 AND a.status = $2 AND a.customer_id = $3 ORDER BY a.ip COLLATE "C" ASC`)).
			WithArgs(1, "active", 42).
			WillReturnRows(sqlmock.NewRows(assignmentCols).
				AddRow(12, 1, "10.0.0.10", "active", nil, 42, nil, nil, nil).
				AddRow(11, 1, "10.0.0.9", "active", nil, 42, nil, nil, nil))

		got, err := repo.ListAssignments(ctx, domain.AssignmentFilter{PoolID: intp(1), Status: &status, CustomerID: intp(42)})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "10.0.0.10", got[0].IP)
		assert.Nil(t, got[0].Pool)
	})

	t.Run("System wide with owning pool", func(t *testing.T) {
		mock.ExpectQuery(q("JOIN ip_pools p ON p.id = a.ip_pool_id ORDER BY")).
			WillReturnRows(sqlmock.NewRows(append(assignmentCols, poolCols...)).
				AddRow(11, 1, "10.0.0.9", "reserved", "ACME", nil, nil, "aa:bb:cc:dd:ee:ff", nil,
					1, "LAN-A", "10.0.0.0/24", "255.255.255.0", "10.0.0.1", nil, nil))

		got, err := repo.ListAssignments(ctx, domain.AssignmentFilter{IncludePool: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].Pool)
		assert.Equal(t, "LAN-A", got[0].Pool.Name)
		assert.Equal(t, domain.AssignmentStatus("reserved"), got[0].Status)
		require.NotNil(t, got[0].MACAddress)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", *got[0].MACAddress)
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery("FROM ip_assignments").WillReturnError(fmt.Errorf("database error"))

		_, err := repo.ListAssignments(ctx, domain.AssignmentFilter{})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAssignmentsByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(q("SELECT status, COUNT(*) FROM ip_assignments WHERE ip_pool_id = $1 GROUP BY status")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("available", 3).
			AddRow("quarantined", 1))

	counts, err := repo.CountAssignmentsByStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.StatusAvailable])
	assert.Equal(t, 1, counts[domain.AssignmentStatus("quarantined")])
	assert.NoError(t, mock.ExpectationsWereMet())
}
