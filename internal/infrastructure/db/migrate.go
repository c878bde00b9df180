package db

import (
	"context"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zinrai/ippool-go/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrator(ctx context.Context, url string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, errors.Wrap(err, "could not set up migration instance")
	}
	m.Log = &migrateLogger{FieldLogger: logger.G(ctx)}
	return m, nil
}

// Migrate applies every pending migration. A database already at the latest
// version is not an error.
func Migrate(ctx context.Context, url string) error {
	m, err := newMigrator(ctx, url)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "could not perform migrations")
	}
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, "read schema version")
	}
	logger.G(ctx).WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Schema is up to date")
	return nil
}

type migrateLogger struct {
	logrus.FieldLogger
}

func (ml migrateLogger) Verbose() bool {
	return false
}
