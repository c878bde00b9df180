package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zinrai/ippool-go/internal/config"
	"github.com/zinrai/ippool-go/internal/infrastructure/db"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage != config.StoragePostgres {
				return errors.Errorf("migrate requires %s storage", config.StoragePostgres)
			}
			return db.Migrate(a.ctx, a.cfg.DBURL)
		},
	}
}
