package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zinrai/ippool-go/internal/config"
	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/infrastructure/db"
	"github.com/zinrai/ippool-go/internal/infrastructure/events"
	"github.com/zinrai/ippool-go/internal/infrastructure/memory"
	"github.com/zinrai/ippool-go/internal/infrastructure/persistence"
	"github.com/zinrai/ippool-go/internal/logger"
	"github.com/zinrai/ippool-go/internal/usecase"
)

type app struct {
	ctx context.Context
	v   *viper.Viper
	cfg *config.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &app{
		ctx: logger.WithLogger(ctx, logrus.StandardLogger()),
		v:   config.NewViper(),
	}

	rootCmd := &cobra.Command{
		Use:           "ippoold",
		Short:         "IP address pool allocation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			l, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.ctx = logger.WithLogger(a.ctx, logrus.NewEntry(l))
			return nil
		},
	}
	config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCommand(a))
	rootCmd.AddCommand(migrateCommand(a))
	rootCmd.AddCommand(seedCommand(a))

	if err := a.v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logger.G(a.ctx).WithError(err).Fatal("Unable to configure Viper")
	}

	if err := rootCmd.Execute(); err != nil {
		logger.G(a.ctx).WithError(err).Error("Failed")
		os.Exit(1)
	}
}

// openRepository returns the configured storage backend and a function that
// releases it.
func (a *app) openRepository(migrateFirst bool) (domain.IPAMRepository, func(), error) {
	if a.cfg.Storage == config.StorageMemory {
		logger.G(a.ctx).Warn("Using in-memory storage, data is lost on exit")
		return memory.NewIPAMRepository(), func() {}, nil
	}

	if migrateFirst {
		if err := db.Migrate(a.ctx, a.cfg.DBURL); err != nil {
			return nil, nil, err
		}
	}
	conn, err := db.Open(a.ctx, a.cfg.DBURL, db.Options{
		MaxOpenConns:    a.cfg.MaxOpenConns,
		MaxIdleConns:    a.cfg.MaxIdleConns,
		ConnMaxLifetime: a.cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	return persistence.NewIPAMRepository(conn), func() { _ = conn.Close() }, nil
}

// newUseCase builds the use case with the configured event publisher.
func (a *app) newUseCase(repo domain.IPAMRepository) (*usecase.IPAMUseCase, func(), error) {
	if a.cfg.NATSURL == "" {
		return usecase.NewIPAMUseCase(repo, usecase.WithPublisher(events.Nop{})), func() {}, nil
	}
	pub, err := events.NewNATSPublisher(a.ctx, a.cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	logger.G(a.ctx).WithField("url", a.cfg.NATSURL).Info("Publishing change events to NATS")
	return usecase.NewIPAMUseCase(repo, usecase.WithPublisher(pub)), pub.Close, nil
}
