package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zinrai/ippool-go/internal/interface/seed"
	"github.com/zinrai/ippool-go/internal/logger"
)

func seedCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create pools and assignments from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			return a.seed(path)
		},
	}
	cmd.Flags().String("file", "pools.yaml", "YAML file listing the pools to create")
	return cmd
}

func (a *app) seed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open seed file")
	}
	defer f.Close()

	doc, err := seed.Parse(f)
	if err != nil {
		return err
	}

	repo, closeRepo, err := a.openRepository(false)
	if err != nil {
		return err
	}
	defer closeRepo()

	uc, closePublisher, err := a.newUseCase(repo)
	if err != nil {
		return err
	}
	defer closePublisher()

	res, err := seed.Apply(a.ctx, uc, doc)
	logger.G(a.ctx).WithFields(logrus.Fields{
		"pools_created":       res.PoolsCreated,
		"pools_skipped":       res.PoolsSkipped,
		"assignments_created": res.AssignmentsCreated,
	}).Info("Seed finished")
	return err
}
