// Package seed loads pools and their assignments from a YAML document.
package seed

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/logger"
	"github.com/zinrai/ippool-go/internal/usecase"
)

type File struct {
	Pools []Pool `yaml:"pools"`
}

type Pool struct {
	Name         string       `yaml:"name"`
	Subnet       string       `yaml:"subnet"`
	Mask         string       `yaml:"mask"`
	Gateway      string       `yaml:"gateway"`
	DNSPrimary   *string      `yaml:"dns_primary"`
	DNSSecondary *string      `yaml:"dns_secondary"`
	Assignments  []Assignment `yaml:"assignments"`
}

type Assignment struct {
	IP             string  `yaml:"ip"`
	Status         *string `yaml:"status"`
	CustomerName   *string `yaml:"customer_name"`
	CustomerID     *int    `yaml:"customer_id"`
	AssignmentType *string `yaml:"assignment_type"`
	MACAddress     *string `yaml:"mac_address"`
}

type Result struct {
	PoolsCreated       int
	PoolsSkipped       int
	AssignmentsCreated int
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &f, nil
}

// Apply creates every pool in f and then its assignments. A pool whose name
// already exists is skipped together with its assignments; any other error
// stops the run.
func Apply(ctx context.Context, uc *usecase.IPAMUseCase, f *File) (Result, error) {
	var res Result
	for _, p := range f.Pools {
		pool, err := uc.CreatePool(ctx, usecase.CreatePoolInput{
			Name:         p.Name,
			Subnet:       p.Subnet,
			Mask:         p.Mask,
			Gateway:      p.Gateway,
			DNSPrimary:   p.DNSPrimary,
			DNSSecondary: p.DNSSecondary,
		})
		if errors.Is(err, domain.ErrPoolNameTaken) {
			logger.G(ctx).WithField("name", p.Name).Info("Pool already exists, skipping")
			res.PoolsSkipped++
			continue
		}
		if err != nil {
			return res, errors.Wrapf(err, "create pool %q", p.Name)
		}
		res.PoolsCreated++

		for _, a := range p.Assignments {
			in := usecase.AddAssignmentInput{
				IP:             a.IP,
				CustomerName:   a.CustomerName,
				CustomerID:     a.CustomerID,
				AssignmentType: a.AssignmentType,
				MACAddress:     a.MACAddress,
			}
			if a.Status != nil {
				status := domain.AssignmentStatus(*a.Status)
				in.Status = &status
			}
			if _, err := uc.AddAssignment(ctx, pool.ID, in); err != nil {
				return res, errors.Wrapf(err, "add %s to pool %q", a.IP, p.Name)
			}
			res.AssignmentsCreated++
		}
	}
	return res, nil
}
