package config

import (
	"fmt"

	"github.com/jpalmerr/skylift"
)

// Build converts a validated [Config] into the option list for
// [skylift.New].
//
// The config file is the declarative surface for the CLI; Build is the
// bridge to the programmatic SDK so both paths construct a [skylift.Skylift]
// the same way.
func Build(cfg *Config) ([]skylift.Option, error) {
	opts := []skylift.Option{
		skylift.WithProject(cfg.ProjectID),
		skylift.WithRegion(cfg.Region),
		skylift.WithZone(cfg.Zone),
		skylift.WithRepository(cfg.Repository),
		skylift.WithBucket(cfg.Bucket),
		skylift.WithPipeline(cfg.Pipeline),
		skylift.WithReleasePrefix(cfg.ReleasePrefix),
		skylift.WithAutoApprove(cfg.AutoApproveEnabled()),
		skylift.WithPollInterval(cfg.Poll.Interval.Duration()),
		skylift.WithClusterTimeout(cfg.Poll.ClusterTimeout.Duration()),
		skylift.WithRolloutTimeout(cfg.Poll.RolloutTimeout.Duration()),
		skylift.WithApprovalTimeout(cfg.Poll.ApprovalTimeout.Duration()),
		skylift.WithProbeTimeout(cfg.Poll.DescribeTimeout.Duration()),
	}

	for i, cc := range cfg.Clusters {
		clusterOpts := []skylift.ClusterOption{
			skylift.WithTarget(cc.Target),
			skylift.WithNodeCount(cc.NodeCount),
			skylift.WithMachineType(cc.MachineType),
		}
		if cc.RequiresApproval {
			clusterOpts = append(clusterOpts, skylift.WithApproval())
		}

		cluster, err := skylift.NewCluster(cc.Name, clusterOpts...)
		if err != nil {
			return nil, fmt.Errorf("clusters[%d] (%s): %w", i, cc.Name, err)
		}
		opts = append(opts, skylift.WithCluster(cluster))
	}

	if cfg.Template.Repo != "" {
		opts = append(opts, skylift.WithTemplate(cfg.Template.Repo, cfg.Template.Workdir))
	}

	return opts, nil
}
