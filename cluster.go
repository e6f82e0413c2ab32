package skylift

import (
	"errors"
	"regexp"
)

const (
	defaultNodeCount   = 1
	defaultMachineType = "e2-standard-2"
)

// clusterNamePattern matches valid GKE cluster and Cloud Deploy target names.
var clusterNamePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// Cluster represents one GKE cluster to provision, together with the
// Cloud Deploy target bound to it.
//
// Cluster is immutable after creation via [NewCluster]. Clusters are
// registered with [WithCluster] in pipeline order: the first cluster's
// target receives the initial release, and each subsequent target is
// promoted to only after the prior stage's rollout succeeded.
//
// Clusters are configured using the functional options pattern with
// [ClusterOption] functions such as [WithTarget], [WithNodeCount],
// [WithMachineType], and [WithApproval].
type Cluster struct {
	name             string
	target           string
	nodeCount        int
	machineType      string
	requiresApproval bool
}

// Name returns the GKE cluster name.
func (c Cluster) Name() string {
	return c.name
}

// Target returns the Cloud Deploy target identifier bound to this cluster.
// Defaults to the cluster name if not set via [WithTarget].
func (c Cluster) Target() string {
	return c.target
}

// NodeCount returns the initial node count. Defaults to 1.
func (c Cluster) NodeCount() int {
	return c.nodeCount
}

// MachineType returns the node machine type. Defaults to "e2-standard-2".
func (c Cluster) MachineType() string {
	return c.machineType
}

// RequiresApproval reports whether rollouts to this cluster's target park
// in PENDING_APPROVAL until approved.
func (c Cluster) RequiresApproval() bool {
	return c.requiresApproval
}

// NewCluster creates a [Cluster] with the given name and options.
//
// The name must be a valid GKE cluster name (lowercase letters, digits,
// hyphens, starting with a letter).
//
// Example:
//
//	prod, err := skylift.NewCluster("prod",
//	    skylift.WithNodeCount(3),
//	    skylift.WithApproval(),
//	)
func NewCluster(name string, opts ...ClusterOption) (Cluster, error) {
	if name == "" {
		return Cluster{}, errors.New("cluster name cannot be empty")
	}
	if !clusterNamePattern.MatchString(name) {
		return Cluster{}, errors.New("invalid cluster name: " + name)
	}

	cfg := &clusterConfig{
		nodeCount:   defaultNodeCount,
		machineType: defaultMachineType,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Cluster{}, err
		}
	}

	target := cfg.target
	if target == "" {
		target = name
	}

	return Cluster{
		name:             name,
		target:           target,
		nodeCount:        cfg.nodeCount,
		machineType:      cfg.machineType,
		requiresApproval: cfg.requiresApproval,
	}, nil
}
