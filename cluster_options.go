package skylift

import "errors"

// clusterConfig holds mutable state during cluster construction.
type clusterConfig struct {
	target           string
	nodeCount        int
	machineType      string
	requiresApproval bool
}

// ClusterOption is a function that configures a [Cluster] during
// construction.
//
// ClusterOption implements the functional options pattern, allowing
// optional configuration to be passed to [NewCluster] in a type-safe,
// extensible way. Options return an error if validation fails.
//
// Built-in options: [WithTarget], [WithNodeCount], [WithMachineType],
// [WithApproval].
type ClusterOption func(*clusterConfig) error

// WithTarget sets the Cloud Deploy target identifier for this cluster.
//
// If not specified, the cluster name is used as the target name.
//
// Returns an error if the target is not a valid resource name.
func WithTarget(target string) ClusterOption {
	return func(cfg *clusterConfig) error {
		if !clusterNamePattern.MatchString(target) {
			return errors.New("invalid target name: " + target)
		}
		cfg.target = target
		return nil
	}
}

// WithNodeCount sets the cluster's initial node count.
//
// Defaults to 1. The demo workload is tiny and a single node keeps the
// provisioning wait short.
//
// Returns an error if the count is not positive.
func WithNodeCount(n int) ClusterOption {
	return func(cfg *clusterConfig) error {
		if n <= 0 {
			return errors.New("node count must be positive")
		}
		cfg.nodeCount = n
		return nil
	}
}

// WithMachineType sets the node machine type for the cluster.
//
// Defaults to "e2-standard-2" if not specified.
//
// Returns an error if the machine type is empty.
func WithMachineType(machineType string) ClusterOption {
	return func(cfg *clusterConfig) error {
		if machineType == "" {
			return errors.New("machine type cannot be empty")
		}
		cfg.machineType = machineType
		return nil
	}
}

// WithApproval marks rollouts to this cluster's target as requiring
// approval before they proceed.
//
// When the orchestrator's auto-approve behavior is enabled (the default),
// a rollout observed in PENDING_APPROVAL on such a target is approved
// best-effort; otherwise it waits for a manual approval until the rollout
// timeout elapses.
func WithApproval() ClusterOption {
	return func(cfg *clusterConfig) error {
		cfg.requiresApproval = true
		return nil
	}
}
