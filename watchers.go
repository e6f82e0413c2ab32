package skylift

// Watch builders for the three polling call sites of the bootstrap flow.
// Each composes the right gcloud probe, extractor, and predicates;
// callers layer timing options on top.

// ClusterRunning returns a [Watch] that resolves when the named GKE
// cluster reports RUNNING. ERROR, DEGRADED, and STOPPING resolve the
// poll as failed, since a cluster in those states will not come up on
// its own.
func ClusterRunning(cluster, zone, project string, opts ...WatchOption) (Watch, error) {
	probe := Probe{
		Tool: "gcloud",
		Args: []string{
			"container", "clusters", "describe", cluster,
			"--zone", zone,
			"--project", project,
			"--format", "value(status)",
		},
	}
	defaults := []WatchOption{
		WithWatchExtractor(ValueExtractor),
		WithSuccess(StatusIs(StatusRunning)),
		WithFailure(StatusIn("ERROR", "DEGRADED", "STOPPING")),
	}
	return NewWatch("cluster "+cluster, probe, append(defaults, opts...)...)
}

// rolloutProbe lists the newest rollout of release on target and prints
// only its state.
func rolloutProbe(release, target, pipeline, region, project string) Probe {
	return Probe{
		Tool: "gcloud",
		Args: []string{
			"deploy", "rollouts", "list",
			"--release", release,
			"--delivery-pipeline", pipeline,
			"--region", region,
			"--project", project,
			"--filter", "targetId=" + target,
			"--sort-by", "~createTime",
			"--limit", "1",
			"--format", "value(state)",
		},
	}
}

// RolloutSucceeded returns a [Watch] that resolves when the newest
// rollout of release on target reports SUCCEEDED. FAILED and CANCELLED
// resolve the poll as failed.
func RolloutSucceeded(release, target, pipeline, region, project string, opts ...WatchOption) (Watch, error) {
	defaults := []WatchOption{
		WithWatchExtractor(ValueExtractor),
		WithSuccess(StatusIs(StatusSucceeded)),
		WithFailure(StatusIn(StatusFailed, "CANCELLED")),
	}
	return NewWatch("rollout "+target, rolloutProbe(release, target, pipeline, region, project), append(defaults, opts...)...)
}

// RolloutPendingApproval returns a [Watch] that resolves when the newest
// rollout of release on target parks in PENDING_APPROVAL.
//
// This is a detection watch, not a wait: give it a short timeout via
// [WithTimeout] and treat a timed-out result as "no approval gate
// materialised". A rollout already in a terminal state resolves the
// poll as failed, which callers should treat the same way.
func RolloutPendingApproval(release, target, pipeline, region, project string, opts ...WatchOption) (Watch, error) {
	defaults := []WatchOption{
		WithWatchExtractor(ValueExtractor),
		WithSuccess(StatusIs(StatusPendingApproval)),
		WithFailure(StatusIn(StatusSucceeded, StatusFailed, "CANCELLED")),
	}
	return NewWatch("approval "+target, rolloutProbe(release, target, pipeline, region, project), append(defaults, opts...)...)
}
