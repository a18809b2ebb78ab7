package domain

import "context"

// Provider exposes the live search-node membership of the cluster. Triggers
// diff successive snapshots to detect membership changes.
type Provider interface {
	// LiveNodes returns the names of nodes currently serving the cluster
	LiveNodes(ctx context.Context) ([]string, error)
}
