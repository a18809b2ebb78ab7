package trigger

import (
	"context"
	"fmt"
	"sort"

	"searchscaler/internal/features/autoscaling/domain"
	clusterdomain "searchscaler/internal/features/cluster/domain"
)

// Event property keys
const (
	propNodeNames = "nodeNames"
)

// Snapshot keys
const (
	snapLastLiveNodes = "lastLiveNodes"
)

// NodeAddedTrigger fires when new nodes join the cluster. It diffs each live
// node snapshot against the previous one; nodes present now but not before
// produce a nodeAdded event.
type NodeAddedTrigger struct {
	*base
	cluster       clusterdomain.Provider
	lastLiveNodes map[string]bool
}

// NewNodeAddedTrigger creates a nodeAdded trigger
func NewNodeAddedTrigger(name string, props map[string]interface{}, deps Deps) (*NodeAddedTrigger, error) {
	b, err := newBase(name, domain.EventTypeNodeAdded, props, deps)
	if err != nil {
		return nil, err
	}

	t := &NodeAddedTrigger{
		base:          b,
		cluster:       deps.Cluster,
		lastLiveNodes: make(map[string]bool),
	}
	b.snapshotFn = t.snapshot
	b.restoreFn = t.restore
	return t, nil
}

// Init primes the live node snapshot so only nodes joining after this point
// are reported. Failure here means the trigger must not be scheduled.
func (t *NodeAddedTrigger) Init(ctx context.Context) error {
	if t.cluster == nil {
		return fmt.Errorf("trigger %s: cluster state provider is required", t.Name())
	}
	nodes, err := t.cluster.LiveNodes(ctx)
	if err != nil {
		return fmt.Errorf("trigger %s: failed to read initial cluster state: %w", t.Name(), err)
	}
	t.locked(func() {
		t.lastLiveNodes = nodeSet(nodes)
	})
	return nil
}

// Run performs one evaluation tick
func (t *NodeAddedTrigger) Run(ctx context.Context) {
	t.evaluate(ctx, t.detect)
}

func (t *NodeAddedTrigger) detect(ctx context.Context) (*domain.TriggerEvent, error) {
	nodes, err := t.cluster.LiveNodes(ctx)
	if err != nil {
		return nil, err
	}

	var added []string
	t.locked(func() {
		current := nodeSet(nodes)
		for node := range current {
			if !t.lastLiveNodes[node] {
				added = append(added, node)
			}
		}
		t.lastLiveNodes = current
	})

	if len(added) == 0 {
		return nil, nil
	}
	sort.Strings(added)

	return domain.NewTriggerEvent(t.Name(), t.EventType(), t.now(), map[string]interface{}{
		propNodeNames: added,
	}), nil
}

func (t *NodeAddedTrigger) snapshot() map[string]interface{} {
	return map[string]interface{}{
		snapLastLiveNodes: sortedNodes(t.lastLiveNodes),
	}
}

func (t *NodeAddedTrigger) restore(snapshot map[string]interface{}) {
	t.lastLiveNodes = nodeSetFromSnapshot(snapshot[snapLastLiveNodes])
}

func nodeSet(nodes []string) map[string]bool {
	set := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	return set
}

func sortedNodes(set map[string]bool) []string {
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// nodeSetFromSnapshot rebuilds a node set from a snapshot value, which is a
// []string in memory but []interface{} after a JSON round trip.
func nodeSetFromSnapshot(raw interface{}) map[string]bool {
	set := make(map[string]bool)
	switch v := raw.(type) {
	case []string:
		for _, n := range v {
			set[n] = true
		}
	case []interface{}:
		for _, item := range v {
			if n, ok := item.(string); ok {
				set[n] = true
			}
		}
	}
	return set
}
