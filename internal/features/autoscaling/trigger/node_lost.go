package trigger

import (
	"context"
	"fmt"
	"sort"

	"searchscaler/internal/features/autoscaling/domain"
	clusterdomain "searchscaler/internal/features/cluster/domain"
)

// NodeLostTrigger fires when nodes leave the cluster. Nodes present in the
// previous snapshot but missing from the current one produce a nodeLost
// event.
type NodeLostTrigger struct {
	*base
	cluster       clusterdomain.Provider
	lastLiveNodes map[string]bool
}

// NewNodeLostTrigger creates a nodeLost trigger
func NewNodeLostTrigger(name string, props map[string]interface{}, deps Deps) (*NodeLostTrigger, error) {
	b, err := newBase(name, domain.EventTypeNodeLost, props, deps)
	if err != nil {
		return nil, err
	}

	t := &NodeLostTrigger{
		base:          b,
		cluster:       deps.Cluster,
		lastLiveNodes: make(map[string]bool),
	}
	b.snapshotFn = t.snapshot
	b.restoreFn = t.restore
	return t, nil
}

// Init primes the live node snapshot. Failure here means the trigger must
// not be scheduled.
func (t *NodeLostTrigger) Init(ctx context.Context) error {
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
func (t *NodeLostTrigger) Run(ctx context.Context) {
	t.evaluate(ctx, t.detect)
}

func (t *NodeLostTrigger) detect(ctx context.Context) (*domain.TriggerEvent, error) {
	nodes, err := t.cluster.LiveNodes(ctx)
	if err != nil {
		return nil, err
	}

	var lost []string
	t.locked(func() {
		current := nodeSet(nodes)
		for node := range t.lastLiveNodes {
			if !current[node] {
				lost = append(lost, node)
			}
		}
		t.lastLiveNodes = current
	})

	if len(lost) == 0 {
		return nil, nil
	}
	sort.Strings(lost)

	return domain.NewTriggerEvent(t.Name(), t.EventType(), t.now(), map[string]interface{}{
		propNodeNames: lost,
	}), nil
}

func (t *NodeLostTrigger) snapshot() map[string]interface{} {
	return map[string]interface{}{
		snapLastLiveNodes: sortedNodes(t.lastLiveNodes),
	}
}

func (t *NodeLostTrigger) restore(snapshot map[string]interface{}) {
	t.lastLiveNodes = nodeSetFromSnapshot(snapshot[snapLastLiveNodes])
}
