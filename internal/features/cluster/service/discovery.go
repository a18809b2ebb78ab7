package service

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"searchscaler/internal/common"
	"searchscaler/internal/features/cluster/domain"
)

// NodeDiscovery discovers live search nodes from the Kubernetes API
type NodeDiscovery struct {
	kubeClient    kubernetes.Interface
	labelSelector string
	logger        *slog.Logger
}

// NewNodeDiscovery creates a node discovery provider. The label selector
// restricts discovery to the cluster's search nodes.
func NewNodeDiscovery(kubeClient kubernetes.Interface, labelSelector string, logger *slog.Logger) domain.Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeDiscovery{
		kubeClient:    kubeClient,
		labelSelector: labelSelector,
		logger:        logger,
	}
}

// LiveNodes returns the names of nodes that are currently Ready
func (d *NodeDiscovery) LiveNodes(ctx context.Context) ([]string, error) {
	if d.kubeClient == nil {
		return nil, common.NotFoundError("kubernetes client not configured")
	}

	nodes, err := d.kubeClient.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: d.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster nodes: %w", err)
	}

	var live []string
	for _, node := range nodes.Items {
		if nodeReady(&node) {
			live = append(live, node.Name)
		}
	}

	if len(live) == 0 {
		d.logger.Warn("no live nodes found", "labelSelector", d.labelSelector)
	}
	return live, nil
}

// nodeReady reports whether the node's Ready condition is True
func nodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}
