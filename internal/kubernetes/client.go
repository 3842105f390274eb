package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// Error taxonomy for control-plane reads. Callers branch with errors.Is.
var (
	// ErrNotFound: the autoscaler named by the target does not exist.
	ErrNotFound = errors.New("autoscaler not found")
	// ErrUnavailable: the API server could not be reached or answered
	// with a transport-level failure. Retryable.
	ErrUnavailable = errors.New("control plane unavailable")
)

// Client wraps client-go for the single cluster a run targets.
type Client struct {
	Clientset kubernetes.Interface
	config    *rest.Config
	context   string
}

// NewClient builds a client from the local kubeconfig. An empty
// kubeContext keeps the kubeconfig's current context.
func NewClient(kubeContext string) (*Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	configOverrides := &clientcmd.ConfigOverrides{
		CurrentContext: kubeContext,
	}

	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		configOverrides,
	)

	config, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create client config: %w", err)
	}

	config.Timeout = 30 * time.Second

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	log.Info().
		Str("context", kubeContext).
		Str("server", config.Host).
		Msg("K8s client created successfully")

	return &Client{
		Clientset: clientset,
		config:    config,
		context:   kubeContext,
	}, nil
}

// NewClientWithClientset wires an existing clientset, used by tests.
func NewClientWithClientset(cs kubernetes.Interface) *Client {
	return &Client{Clientset: cs}
}

// GetScalerStatus reads the target HPA and extracts the replica counts
// and the scaling metric. NotFound and transport failures map to the
// package sentinels.
func (c *Client) GetScalerStatus(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
	hpa, err := c.Clientset.AutoscalingV2().HorizontalPodAutoscalers(target.Namespace).
		Get(ctx, target.Autoscaler, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return models.ScalerStatus{}, fmt.Errorf("%w: %s/%s", ErrNotFound, target.Namespace, target.Autoscaler)
		}
		return models.ScalerStatus{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return statusFromHPA(hpa), nil
}

// statusFromHPA extracts the status fields from an HPA object. Kept
// free of API calls so it is testable without a cluster. The first
// resource metric with an average-utilization target wins, CPU
// preferred.
func statusFromHPA(hpa *autoscalingv2.HorizontalPodAutoscaler) models.ScalerStatus {
	status := models.ScalerStatus{
		CurrentReplicas: hpa.Status.CurrentReplicas,
		DesiredReplicas: hpa.Status.DesiredReplicas,
	}

	metricName := pickResourceMetric(hpa.Spec.Metrics)
	if metricName == "" {
		return status
	}

	for _, m := range hpa.Spec.Metrics {
		if m.Type == autoscalingv2.ResourceMetricSourceType && m.Resource != nil && m.Resource.Name == metricName {
			if m.Resource.Target.AverageUtilization != nil {
				status.MetricTarget = float64(*m.Resource.Target.AverageUtilization)
			}
		}
	}
	for _, m := range hpa.Status.CurrentMetrics {
		if m.Type == autoscalingv2.ResourceMetricSourceType && m.Resource != nil && m.Resource.Name == metricName {
			if m.Resource.Current.AverageUtilization != nil {
				status.MetricValue = float64(*m.Resource.Current.AverageUtilization)
			}
		}
	}

	return status
}

func pickResourceMetric(metrics []autoscalingv2.MetricSpec) corev1.ResourceName {
	var fallback corev1.ResourceName
	for _, m := range metrics {
		if m.Type != autoscalingv2.ResourceMetricSourceType || m.Resource == nil {
			continue
		}
		if m.Resource.Target.AverageUtilization == nil {
			continue
		}
		if m.Resource.Name == corev1.ResourceCPU {
			return corev1.ResourceCPU
		}
		if fallback == "" {
			fallback = m.Resource.Name
		}
	}
	return fallback
}

// CountPods returns how many pods currently match the target selector.
// Used for baseline logging only; an empty selector counts nothing.
func (c *Client) CountPods(ctx context.Context, target models.TargetSelector) (int, error) {
	if target.LabelSelector == "" {
		return 0, nil
	}
	pods, err := c.Clientset.CoreV1().Pods(target.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: target.LabelSelector,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return len(pods.Items), nil
}

// TestConnection probes the API server before any resource is created.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("%w: connection test failed: %v", ErrUnavailable, err)
	}

	log.Info().Msg("Connection test successful")
	return nil
}
