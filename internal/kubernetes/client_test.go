package kubernetes

import (
	"context"
	"errors"
	"testing"

	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

func int32p(v int32) *int32 { return &v }

func testHPA() *autoscalingv2.HorizontalPodAutoscaler {
	return &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "blog-api",
			Namespace: "blog",
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			MinReplicas: int32p(2),
			MaxReplicas: 10,
			Metrics: []autoscalingv2.MetricSpec{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricSource{
						Name: corev1.ResourceMemory,
						Target: autoscalingv2.MetricTarget{
							Type:               autoscalingv2.UtilizationMetricType,
							AverageUtilization: int32p(80),
						},
					},
				},
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricSource{
						Name: corev1.ResourceCPU,
						Target: autoscalingv2.MetricTarget{
							Type:               autoscalingv2.UtilizationMetricType,
							AverageUtilization: int32p(70),
						},
					},
				},
			},
		},
		Status: autoscalingv2.HorizontalPodAutoscalerStatus{
			CurrentReplicas: 3,
			DesiredReplicas: 4,
			CurrentMetrics: []autoscalingv2.MetricStatus{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricStatus{
						Name: corev1.ResourceCPU,
						Current: autoscalingv2.MetricValueStatus{
							AverageUtilization: int32p(55),
						},
					},
				},
			},
		},
	}
}

func TestStatusFromHPA(t *testing.T) {
	status := statusFromHPA(testHPA())

	if status.CurrentReplicas != 3 {
		t.Errorf("current replicas: expected 3, got %d", status.CurrentReplicas)
	}
	if status.DesiredReplicas != 4 {
		t.Errorf("desired replicas: expected 4, got %d", status.DesiredReplicas)
	}
	// CPU wins over memory even when listed second.
	if status.MetricTarget != 70 {
		t.Errorf("metric target: expected 70, got %v", status.MetricTarget)
	}
	if status.MetricValue != 55 {
		t.Errorf("metric value: expected 55, got %v", status.MetricValue)
	}
}

func TestStatusFromHPAWithoutMetrics(t *testing.T) {
	hpa := testHPA()
	hpa.Spec.Metrics = nil
	hpa.Status.CurrentMetrics = nil

	status := statusFromHPA(hpa)
	if status.MetricTarget != 0 || status.MetricValue != 0 {
		t.Errorf("expected zero metrics, got %+v", status)
	}
	if status.CurrentReplicas != 3 {
		t.Errorf("replica counts should survive missing metrics: %+v", status)
	}
}

func TestGetScalerStatusNotFound(t *testing.T) {
	client := NewClientWithClientset(fake.NewSimpleClientset())

	_, err := client.GetScalerStatus(context.Background(), models.TargetSelector{
		Namespace:  "blog",
		Autoscaler: "missing",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetScalerStatusFound(t *testing.T) {
	client := NewClientWithClientset(fake.NewSimpleClientset(testHPA()))

	status, err := client.GetScalerStatus(context.Background(), models.TargetSelector{
		Namespace:  "blog",
		Autoscaler: "blog-api",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CurrentReplicas != 3 || status.MetricTarget != 70 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestCountPods(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "blog-api-abc",
			Namespace: "blog",
			Labels:    map[string]string{"app": "blog-api"},
		},
	}
	client := NewClientWithClientset(fake.NewSimpleClientset(pod))

	n, err := client.CountPods(context.Background(), models.TargetSelector{
		Namespace:     "blog",
		LabelSelector: "app=blog-api",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pod, got %d", n)
	}

	// Empty selector short-circuits.
	n, err = client.CountPods(context.Background(), models.TargetSelector{Namespace: "blog"})
	if err != nil || n != 0 {
		t.Errorf("empty selector: expected 0/nil, got %d/%v", n, err)
	}
}
