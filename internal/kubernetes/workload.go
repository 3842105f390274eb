package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Ephemeral workload errors. Create failures abort the phase that
// requested the resource; delete failures are retried by the caller
// and escalate to a leaked-resource warning.
var (
	ErrCreateFailed = errors.New("ephemeral workload create failed")
	ErrDeleteFailed = errors.New("ephemeral workload delete failed")
)

// ManagedByLabel marks every pod the harness creates, so leftover
// resources are attributable and sweepable.
const ManagedByLabel = "app.kubernetes.io/managed-by"

// ManagedByValue is the label value for harness-owned pods.
const ManagedByValue = "hpa-verify"

// WorkloadSpec describes one ephemeral burner pod.
type WorkloadSpec struct {
	Name        string
	Namespace   string
	Image       string
	Command     []string
	CPULimit    string // k8s quantity, ex: "500m"
	MemoryLimit string // k8s quantity, ex: "128Mi"
	Labels      map[string]string
}

// WorkloadHandle identifies a created workload for later deletion.
// The zero handle is invalid.
type WorkloadHandle struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	UID       string `json:"uid"`
}

func (h WorkloadHandle) String() string {
	return fmt.Sprintf("%s/%s", h.Namespace, h.Name)
}

// CreateEphemeralWorkload creates the burner pod and returns its
// handle. The caller owns exactly one delete per successful create.
func (c *Client) CreateEphemeralWorkload(ctx context.Context, spec WorkloadSpec) (WorkloadHandle, error) {
	pod, err := buildPod(spec)
	if err != nil {
		return WorkloadHandle{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	created, err := c.Clientset.CoreV1().Pods(spec.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return WorkloadHandle{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	log.Info().
		Str("namespace", created.Namespace).
		Str("pod", created.Name).
		Str("image", spec.Image).
		Msg("Ephemeral workload created")

	return WorkloadHandle{
		Namespace: created.Namespace,
		Name:      created.Name,
		UID:       string(created.UID),
	}, nil
}

// buildPod translates a WorkloadSpec into a pod object. Quantities
// were validated with the config, but a bad value still surfaces as a
// create failure rather than a panic.
func buildPod(spec WorkloadSpec) (*corev1.Pod, error) {
	limits := corev1.ResourceList{}
	if spec.CPULimit != "" {
		q, err := resource.ParseQuantity(spec.CPULimit)
		if err != nil {
			return nil, fmt.Errorf("invalid cpu limit %q: %w", spec.CPULimit, err)
		}
		limits[corev1.ResourceCPU] = q
	}
	if spec.MemoryLimit != "" {
		q, err := resource.ParseQuantity(spec.MemoryLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid memory limit %q: %w", spec.MemoryLimit, err)
		}
		limits[corev1.ResourceMemory] = q
	}

	labels := map[string]string{ManagedByLabel: ManagedByValue}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	command := spec.Command
	if len(command) == 0 {
		// Busy loop pinned by the CPU limit.
		command = []string{"/bin/sh", "-c", "while :; do :; done"}
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "burner",
					Image:   spec.Image,
					Command: command,
					Resources: corev1.ResourceRequirements{
						Limits:   limits,
						Requests: limits,
					},
				},
			},
		},
	}, nil
}

// WaitRunning blocks until the workload reaches the Running phase.
// A pod that terminates instead is a create-side failure.
func (c *Client) WaitRunning(ctx context.Context, handle WorkloadHandle, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, 2*time.Second, timeout, true,
		func(ctx context.Context) (bool, error) {
			pod, err := c.Clientset.CoreV1().Pods(handle.Namespace).Get(ctx, handle.Name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					return false, fmt.Errorf("pod %s disappeared while waiting", handle)
				}
				// Transient API failures keep polling.
				return false, nil
			}
			switch pod.Status.Phase {
			case corev1.PodRunning:
				return true, nil
			case corev1.PodFailed, corev1.PodSucceeded:
				return false, fmt.Errorf("pod %s terminated with phase %s", handle, pod.Status.Phase)
			default:
				return false, nil
			}
		})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	return nil
}

// DeleteEphemeralWorkload removes the workload. Deleting a workload
// that is already gone succeeds, so the call is idempotent and safe to
// repeat from every cleanup path.
func (c *Client) DeleteEphemeralWorkload(ctx context.Context, handle WorkloadHandle) error {
	grace := int64(0)
	err := c.Clientset.CoreV1().Pods(handle.Namespace).Delete(ctx, handle.Name, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrDeleteFailed, handle, err)
	}

	log.Info().
		Str("namespace", handle.Namespace).
		Str("pod", handle.Name).
		Msg("Ephemeral workload deleted")

	return nil
}
