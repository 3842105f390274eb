package kubernetes

import (
	"context"
	"errors"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func testWorkloadSpec() WorkloadSpec {
	return WorkloadSpec{
		Name:        "blog-api-burner-test",
		Namespace:   "blog",
		Image:       "busybox:1.36",
		CPULimit:    "500m",
		MemoryLimit: "128Mi",
	}
}

func TestCreateAndDeleteWorkload(t *testing.T) {
	client := NewClientWithClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	handle, err := client.CreateEphemeralWorkload(ctx, testWorkloadSpec())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if handle.Name != "blog-api-burner-test" || handle.Namespace != "blog" {
		t.Errorf("unexpected handle: %+v", handle)
	}

	pod, err := client.Clientset.CoreV1().Pods("blog").Get(ctx, handle.Name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("created pod not found: %v", err)
	}
	if pod.Labels[ManagedByLabel] != ManagedByValue {
		t.Errorf("managed-by label missing: %v", pod.Labels)
	}
	if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
		t.Errorf("burner pod must not restart: %s", pod.Spec.RestartPolicy)
	}

	if err := client.DeleteEphemeralWorkload(ctx, handle); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestDeleteWorkloadIdempotent(t *testing.T) {
	client := NewClientWithClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	handle, err := client.CreateEphemeralWorkload(ctx, testWorkloadSpec())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := client.DeleteEphemeralWorkload(ctx, handle); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	// Deleting the same handle again must succeed.
	if err := client.DeleteEphemeralWorkload(ctx, handle); err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	// And a handle that never existed is also fine.
	if err := client.DeleteEphemeralWorkload(ctx, WorkloadHandle{Namespace: "blog", Name: "ghost"}); err != nil {
		t.Fatalf("delete of unknown handle errored: %v", err)
	}
}

func TestCreateWorkloadBadQuantity(t *testing.T) {
	client := NewClientWithClientset(fake.NewSimpleClientset())

	spec := testWorkloadSpec()
	spec.CPULimit = "not-a-quantity"

	_, err := client.CreateEphemeralWorkload(context.Background(), spec)
	if !errors.Is(err, ErrCreateFailed) {
		t.Errorf("expected ErrCreateFailed, got %v", err)
	}
}

func TestWaitRunning(t *testing.T) {
	running := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "burner", Namespace: "blog"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	client := NewClientWithClientset(fake.NewSimpleClientset(running))

	handle := WorkloadHandle{Namespace: "blog", Name: "burner"}
	if err := client.WaitRunning(context.Background(), handle, 10*time.Second); err != nil {
		t.Fatalf("running pod reported not ready: %v", err)
	}
}

func TestWaitRunningFailedPod(t *testing.T) {
	failed := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "burner", Namespace: "blog"},
		Status:     corev1.PodStatus{Phase: corev1.PodFailed},
	}
	client := NewClientWithClientset(fake.NewSimpleClientset(failed))

	handle := WorkloadHandle{Namespace: "blog", Name: "burner"}
	err := client.WaitRunning(context.Background(), handle, 5*time.Second)
	if !errors.Is(err, ErrCreateFailed) {
		t.Errorf("failed pod should surface ErrCreateFailed, got %v", err)
	}
}
