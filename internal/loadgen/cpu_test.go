package loadgen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/kubernetes"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// fakeWorkloads counts lifecycle calls and can fail selectively.
type fakeWorkloads struct {
	mu         sync.Mutex
	creates    int
	waits      int
	deletes    int
	createErr  error
	waitErr    error
	deleteFail int // fail this many delete calls before succeeding
	lastSpec   kubernetes.WorkloadSpec
}

func (f *fakeWorkloads) CreateEphemeralWorkload(ctx context.Context, spec kubernetes.WorkloadSpec) (kubernetes.WorkloadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastSpec = spec
	if f.createErr != nil {
		return kubernetes.WorkloadHandle{}, f.createErr
	}
	return kubernetes.WorkloadHandle{Namespace: spec.Namespace, Name: spec.Name, UID: "uid-1"}, nil
}

func (f *fakeWorkloads) WaitRunning(ctx context.Context, handle kubernetes.WorkloadHandle, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return f.waitErr
}

func (f *fakeWorkloads) DeleteEphemeralWorkload(ctx context.Context, handle kubernetes.WorkloadHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteFail > 0 {
		f.deleteFail--
		return errors.New("delete refused")
	}
	return nil
}

func (f *fakeWorkloads) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.deletes
}

func testGenerator(f *fakeWorkloads) *CPUGenerator {
	cfg := DefaultCPUGeneratorConfig("blog")
	cfg.DeleteBackoff = time.Millisecond
	return NewCPUGenerator(f, cfg)
}

func cpuPhase(d time.Duration) models.LoadPhase {
	return models.LoadPhase{
		Name:        "burn",
		Kind:        models.LoadCPU,
		Duration:    d,
		Image:       "busybox:1.36",
		CPULimit:    "500m",
		MemoryLimit: "128Mi",
	}
}

func TestCPURunCreatesAndDeletesOnce(t *testing.T) {
	fake := &fakeWorkloads{}
	result := testGenerator(fake).Run(context.Background(), cpuPhase(10*time.Millisecond))

	creates, deletes := fake.counts()
	if creates != 1 || deletes != 1 {
		t.Errorf("expected 1 create / 1 delete, got %d / %d", creates, deletes)
	}
	if result.Failed() {
		t.Errorf("unexpected phase error: %s", result.Error)
	}
	if result.ResourceLeaked {
		t.Error("healthy run must not leak")
	}
	if result.StartedAt.IsZero() || result.StoppedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
	if !result.StoppedAt.After(result.StartedAt) {
		t.Error("stopped_at must be after started_at")
	}
	if fake.lastSpec.Namespace != "blog" || fake.lastSpec.Image != "busybox:1.36" {
		t.Errorf("workload spec not carried from phase: %+v", fake.lastSpec)
	}
}

func TestCPURunCreateFailure(t *testing.T) {
	fake := &fakeWorkloads{createErr: errors.New("quota exceeded")}
	result := testGenerator(fake).Run(context.Background(), cpuPhase(10*time.Millisecond))

	creates, deletes := fake.counts()
	if creates != 1 {
		t.Errorf("expected 1 create attempt, got %d", creates)
	}
	if deletes != 0 {
		t.Errorf("nothing was created, nothing to delete: got %d deletes", deletes)
	}
	if !result.Failed() {
		t.Error("create failure must surface in the result")
	}
}

func TestCPURunWaitFailureStillReleases(t *testing.T) {
	fake := &fakeWorkloads{waitErr: errors.New("image pull backoff")}
	result := testGenerator(fake).Run(context.Background(), cpuPhase(10*time.Millisecond))

	creates, deletes := fake.counts()
	if creates != 1 || deletes != 1 {
		t.Errorf("pod must be released after a failed wait: %d / %d", creates, deletes)
	}
	if !result.Failed() {
		t.Error("ready failure must surface in the result")
	}
}

func TestCPURunCancellationReleases(t *testing.T) {
	fake := &fakeWorkloads{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan models.PhaseResult, 1)
	go func() {
		done <- testGenerator(fake).Run(ctx, cpuPhase(10*time.Second))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		_, deletes := fake.counts()
		if deletes != 1 {
			t.Errorf("cancellation must release the pod: %d deletes", deletes)
		}
		if result.ResourceLeaked {
			t.Error("cancellation path leaked")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not return after cancellation")
	}
}

func TestCPURunDeleteRetriesThenLeak(t *testing.T) {
	fake := &fakeWorkloads{deleteFail: 10}
	cfg := DefaultCPUGeneratorConfig("blog")
	cfg.DeleteRetries = 3
	cfg.DeleteBackoff = time.Millisecond

	result := NewCPUGenerator(fake, cfg).Run(context.Background(), cpuPhase(5*time.Millisecond))

	_, deletes := fake.counts()
	if deletes != 3 {
		t.Errorf("expected 3 delete attempts, got %d", deletes)
	}
	if !result.ResourceLeaked {
		t.Error("exhausted delete retries must flag a leak")
	}
}

func TestCPURunDeleteRecovery(t *testing.T) {
	fake := &fakeWorkloads{deleteFail: 1}
	result := testGenerator(fake).Run(context.Background(), cpuPhase(5*time.Millisecond))

	_, deletes := fake.counts()
	if deletes != 2 {
		t.Errorf("expected 2 delete attempts, got %d", deletes)
	}
	if result.ResourceLeaked {
		t.Error("recovered delete must not flag a leak")
	}
}

func TestBurnerNameUnique(t *testing.T) {
	a := burnerName("hpa-verify", "burn")
	b := burnerName("hpa-verify", "burn")
	if a == b {
		t.Errorf("burner names must be unique, got %s twice", a)
	}
}
