package loadgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/kubernetes"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// WorkloadClient is the ephemeral pod lifecycle the CPU generator
// drives.
type WorkloadClient interface {
	CreateEphemeralWorkload(ctx context.Context, spec kubernetes.WorkloadSpec) (kubernetes.WorkloadHandle, error)
	WaitRunning(ctx context.Context, handle kubernetes.WorkloadHandle, timeout time.Duration) error
	DeleteEphemeralWorkload(ctx context.Context, handle kubernetes.WorkloadHandle) error
}

// CPUGeneratorConfig tunes the burner pod lifecycle.
type CPUGeneratorConfig struct {
	Namespace     string        // namespace the burner pod is created in
	NamePrefix    string        // pod name prefix (a short random suffix is appended)
	ReadyTimeout  time.Duration // wait for the pod to reach Running (default: 60s)
	DeleteRetries int           // delete attempts before declaring a leak (default: 3)
	DeleteBackoff time.Duration // pause between delete attempts (default: 2s)
}

// DefaultCPUGeneratorConfig returns defaults for the given namespace.
func DefaultCPUGeneratorConfig(namespace string) CPUGeneratorConfig {
	return CPUGeneratorConfig{
		Namespace:     namespace,
		NamePrefix:    "hpa-verify",
		ReadyTimeout:  60 * time.Second,
		DeleteRetries: 3,
		DeleteBackoff: 2 * time.Second,
	}
}

// CPUGenerator burns CPU through a single ephemeral pod per phase.
type CPUGenerator struct {
	workloads WorkloadClient
	config    CPUGeneratorConfig
}

// NewCPUGenerator builds a CPU generator on top of a workload client.
func NewCPUGenerator(workloads WorkloadClient, config CPUGeneratorConfig) *CPUGenerator {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 60 * time.Second
	}
	if config.DeleteRetries <= 0 {
		config.DeleteRetries = 3
	}
	if config.DeleteBackoff <= 0 {
		config.DeleteBackoff = 2 * time.Second
	}
	if config.NamePrefix == "" {
		config.NamePrefix = "hpa-verify"
	}
	return &CPUGenerator{workloads: workloads, config: config}
}

// Run creates the burner pod, holds it for the phase duration, and
// deletes it. Exactly one create and one release happen per call, on
// success, failure, and cancellation paths alike.
func (g *CPUGenerator) Run(ctx context.Context, phase models.LoadPhase) models.PhaseResult {
	result := newPhaseResult(phase)

	spec := kubernetes.WorkloadSpec{
		Name:        burnerName(g.config.NamePrefix, phase.Name),
		Namespace:   g.config.Namespace,
		Image:       phase.Image,
		CPULimit:    phase.CPULimit,
		MemoryLimit: phase.MemoryLimit,
		Labels:      map[string]string{"hpa-verify/phase": phase.Name},
	}

	handle, err := g.workloads.CreateEphemeralWorkload(ctx, spec)
	if err != nil {
		log.Error().Err(err).Str("phase", phase.Name).Msg("Burner pod create failed, aborting phase")
		result.Error = err.Error()
		return result
	}

	// The resource exists from here on: exactly one release on every
	// return path below.
	defer func() {
		g.release(handle, &result)
		result.StoppedAt = time.Now()
	}()

	if err := g.workloads.WaitRunning(ctx, handle, g.config.ReadyTimeout); err != nil {
		log.Error().Err(err).Str("pod", handle.String()).Msg("Burner pod never became ready")
		result.Error = err.Error()
		return result
	}

	result.StartedAt = time.Now()
	log.Info().
		Str("phase", phase.Name).
		Str("pod", handle.String()).
		Dur("duration", phase.Duration).
		Msg("CPU load phase running")

	select {
	case <-ctx.Done():
		log.Info().Str("phase", phase.Name).Msg("CPU load phase canceled")
	case <-time.After(phase.Duration):
	}

	return result
}

// release deletes the burner pod with bounded retries. Cancellation of
// the run must not leak the pod, so deletion runs on its own context.
// Exhausted retries mark the result for the report's leak warning.
func (g *CPUGenerator) release(handle kubernetes.WorkloadHandle, result *models.PhaseResult) {
	for attempt := 1; attempt <= g.config.DeleteRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := g.workloads.DeleteEphemeralWorkload(ctx, handle)
		cancel()

		if err == nil {
			return
		}

		log.Warn().
			Err(err).
			Str("pod", handle.String()).
			Int("attempt", attempt).
			Int("max_attempts", g.config.DeleteRetries).
			Msg("Burner pod delete failed")

		if attempt < g.config.DeleteRetries {
			time.Sleep(g.config.DeleteBackoff)
		}
	}

	result.ResourceLeaked = true
	log.Error().
		Str("pod", handle.String()).
		Msg("Burner pod could not be deleted, resource leaked")
}

// burnerName builds a unique, DNS-safe pod name.
func burnerName(prefix, phase string) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	name := fmt.Sprintf("%s-%s-%s", prefix, phase, suffix)
	return strings.ToLower(name)
}
