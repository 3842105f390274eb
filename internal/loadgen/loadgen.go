package loadgen

import (
	"context"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// Generator applies one load phase. Run blocks for the phase duration
// or until the context is canceled, and guarantees teardown of the
// phase's ephemeral resource on every exit path. Failures surface in
// the PhaseResult, never as a panic.
type Generator interface {
	Run(ctx context.Context, phase models.LoadPhase) models.PhaseResult
}

func newPhaseResult(phase models.LoadPhase) models.PhaseResult {
	return models.PhaseResult{
		Name:      phase.Name,
		Kind:      phase.Kind,
		KindLabel: phase.Kind.String(),
	}
}
