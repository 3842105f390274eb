package report

import (
	"fmt"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// BuildInput carries everything the builder needs. The builder itself
// holds no state and touches no clock; FinishedAt comes from the caller
// so the same input always yields the same report.
type BuildInput struct {
	RunID       string
	Target      models.TargetSelector
	StartedAt   time.Time
	FinishedAt  time.Time
	Phases      []models.PhaseResult
	SampleCount int
	Violations  []models.Violation
	Warnings    []string
	Aborted     bool
}

// Build assembles the final run report. Verdict precedence: an aborted
// run is aborted no matter what the series shows; otherwise any
// violation fails the run. Phase and violation order are preserved.
func Build(in BuildInput) models.RunReport {
	verdict := models.VerdictPass
	if len(in.Violations) > 0 {
		verdict = models.VerdictFail
	}
	if in.Aborted {
		verdict = models.VerdictAborted
	}

	warnings := append([]string(nil), in.Warnings...)
	for _, phase := range in.Phases {
		if phase.Failed() {
			warnings = append(warnings, fmt.Sprintf("phase %q did not apply load: %s", phase.Name, phase.Error))
		}
		if phase.ResourceLeaked {
			warnings = append(warnings, fmt.Sprintf("phase %q could not delete its workload; manual cleanup needed", phase.Name))
		}
	}

	return models.RunReport{
		RunID:       in.RunID,
		Target:      in.Target,
		StartedAt:   in.StartedAt,
		FinishedAt:  in.FinishedAt,
		Phases:      append([]models.PhaseResult(nil), in.Phases...),
		SampleCount: in.SampleCount,
		Verdict:     verdict,
		Violations:  append([]models.Violation(nil), in.Violations...),
		Warnings:    warnings,
	}
}
