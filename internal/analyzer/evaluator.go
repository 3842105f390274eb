package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// EvaluatorConfig tunes adjudication.
type EvaluatorConfig struct {
	// BoundsGracePeriod tolerates out-of-bounds replica counts within
	// this window of the first sample. Replicas left over from a
	// previous run need time to drain before bounds checking is fair.
	BoundsGracePeriod time.Duration
}

// DefaultEvaluatorConfig returns the default thresholds.
func DefaultEvaluatorConfig() *EvaluatorConfig {
	return &EvaluatorConfig{
		BoundsGracePeriod: 60 * time.Second,
	}
}

// Evaluator adjudicates a recorded series against a scaling
// expectation. Evaluation is pure: no clocks, no I/O.
type Evaluator struct {
	config *EvaluatorConfig
}

// NewEvaluator builds an evaluator. A nil config uses the defaults.
func NewEvaluator(config *EvaluatorConfig) *Evaluator {
	if config == nil {
		config = DefaultEvaluatorConfig()
	}
	return &Evaluator{config: config}
}

// Evaluate scans the series once per rule and returns every violation
// in chronological order. Gap samples are present in the series but
// excluded from all threshold math. Deadline boundaries are inclusive:
// a sample exactly at the deadline satisfies it.
func (e *Evaluator) Evaluate(samples []models.Sample, exp models.ScalingExpectation, loadStart, loadStop time.Time) []models.Violation {
	violations := []models.Violation{}

	violations = append(violations, e.boundsViolations(samples, exp)...)

	if v := e.scaleUpViolation(samples, exp, loadStart); v != nil {
		violations = append(violations, *v)
	}
	if v := e.scaleDownViolation(samples, exp, loadStop); v != nil {
		violations = append(violations, *v)
	}

	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Timestamp.Before(violations[j].Timestamp)
	})

	return violations
}

// boundsViolations flags every sample outside [min, max], skipping the
// startup grace window measured from the first sample.
func (e *Evaluator) boundsViolations(samples []models.Sample, exp models.ScalingExpectation) []models.Violation {
	var violations []models.Violation

	var graceEnd time.Time
	if len(samples) > 0 {
		graceEnd = samples[0].Timestamp.Add(e.config.BoundsGracePeriod)
	}

	for _, s := range samples {
		if s.Gap {
			continue
		}
		if s.Timestamp.Before(graceEnd) {
			continue
		}
		if s.CurrentReplicas < exp.MinReplicas || s.CurrentReplicas > exp.MaxReplicas {
			violations = append(violations, models.Violation{
				Kind:      models.BoundsViolation,
				Timestamp: s.Timestamp,
				Expected:  fmt.Sprintf("%d..%d replicas", exp.MinReplicas, exp.MaxReplicas),
				Observed:  fmt.Sprintf("%d replicas", s.CurrentReplicas),
			})
		}
	}

	return violations
}

// scaleUpViolation checks that replicas rose above the pre-load
// baseline before the scale-up deadline.
func (e *Evaluator) scaleUpViolation(samples []models.Sample, exp models.ScalingExpectation, loadStart time.Time) *models.Violation {
	deadline := loadStart.Add(exp.ScaleUpDeadline)

	baseline, ok := baselineReplicas(samples, loadStart)
	if !ok {
		// Nothing observed at all; the deadline cannot have been met.
		return &models.Violation{
			Kind:      models.ScaleUpDeadlineExceeded,
			Timestamp: deadline,
			Expected:  fmt.Sprintf("scale-up within %v of load start", exp.ScaleUpDeadline),
			Observed:  "no samples recorded",
		}
	}

	floor := baseline + 1
	for _, s := range samples {
		if s.Gap || s.Timestamp.Before(loadStart) || s.Timestamp.After(deadline) {
			continue
		}
		if s.CurrentReplicas >= floor {
			return nil
		}
	}

	observed := fmt.Sprintf("still %d replicas at deadline", replicasAtOrBefore(samples, deadline, baseline))
	return &models.Violation{
		Kind:      models.ScaleUpDeadlineExceeded,
		Timestamp: deadline,
		Expected:  fmt.Sprintf(">= %d replicas within %v of load start", floor, exp.ScaleUpDeadline),
		Observed:  observed,
	}
}

// scaleDownViolation checks that replicas returned to the configured
// minimum before the scale-down deadline, measured from load stop.
func (e *Evaluator) scaleDownViolation(samples []models.Sample, exp models.ScalingExpectation, loadStop time.Time) *models.Violation {
	deadline := loadStop.Add(exp.ScaleDownDeadline)

	sawAny := false
	for _, s := range samples {
		if s.Gap || s.Timestamp.Before(loadStop) || s.Timestamp.After(deadline) {
			continue
		}
		sawAny = true
		if s.CurrentReplicas <= exp.MinReplicas {
			return nil
		}
	}

	observed := "no samples recorded"
	if sawAny {
		last, _ := lastNonGapAtOrBefore(samples, deadline)
		observed = fmt.Sprintf("still %d replicas at deadline", last)
	}
	return &models.Violation{
		Kind:      models.ScaleDownDeadlineExceeded,
		Timestamp: deadline,
		Expected:  fmt.Sprintf("return to %d replicas within %v of load stop", exp.MinReplicas, exp.ScaleDownDeadline),
		Observed:  observed,
	}
}

// baselineReplicas finds the pre-load replica count: the last non-gap
// sample at or before loadStart, falling back to the first non-gap
// sample of the series.
func baselineReplicas(samples []models.Sample, loadStart time.Time) (int32, bool) {
	if v, ok := lastNonGapAtOrBefore(samples, loadStart); ok {
		return v, true
	}
	for _, s := range samples {
		if !s.Gap {
			return s.CurrentReplicas, true
		}
	}
	return 0, false
}

func lastNonGapAtOrBefore(samples []models.Sample, t time.Time) (int32, bool) {
	found := false
	var replicas int32
	for _, s := range samples {
		if s.Gap || s.Timestamp.After(t) {
			continue
		}
		replicas = s.CurrentReplicas
		found = true
	}
	return replicas, found
}

func replicasAtOrBefore(samples []models.Sample, t time.Time, fallback int32) int32 {
	if v, ok := lastNonGapAtOrBefore(samples, t); ok {
		return v
	}
	return fallback
}
