package models

import "time"

// Verdict is the final adjudication of a run.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictAborted Verdict = "aborted"
)

// ExitCode maps a verdict to the process exit code used by CI.
// Config and infrastructure errors exit 2 and never reach a verdict.
func (v Verdict) ExitCode() int {
	switch v {
	case VerdictPass:
		return 0
	case VerdictFail:
		return 1
	case VerdictAborted:
		return 3
	default:
		return 2
	}
}

// ViolationKind classifies a threshold violation.
type ViolationKind string

const (
	ScaleUpDeadlineExceeded   ViolationKind = "ScaleUpDeadlineExceeded"
	ScaleDownDeadlineExceeded ViolationKind = "ScaleDownDeadlineExceeded"
	BoundsViolation           ViolationKind = "BoundsViolation"
)

// Violation records one adjudicated failure. Deadline violations are
// timestamped at the deadline boundary, bounds violations at the
// offending sample.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Expected  string        `json:"expected"`
	Observed  string        `json:"observed"`
}

// PhaseResult is the outcome of one load phase. Error is set when the
// phase aborted on a resource failure; ResourceLeaked flags an
// ephemeral resource whose deletion kept failing after retries.
type PhaseResult struct {
	Name           string    `json:"name"`
	Kind           LoadKind  `json:"-"`
	KindLabel      string    `json:"kind"`
	StartedAt      time.Time `json:"startedAt"`
	StoppedAt      time.Time `json:"stoppedAt"`
	Requests       int64     `json:"requests,omitempty"`
	Failures       int64     `json:"failures,omitempty"`
	Error          string    `json:"error,omitempty"`
	ResourceLeaked bool      `json:"resourceLeaked,omitempty"`
}

// Duration returns the wall-clock span of actual load application.
func (p PhaseResult) Duration() time.Duration {
	if p.StoppedAt.IsZero() || p.StartedAt.IsZero() {
		return 0
	}
	return p.StoppedAt.Sub(p.StartedAt)
}

// Failed reports whether the phase aborted before applying its load.
func (p PhaseResult) Failed() bool {
	return p.Error != ""
}

// RunReport is the final artifact of a scenario run. Phases and
// Violations preserve execution/chronological order; Warnings carries
// leaked-resource notices and other non-fatal conditions.
type RunReport struct {
	RunID       string         `json:"runId"`
	Target      TargetSelector `json:"target"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	Phases      []PhaseResult  `json:"phases"`
	SampleCount int            `json:"sampleCount"`
	Verdict     Verdict        `json:"verdict"`
	Violations  []Violation    `json:"violations"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Duration returns the total wall-clock span of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
