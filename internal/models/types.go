package models

import (
	"fmt"
	"sync"
	"time"
)

// TargetSelector identifies the service under verification and the
// autoscaler that manages it. Immutable for the lifetime of a run.
type TargetSelector struct {
	Namespace     string `json:"namespace"`
	LabelSelector string `json:"labelSelector"`
	Autoscaler    string `json:"autoscaler"`
}

func (t TargetSelector) String() string {
	return fmt.Sprintf("%s/%s (selector=%s)", t.Namespace, t.Autoscaler, t.LabelSelector)
}

// ScalerStatus is a single read of the autoscaler state from the
// control plane.
type ScalerStatus struct {
	CurrentReplicas int32   `json:"currentReplicas"`
	DesiredReplicas int32   `json:"desiredReplicas"`
	MetricValue     float64 `json:"metricValue"`  // observed value of the scaling metric (ex: CPU %)
	MetricTarget    float64 `json:"metricTarget"` // configured target for the same metric
}

// Sample is one observation appended to the run's time series.
// A sample with Gap=true marks an observation slot lost to repeated
// poll failures; it carries a timestamp and zeroed metrics.
type Sample struct {
	Timestamp       time.Time `json:"timestamp"`
	CurrentReplicas int32     `json:"currentReplicas"`
	DesiredReplicas int32     `json:"desiredReplicas"`
	MetricValue     float64   `json:"metricValue"`
	MetricTarget    float64   `json:"metricTarget"`
	Gap             bool      `json:"gap,omitempty"`
}

// TimeSeries is the append-only record of samples for one run.
// The observer is the only writer; timestamps are strictly increasing.
type TimeSeries struct {
	samples []Sample
	sync.RWMutex
}

// NewTimeSeries returns an empty series.
func NewTimeSeries() *TimeSeries {
	return &TimeSeries{samples: make([]Sample, 0, 256)}
}

// Append adds a sample to the series. Samples whose timestamp is not
// strictly after the last recorded one are dropped, so arrival jitter
// can never produce an out-of-order series. Returns false when dropped.
func (ts *TimeSeries) Append(s Sample) bool {
	ts.Lock()
	defer ts.Unlock()

	if n := len(ts.samples); n > 0 && !s.Timestamp.After(ts.samples[n-1].Timestamp) {
		return false
	}
	ts.samples = append(ts.samples, s)
	return true
}

// Latest returns the most recent sample, or nil when the series is empty.
func (ts *TimeSeries) Latest() *Sample {
	ts.RLock()
	defer ts.RUnlock()

	if len(ts.samples) == 0 {
		return nil
	}
	s := ts.samples[len(ts.samples)-1]
	return &s
}

// Len returns the number of recorded samples, gap markers included.
func (ts *TimeSeries) Len() int {
	ts.RLock()
	defer ts.RUnlock()
	return len(ts.samples)
}

// Snapshot returns a copy of the series. The internal slice never
// escapes, so callers can hold the result across observer shutdown.
func (ts *TimeSeries) Snapshot() []Sample {
	ts.RLock()
	defer ts.RUnlock()

	out := make([]Sample, len(ts.samples))
	copy(out, ts.samples)
	return out
}

// LoadKind selects the load generator variant for a phase.
type LoadKind int

const (
	LoadCPU  LoadKind = iota // ephemeral CPU burner pod
	LoadHTTP                 // HTTP traffic against the service endpoint
)

func (k LoadKind) String() string {
	switch k {
	case LoadCPU:
		return "cpu"
	case LoadHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// LoadPhase describes one bounded application of synthetic load.
type LoadPhase struct {
	Name     string
	Kind     LoadKind
	Duration time.Duration

	// HTTP variant
	Endpoint    string
	Concurrency int // worker count; also the cap when RPS > 0
	RPS         int // 0 means free-running at fixed concurrency

	// CPU variant
	Image       string // burner pod image
	CPULimit    string // k8s quantity, ex: "500m"
	MemoryLimit string // k8s quantity, ex: "128Mi"
}

// ScalingExpectation holds the quantitative thresholds a run is
// adjudicated against. MinReplicas <= MaxReplicas is enforced at
// config validation.
type ScalingExpectation struct {
	MinReplicas       int32         `json:"minReplicas"`
	MaxReplicas       int32         `json:"maxReplicas"`
	ScaleUpDeadline   time.Duration `json:"scaleUpDeadline"`   // measured from load start
	ScaleDownDeadline time.Duration `json:"scaleDownDeadline"` // measured from load stop
}
