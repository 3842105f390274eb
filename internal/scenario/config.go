package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/validation"
)

// Config is the full description of one verification run, loaded from
// an explicit JSON file. No environment variables are consulted.
type Config struct {
	Target      TargetConfig      `json:"target"`
	Expectation ExpectationConfig `json:"expectation"`
	Phases      []PhaseConfig     `json:"phases"`
	Observer    PollConfig        `json:"observer"`

	// Observation window after scale-up before the scale-down wait.
	Sustain model.Duration `json:"sustain"`

	// Startup window during which out-of-bounds replica counts are
	// tolerated (replicas left over from a previous run).
	BoundsGrace model.Duration `json:"boundsGrace"`

	Prometheus  PrometheusConfig  `json:"prometheus"`
	PortForward PortForwardConfig `json:"portforward"`
	Archive     ArchiveConfig     `json:"archive"`
}

// TargetConfig mirrors models.TargetSelector in the config file.
type TargetConfig struct {
	Namespace     string `json:"namespace"`
	LabelSelector string `json:"labelSelector"`
	Autoscaler    string `json:"autoscaler"`
}

// ExpectationConfig holds the adjudication thresholds.
type ExpectationConfig struct {
	MinReplicas       int32          `json:"minReplicas"`
	MaxReplicas       int32          `json:"maxReplicas"`
	ScaleUpDeadline   model.Duration `json:"scaleUpDeadline"`
	ScaleDownDeadline model.Duration `json:"scaleDownDeadline"`
}

// PhaseConfig describes one load phase in the file schema.
type PhaseConfig struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"` // "cpu" or "http"
	Duration model.Duration `json:"duration"`

	// HTTP variant
	Endpoint    string `json:"endpoint,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	RPS         int    `json:"rps,omitempty"`

	// CPU variant
	Image       string `json:"image,omitempty"`
	CPULimit    string `json:"cpuLimit,omitempty"`
	MemoryLimit string `json:"memoryLimit,omitempty"`
}

// PollConfig controls the observer loop.
type PollConfig struct {
	Interval model.Duration `json:"interval"`
}

// PrometheusConfig enables optional metric enrichment. Both fields or
// neither.
type PrometheusConfig struct {
	URL   string `json:"url,omitempty"`
	Query string `json:"query,omitempty"`
}

// PortForwardConfig reaches ClusterIP services from outside the cluster.
type PortForwardConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	Service    string `json:"service,omitempty"`
	LocalPort  int    `json:"localPort,omitempty"`
	RemotePort int    `json:"remotePort,omitempty"`
}

// ArchiveConfig controls the sqlite run archive.
type ArchiveConfig struct {
	Path     string         `json:"path,omitempty"`
	MaxAge   model.Duration `json:"maxAge,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

const (
	defaultBurnerImage = "busybox:1.36"
	defaultCPULimit    = "500m"
	defaultMemoryLimit = "128Mi"
	defaultConcurrency = 10
)

// DefaultConfig returns a config with every tunable at its default.
// Target, expectation and phases still have to come from the file.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Observer:    PollConfig{Interval: model.Duration(5 * time.Second)},
		Sustain:     model.Duration(60 * time.Second),
		BoundsGrace: model.Duration(60 * time.Second),
		Archive: ArchiveConfig{
			Path:   filepath.Join(home, ".hpa-verify", "runs.db"),
			MaxAge: model.Duration(30 * 24 * time.Hour),
		},
	}
}

// Load reads and decodes a scenario file on top of the defaults.
// Unknown fields are rejected so typos surface before a run starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills per-phase fields the file left empty.
func (c *Config) applyDefaults() {
	for i := range c.Phases {
		p := &c.Phases[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("phase-%d", i+1)
		}
		if strings.EqualFold(p.Kind, models.LoadCPU.String()) {
			if p.Image == "" {
				p.Image = defaultBurnerImage
			}
			if p.CPULimit == "" {
				p.CPULimit = defaultCPULimit
			}
			if p.MemoryLimit == "" {
				p.MemoryLimit = defaultMemoryLimit
			}
		}
		if strings.EqualFold(p.Kind, models.LoadHTTP.String()) && p.Concurrency == 0 {
			p.Concurrency = defaultConcurrency
		}
	}
}

// Validate checks the whole config and aggregates every problem into a
// single fatal error. Nothing is created before this passes.
func (c *Config) Validate() error {
	result := validation.NewResult()

	if c.Target.Namespace == "" {
		result.AddError("target.namespace", "", "is required")
	}
	if c.Target.Autoscaler == "" {
		result.AddError("target.autoscaler", "", "is required")
	}
	if c.Target.LabelSelector != "" {
		if _, err := labels.Parse(c.Target.LabelSelector); err != nil {
			result.AddError("target.labelSelector", c.Target.LabelSelector, "not a valid label selector")
		}
	}

	result.Merge(validation.ValidateReplicaBounds(c.Expectation.MinReplicas, c.Expectation.MaxReplicas))
	if err := validation.ValidatePositiveDuration("expectation.scaleUpDeadline", time.Duration(c.Expectation.ScaleUpDeadline)); err != nil {
		result.AddError("expectation.scaleUpDeadline", c.Expectation.ScaleUpDeadline.String(), "must be a positive duration")
	}
	if err := validation.ValidatePositiveDuration("expectation.scaleDownDeadline", time.Duration(c.Expectation.ScaleDownDeadline)); err != nil {
		result.AddError("expectation.scaleDownDeadline", c.Expectation.ScaleDownDeadline.String(), "must be a positive duration")
	}

	if len(c.Phases) == 0 {
		result.AddError("phases", "", "at least one load phase is required")
	}
	for i, p := range c.Phases {
		c.validatePhase(result, i, p)
	}

	interval := time.Duration(c.Observer.Interval)
	if interval < time.Second {
		result.AddError("observer.interval", c.Observer.Interval.String(), "minimum interval is 1s")
	}
	if interval > 5*time.Minute {
		result.AddError("observer.interval", c.Observer.Interval.String(), "maximum interval is 5m")
	}

	if time.Duration(c.Sustain) < 0 {
		result.AddError("sustain", c.Sustain.String(), "must not be negative")
	}
	if time.Duration(c.BoundsGrace) < 0 {
		result.AddError("boundsGrace", c.BoundsGrace.String(), "must not be negative")
	}

	if (c.Prometheus.URL == "") != (c.Prometheus.Query == "") {
		result.AddError("prometheus", c.Prometheus.URL, "url and query must be set together")
	}

	if c.PortForward.Enabled {
		if c.PortForward.Service == "" {
			result.AddError("portforward.service", "", "is required when portforward is enabled")
		}
		if c.PortForward.RemotePort <= 0 {
			result.AddError("portforward.remotePort", fmt.Sprintf("%d", c.PortForward.RemotePort), "must be > 0")
		}
	}

	return result.Err()
}

func (c *Config) validatePhase(result *validation.ValidationResult, i int, p PhaseConfig) {
	field := func(name string) string { return fmt.Sprintf("phases[%d].%s", i, name) }

	kind, err := ParseLoadKind(p.Kind)
	if err != nil {
		result.AddError(field("kind"), p.Kind, "must be \"cpu\" or \"http\"")
		return
	}

	if time.Duration(p.Duration) <= 0 {
		result.AddError(field("duration"), p.Duration.String(), "must be a positive duration")
	}

	switch kind {
	case models.LoadHTTP:
		if p.Endpoint == "" {
			result.AddError(field("endpoint"), "", "is required for http phases")
		}
		if p.Concurrency <= 0 {
			result.AddError(field("concurrency"), fmt.Sprintf("%d", p.Concurrency), "must be > 0")
		}
		if p.RPS < 0 {
			result.AddError(field("rps"), fmt.Sprintf("%d", p.RPS), "must not be negative")
		}
	case models.LoadCPU:
		if err := validation.ValidateCPU(p.CPULimit); err != nil {
			result.AddError(field("cpuLimit"), p.CPULimit, "not a valid CPU quantity")
		}
		if err := validation.ValidateMemory(p.MemoryLimit); err != nil {
			result.AddError(field("memoryLimit"), p.MemoryLimit, "not a valid memory quantity")
		}
	}
}

// ParseLoadKind maps the file schema's kind string to a models.LoadKind.
func ParseLoadKind(s string) (models.LoadKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return models.LoadCPU, nil
	case "http":
		return models.LoadHTTP, nil
	default:
		return 0, fmt.Errorf("unknown load kind: %q", s)
	}
}

// TargetSelector converts the file schema to the run's target value.
func (c *Config) TargetSelector() models.TargetSelector {
	return models.TargetSelector{
		Namespace:     c.Target.Namespace,
		LabelSelector: c.Target.LabelSelector,
		Autoscaler:    c.Target.Autoscaler,
	}
}

// ScalingExpectation converts the file schema to the evaluator's input.
func (c *Config) ScalingExpectation() models.ScalingExpectation {
	return models.ScalingExpectation{
		MinReplicas:       c.Expectation.MinReplicas,
		MaxReplicas:       c.Expectation.MaxReplicas,
		ScaleUpDeadline:   time.Duration(c.Expectation.ScaleUpDeadline),
		ScaleDownDeadline: time.Duration(c.Expectation.ScaleDownDeadline),
	}
}

// LoadPhases converts the file schema to the generator inputs.
// Validate must have passed; unknown kinds are skipped here.
func (c *Config) LoadPhases() []models.LoadPhase {
	phases := make([]models.LoadPhase, 0, len(c.Phases))
	for _, p := range c.Phases {
		kind, err := ParseLoadKind(p.Kind)
		if err != nil {
			continue
		}
		phases = append(phases, models.LoadPhase{
			Name:        p.Name,
			Kind:        kind,
			Duration:    time.Duration(p.Duration),
			Endpoint:    p.Endpoint,
			Concurrency: p.Concurrency,
			RPS:         p.RPS,
			Image:       p.Image,
			CPULimit:    p.CPULimit,
			MemoryLimit: p.MemoryLimit,
		})
	}
	return phases
}

// Summary returns a human-readable digest logged before a run starts.
func (c *Config) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target: %s/%s\n", c.Target.Namespace, c.Target.Autoscaler)
	fmt.Fprintf(&b, "Expectation: %d..%d replicas, scale-up %v, scale-down %v\n",
		c.Expectation.MinReplicas, c.Expectation.MaxReplicas,
		c.Expectation.ScaleUpDeadline, c.Expectation.ScaleDownDeadline)
	fmt.Fprintf(&b, "Phases: %d\n", len(c.Phases))
	for i, p := range c.Phases {
		fmt.Fprintf(&b, "  %d. %s (%s, %v)", i+1, p.Name, strings.ToLower(p.Kind), p.Duration)
		switch strings.ToLower(p.Kind) {
		case "http":
			fmt.Fprintf(&b, " -> %s c=%d", p.Endpoint, p.Concurrency)
			if p.RPS > 0 {
				fmt.Fprintf(&b, " rps=%d", p.RPS)
			}
		case "cpu":
			fmt.Fprintf(&b, " cpu=%s mem=%s", p.CPULimit, p.MemoryLimit)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Observer interval: %v, sustain: %v\n", c.Observer.Interval, c.Sustain)

	return b.String()
}
