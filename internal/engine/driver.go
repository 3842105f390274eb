package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/analyzer"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/loadgen"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/monitor"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/report"
)

// State is the driver's position in the verification run.
type State int

const (
	StateIdle State = iota
	StateBaseline
	StateLoadApplied
	StateAwaitingScaleUp
	StateSustain
	StateLoadRemoved
	StateAwaitingScaleDown
	StateReporting
	StateDone
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBaseline:
		return "Baseline"
	case StateLoadApplied:
		return "LoadApplied"
	case StateAwaitingScaleUp:
		return "AwaitingScaleUp"
	case StateSustain:
		return "Sustain"
	case StateLoadRemoved:
		return "LoadRemoved"
	case StateAwaitingScaleDown:
		return "AwaitingScaleDown"
	case StateReporting:
		return "Reporting"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Event is what watchers (TUI, web) see of a running verification.
// Sends never block; a slow watcher drops events, not the run.
type Event struct {
	Time    time.Time
	State   State
	Message string
	Sample  *models.Sample // latest observation, may be nil
}

// Archiver persists finished reports. Saving is best effort; a failed
// save is logged and the run result is unaffected.
type Archiver interface {
	SaveReport(report models.RunReport) error
}

// Config describes one verification run.
type Config struct {
	RunID       string // generated when empty
	Target      models.TargetSelector
	Expectation models.ScalingExpectation
	Phases      []models.LoadPhase
	Sustain     time.Duration
	Observer    monitor.ObserverConfig
	BoundsGrace time.Duration
}

// Driver owns the run: it starts the observer, executes the load
// phases, paces the scale-up/scale-down waits, and hands the recorded
// series to the evaluator. Deadline misses are data for the report;
// the driver only fails early on infrastructure errors.
type Driver struct {
	config     Config
	reader     monitor.StatusReader
	generators map[models.LoadKind]loadgen.Generator
	observer   *monitor.Observer
	evaluator  *analyzer.Evaluator
	archive    Archiver
	events     chan<- Event

	mu    sync.RWMutex
	state State
}

// New builds a driver. The generators map binds each load kind the
// scenario uses to its implementation.
func New(reader monitor.StatusReader, generators map[models.LoadKind]loadgen.Generator, config Config) *Driver {
	if config.Observer.Interval <= 0 {
		config.Observer = monitor.DefaultObserverConfig()
	}
	if config.Sustain < 0 {
		config.Sustain = 0
	}
	if config.BoundsGrace < 0 {
		config.BoundsGrace = 0
	}

	return &Driver{
		config:     config,
		reader:     reader,
		generators: generators,
		observer:   monitor.NewObserver(reader, config.Target, config.Observer),
		evaluator:  analyzer.NewEvaluator(&analyzer.EvaluatorConfig{BoundsGracePeriod: config.BoundsGrace}),
		state:      StateIdle,
	}
}

// SetEnricher routes observer samples through an extra metric source.
func (d *Driver) SetEnricher(e monitor.Enricher) {
	d.observer = d.observer.WithEnricher(e)
}

// SetArchive persists finished reports to the given store.
func (d *Driver) SetArchive(a Archiver) {
	d.archive = a
}

// SetEvents attaches a watch channel. The driver never blocks on it.
func (d *Driver) SetEvents(ch chan<- Event) {
	d.events = ch
}

// State returns the current run state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Run executes the scenario to completion and returns its report.
// Cancellation produces an aborted report, not an error; errors are
// reserved for infrastructure failures that prevent adjudication.
func (d *Driver) Run(ctx context.Context) (models.RunReport, error) {
	runID := d.config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	startedAt := time.Now()

	log.Info().
		Str("run_id", runID).
		Str("target", d.config.Target.String()).
		Int("phases", len(d.config.Phases)).
		Msg("verification run starting")

	// The baseline read doubles as the connection probe: an unreadable
	// autoscaler means no adjudication is possible.
	d.transition(StateBaseline, "probing autoscaler")
	status, err := d.reader.GetScalerStatus(ctx, d.config.Target)
	if err != nil {
		d.transition(StateFailed, "autoscaler unreadable")
		return models.RunReport{}, fmt.Errorf("baseline probe failed: %w", err)
	}
	baseline := status.CurrentReplicas
	floor := baseline + 1
	log.Info().
		Int32("baseline_replicas", baseline).
		Int32("scale_up_floor", floor).
		Msg("baseline captured")

	d.observer.Start(ctx)
	series := d.observer.Series()
	d.waitFirstSample(ctx, series)

	d.transition(StateLoadApplied, "applying load")
	phases := d.runPhases(ctx)
	loadStart, loadStop := loadWindow(phases)

	aborted := ctx.Err() != nil
	if !aborted && loadStart.IsZero() {
		d.observer.Stop()
		d.transition(StateFailed, "no load applied")
		return models.RunReport{}, fmt.Errorf("all %d load phases failed", len(phases))
	}

	if !aborted {
		d.transition(StateAwaitingScaleUp, "waiting for scale-up")
		deadline := loadStart.Add(d.config.Expectation.ScaleUpDeadline)
		if d.await(ctx, series, deadline, func(s models.Sample) bool {
			return s.CurrentReplicas >= floor
		}) {
			log.Info().Int32("floor", floor).Msg("scale-up observed")
		} else if ctx.Err() == nil {
			log.Warn().
				Time("deadline", deadline).
				Msg("scale-up deadline passed, continuing; the evaluator records the miss")
		}
		aborted = ctx.Err() != nil
	}

	if !aborted && d.config.Sustain > 0 {
		d.transition(StateSustain, "sustaining observation")
		select {
		case <-ctx.Done():
		case <-time.After(d.config.Sustain):
		}
		aborted = ctx.Err() != nil
	}

	if !aborted {
		// Generators release their resources before returning, so the
		// load-free epoch began at loadStop; this transition only marks
		// it for watchers.
		d.transition(StateLoadRemoved, "load released")
	}

	if !aborted {
		d.transition(StateAwaitingScaleDown, "waiting for scale-down")
		deadline := loadStop.Add(d.config.Expectation.ScaleDownDeadline)
		if d.await(ctx, series, deadline, func(s models.Sample) bool {
			return s.CurrentReplicas <= d.config.Expectation.MinReplicas
		}) {
			log.Info().
				Int32("min_replicas", d.config.Expectation.MinReplicas).
				Msg("scale-down observed")
		} else if ctx.Err() == nil {
			log.Warn().
				Time("deadline", deadline).
				Msg("scale-down deadline passed, continuing; the evaluator records the miss")
		}
		aborted = ctx.Err() != nil
	}

	d.transition(StateReporting, "evaluating recorded series")
	recorded := d.observer.Stop()
	samples := recorded.Snapshot()

	var violations []models.Violation
	if !loadStart.IsZero() {
		violations = d.evaluator.Evaluate(samples, d.config.Expectation, loadStart, loadStop)
	}

	rep := report.Build(report.BuildInput{
		RunID:       runID,
		Target:      d.config.Target,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Phases:      phases,
		SampleCount: len(samples),
		Violations:  violations,
		Warnings:    seriesWarnings(samples),
		Aborted:     aborted,
	})

	if d.archive != nil {
		if err := d.archive.SaveReport(rep); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("report archive failed")
		}
	}

	switch {
	case aborted:
		d.transition(StateAborted, "run aborted")
	default:
		d.transition(StateDone, fmt.Sprintf("verdict %s", rep.Verdict))
	}

	log.Info().
		Str("run_id", runID).
		Str("verdict", string(rep.Verdict)).
		Int("violations", len(rep.Violations)).
		Int("samples", rep.SampleCount).
		Dur("duration", rep.Duration()).
		Msg("verification run finished")

	return rep, nil
}

// runPhases executes the scenario's phases in order. A failed phase is
// recorded and the remaining phases still run; cancellation stops the
// sequence after the in-flight phase finished its teardown.
func (d *Driver) runPhases(ctx context.Context) []models.PhaseResult {
	results := make([]models.PhaseResult, 0, len(d.config.Phases))
	for _, phase := range d.config.Phases {
		if ctx.Err() != nil {
			break
		}

		gen, ok := d.generators[phase.Kind]
		if !ok {
			log.Error().
				Str("phase", phase.Name).
				Str("kind", phase.Kind.String()).
				Msg("no generator bound for load kind")
			results = append(results, models.PhaseResult{
				Name:      phase.Name,
				Kind:      phase.Kind,
				KindLabel: phase.Kind.String(),
				Error:     fmt.Sprintf("no generator for load kind %q", phase.Kind),
			})
			continue
		}

		results = append(results, d.runPhase(ctx, phase, gen))
	}
	return results
}

// runPhase runs one generator alongside a heartbeat that keeps
// watchers updated while the load holds.
func (d *Driver) runPhase(ctx context.Context, phase models.LoadPhase, gen loadgen.Generator) models.PhaseResult {
	var result models.PhaseResult
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		result = gen.Run(gctx, phase)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(d.config.Observer.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				d.publish(Event{
					Time:    time.Now(),
					State:   d.State(),
					Message: "phase " + phase.Name,
					Sample:  d.observer.Series().Latest(),
				})
			}
		}
	})
	_ = g.Wait()

	if result.Failed() {
		log.Error().
			Str("phase", phase.Name).
			Str("error", result.Error).
			Msg("load phase failed")
	}
	return result
}

// waitFirstSample holds the run until the observer lands its first
// sample, anchoring the pre-load replica count in the series. Bounded:
// an unreachable control plane shows up as gaps, not as a stuck run.
func (d *Driver) waitFirstSample(ctx context.Context, series *models.TimeSeries) {
	timeout := time.After(3 * d.config.Observer.Interval)
	ticker := time.NewTicker(d.config.Observer.Interval / 4)
	defer ticker.Stop()

	for {
		if series.Len() > 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			return
		case <-ticker.C:
		}
	}
}

// await ticks until the latest non-gap sample satisfies the condition,
// the deadline passes, or the run is canceled. The return value paces
// the run only; pass/fail comes from the evaluator afterwards.
func (d *Driver) await(ctx context.Context, series *models.TimeSeries, deadline time.Time, met func(models.Sample) bool) bool {
	ticker := time.NewTicker(d.config.Observer.Interval)
	defer ticker.Stop()

	for {
		latest := series.Latest()
		if latest != nil && !latest.Gap && met(*latest) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			d.publish(Event{
				Time:   time.Now(),
				State:  d.State(),
				Sample: latest,
			})
		}
	}
}

func (d *Driver) transition(next State, msg string) {
	d.mu.Lock()
	prev := d.state
	d.state = next
	d.mu.Unlock()

	log.Info().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg(msg)
	d.publish(Event{Time: time.Now(), State: next, Message: msg})
}

func (d *Driver) publish(ev Event) {
	if d.events == nil {
		return
	}
	select {
	case d.events <- ev:
	default:
	}
}

// loadWindow returns when load application actually started and
// stopped. Phases that never started (create failures) are skipped.
func loadWindow(phases []models.PhaseResult) (start, stop time.Time) {
	for _, p := range phases {
		if p.StartedAt.IsZero() {
			continue
		}
		if start.IsZero() || p.StartedAt.Before(start) {
			start = p.StartedAt
		}
		if p.StoppedAt.After(stop) {
			stop = p.StoppedAt
		}
	}
	return start, stop
}

// seriesWarnings surfaces observation quality problems in the report.
func seriesWarnings(samples []models.Sample) []string {
	gaps := 0
	for _, s := range samples {
		if s.Gap {
			gaps++
		}
	}
	if gaps == 0 {
		return nil
	}
	return []string{fmt.Sprintf("observation recorded %d gap(s); the control plane was unreachable during those slots", gaps)}
}
