package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// StatusReader is the control-plane surface the observer polls.
type StatusReader interface {
	GetScalerStatus(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error)
}

// Enricher optionally replaces the sample's metric value with a richer
// source (Prometheus). Enrichment failures degrade to the HPA-reported
// value, never to a poll failure.
type Enricher interface {
	InstantValue(ctx context.Context) (float64, error)
}

// ObserverConfig tunes the polling loop.
type ObserverConfig struct {
	Interval     time.Duration // time between polls (default: 5s)
	MaxRetries   int           // attempts per poll before a gap marker (default: 3)
	RetryBackoff time.Duration // pause between attempts (default: 200ms)
}

// DefaultObserverConfig returns the default polling settings.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		Interval:     5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// Observer polls the autoscaler on a fixed interval and appends every
// observation to the run's time series. It is the series' only writer.
type Observer struct {
	reader   StatusReader
	enricher Enricher
	target   models.TargetSelector
	config   ObserverConfig

	series *models.TimeSeries

	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewObserver builds an observer for one target. The enricher may be
// nil.
func NewObserver(reader StatusReader, target models.TargetSelector, config ObserverConfig) *Observer {
	if config.Interval <= 0 {
		config.Interval = DefaultObserverConfig().Interval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultObserverConfig().MaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultObserverConfig().RetryBackoff
	}

	return &Observer{
		reader: reader,
		target: target,
		config: config,
		series: models.NewTimeSeries(),
		done:   make(chan struct{}),
	}
}

// WithEnricher attaches an optional metric source consulted after each
// successful poll.
func (o *Observer) WithEnricher(e Enricher) *Observer {
	o.enricher = e
	return o
}

// Series exposes the live series for read-only peeking (watch view).
func (o *Observer) Series() *models.TimeSeries {
	return o.series
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (o *Observer) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	log.Info().
		Str("target", o.target.String()).
		Dur("interval", o.config.Interval).
		Msg("Observer started")

	go o.loop(runCtx)
}

// Stop halts polling, waits for the goroutine to exit, and returns the
// recorded series. Idempotent; no sample can be appended after Stop
// returns.
func (o *Observer) Stop() *models.TimeSeries {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if !started {
		return o.series
	}

	o.stopOnce.Do(func() {
		o.cancel()
	})
	<-o.done

	log.Info().
		Str("target", o.target.String()).
		Int("samples", o.series.Len()).
		Msg("Observer stopped")

	return o.series
}

func (o *Observer) loop(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	// First poll immediately, then on every tick.
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll reads the scaler status with bounded retries. Exhausting the
// retries appends a gap marker so the series records the lost slot
// instead of silently thinning out.
func (o *Observer) poll(ctx context.Context) {
	var lastErr error

	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.config.Interval)
		status, err := o.reader.GetScalerStatus(attemptCtx, o.target)
		cancel()

		if err == nil {
			o.record(ctx, status)
			return
		}
		lastErr = err

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", o.config.MaxRetries).
			Msg("Poll attempt failed")

		select {
		case <-ctx.Done():
			// Shutting down; not a lost observation slot.
			return
		case <-time.After(o.config.RetryBackoff):
		}
	}

	log.Warn().
		Err(lastErr).
		Str("target", o.target.String()).
		Msg("Poll retries exhausted, recording gap")

	o.series.Append(models.Sample{Timestamp: time.Now(), Gap: true})
}

func (o *Observer) record(ctx context.Context, status models.ScalerStatus) {
	sample := models.Sample{
		Timestamp:       time.Now(),
		CurrentReplicas: status.CurrentReplicas,
		DesiredReplicas: status.DesiredReplicas,
		MetricValue:     status.MetricValue,
		MetricTarget:    status.MetricTarget,
	}

	if o.enricher != nil {
		if v, err := o.enricher.InstantValue(ctx); err == nil {
			sample.MetricValue = v
		} else {
			log.Debug().Err(err).Msg("Metric enrichment failed, using scaler-reported value")
		}
	}

	if !o.series.Append(sample) {
		log.Debug().Time("timestamp", sample.Timestamp).Msg("Out-of-order sample dropped")
	}
}
