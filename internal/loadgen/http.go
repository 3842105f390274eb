package loadgen

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// HTTPGeneratorConfig tunes the traffic generator.
type HTTPGeneratorConfig struct {
	RequestTimeout time.Duration // per-request timeout (default: 10s)
	Method         string        // HTTP method (default: GET)
}

// DefaultHTTPGeneratorConfig returns the default traffic settings.
func DefaultHTTPGeneratorConfig() HTTPGeneratorConfig {
	return HTTPGeneratorConfig{
		RequestTimeout: 10 * time.Second,
		Method:         "GET",
	}
}

// HTTPGenerator drives the target endpoint with vegeta. With RPS == 0
// the attack free-runs at the phase's fixed concurrency; otherwise it
// holds a constant rate capped by the same worker count. Individual
// request failures are counted, not fatal.
type HTTPGenerator struct {
	config HTTPGeneratorConfig
}

// NewHTTPGenerator builds an HTTP generator.
func NewHTTPGenerator(config HTTPGeneratorConfig) *HTTPGenerator {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.Method == "" {
		config.Method = "GET"
	}
	return &HTTPGenerator{config: config}
}

// Run attacks the endpoint for the phase duration. The attacker and
// its connections are the phase's disposable resource; stopping it is
// the teardown, stamped by StoppedAt.
func (g *HTTPGenerator) Run(ctx context.Context, phase models.LoadPhase) models.PhaseResult {
	result := newPhaseResult(phase)

	var pacer vegeta.Pacer
	if phase.RPS > 0 {
		pacer = vegeta.ConstantPacer{Freq: phase.RPS, Per: time.Second}
	} else {
		// Free-running, capped by the worker count below.
		pacer = vegeta.ConstantPacer{}
	}

	attacker := vegeta.NewAttacker(
		vegeta.Timeout(g.config.RequestTimeout),
		vegeta.Workers(uint64(phase.Concurrency)),
		vegeta.MaxWorkers(uint64(phase.Concurrency)),
	)
	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: g.config.Method,
		URL:    phase.Endpoint,
	})

	log.Info().
		Str("phase", phase.Name).
		Str("endpoint", phase.Endpoint).
		Int("concurrency", phase.Concurrency).
		Int("rps", phase.RPS).
		Dur("duration", phase.Duration).
		Msg("HTTP load phase running")

	result.StartedAt = time.Now()
	results := attacker.Attack(targeter, pacer, phase.Duration, phase.Name)

	result.Requests, result.Failures = collect(ctx, results, attacker.Stop)
	result.StoppedAt = time.Now()

	log.Info().
		Str("phase", phase.Name).
		Int64("requests", result.Requests).
		Int64("failures", result.Failures).
		Msg("HTTP load phase finished")

	return result
}

// collect consumes attack results until the channel closes, stopping
// the attacker early when the context is canceled. The channel is
// drained after a stop so the attacker's workers can exit.
func collect(ctx context.Context, results <-chan *vegeta.Result, stop func() bool) (requests, failures int64) {
	for {
		select {
		case <-ctx.Done():
			stop()
			for res := range results {
				requests++
				if failed(res) {
					failures++
				}
			}
			return requests, failures

		case res, ok := <-results:
			if !ok {
				return requests, failures
			}
			requests++
			if failed(res) {
				failures++
			}
		}
	}
}

func failed(res *vegeta.Result) bool {
	return res.Error != "" || res.Code >= 400 || res.Code == 0
}
