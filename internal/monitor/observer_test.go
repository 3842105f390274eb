package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// readerFunc adapts a function to the StatusReader interface.
type readerFunc func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error)

func (f readerFunc) GetScalerStatus(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
	return f(ctx, target)
}

func fastConfig() ObserverConfig {
	return ObserverConfig{
		Interval:     10 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestObserverRecordsSamples(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		return models.ScalerStatus{CurrentReplicas: 3, DesiredReplicas: 3, MetricValue: 42, MetricTarget: 70}, nil
	})

	obs := NewObserver(reader, models.TargetSelector{Namespace: "blog", Autoscaler: "blog-api"}, fastConfig())
	obs.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	series := obs.Stop()

	if series.Len() < 3 {
		t.Fatalf("expected at least 3 samples, got %d", series.Len())
	}
	for _, s := range series.Snapshot() {
		if s.Gap {
			t.Error("healthy reader should not produce gaps")
		}
		if s.CurrentReplicas != 3 || s.MetricValue != 42 {
			t.Errorf("sample fields lost: %+v", s)
		}
	}
}

func TestObserverRecordsGapAfterRetries(t *testing.T) {
	var calls int64
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		atomic.AddInt64(&calls, 1)
		return models.ScalerStatus{}, errors.New("api unreachable")
	})

	obs := NewObserver(reader, models.TargetSelector{Namespace: "blog", Autoscaler: "blog-api"}, fastConfig())
	obs.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	series := obs.Stop()

	samples := series.Snapshot()
	if len(samples) == 0 {
		t.Fatal("expected gap markers in the series")
	}
	for _, s := range samples {
		if !s.Gap {
			t.Errorf("failing reader produced a non-gap sample: %+v", s)
		}
	}
	// Each recorded gap consumed MaxRetries attempts.
	if got := atomic.LoadInt64(&calls); got < int64(len(samples)*2) {
		t.Errorf("expected at least %d attempts for %d gaps, got %d", len(samples)*2, len(samples), got)
	}
}

func TestObserverRetriesBeforeGap(t *testing.T) {
	var calls int64
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		// First attempt of every poll fails, the retry succeeds.
		if atomic.AddInt64(&calls, 1)%2 == 1 {
			return models.ScalerStatus{}, errors.New("flaky")
		}
		return models.ScalerStatus{CurrentReplicas: 2}, nil
	})

	obs := NewObserver(reader, models.TargetSelector{Namespace: "blog", Autoscaler: "blog-api"}, fastConfig())
	obs.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	series := obs.Stop()

	if series.Len() == 0 {
		t.Fatal("expected samples")
	}
	for _, s := range series.Snapshot() {
		if s.Gap {
			t.Errorf("transient failure should be absorbed by retry, got gap at %v", s.Timestamp)
		}
	}
}

func TestObserverStopIdempotent(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		return models.ScalerStatus{CurrentReplicas: 2}, nil
	})

	obs := NewObserver(reader, models.TargetSelector{Namespace: "blog", Autoscaler: "blog-api"}, fastConfig())
	obs.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	first := obs.Stop()
	lenAfterStop := first.Len()

	second := obs.Stop()
	if first != second {
		t.Error("Stop should return the same series every time")
	}

	// No appends may happen once Stop has returned.
	time.Sleep(30 * time.Millisecond)
	if got := first.Len(); got != lenAfterStop {
		t.Errorf("series grew after Stop: %d -> %d", lenAfterStop, got)
	}
}

func TestObserverStopWithoutStart(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		return models.ScalerStatus{}, nil
	})
	obs := NewObserver(reader, models.TargetSelector{}, DefaultObserverConfig())

	series := obs.Stop()
	if series == nil || series.Len() != 0 {
		t.Error("Stop before Start should return the empty series")
	}
}

type staticEnricher struct {
	value float64
	err   error
}

func (e staticEnricher) InstantValue(ctx context.Context) (float64, error) {
	return e.value, e.err
}

func TestObserverEnrichment(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		return models.ScalerStatus{CurrentReplicas: 2, MetricValue: 10}, nil
	})

	obs := NewObserver(reader, models.TargetSelector{}, fastConfig()).
		WithEnricher(staticEnricher{value: 87.5})
	obs.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	series := obs.Stop()

	if series.Len() == 0 {
		t.Fatal("expected samples")
	}
	if got := series.Latest().MetricValue; got != 87.5 {
		t.Errorf("enrichment not applied: %v", got)
	}
}

func TestObserverEnrichmentFallback(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, target models.TargetSelector) (models.ScalerStatus, error) {
		return models.ScalerStatus{CurrentReplicas: 2, MetricValue: 10}, nil
	})

	obs := NewObserver(reader, models.TargetSelector{}, fastConfig()).
		WithEnricher(staticEnricher{err: errors.New("prometheus down")})
	obs.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	series := obs.Stop()

	if series.Len() == 0 {
		t.Fatal("expected samples")
	}
	if got := series.Latest().MetricValue; got != 10 {
		t.Errorf("expected fallback to scaler-reported value, got %v", got)
	}
}
