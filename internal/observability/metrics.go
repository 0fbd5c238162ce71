package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/cory-johannsen/actioncore/internal/observability"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// ActionMetrics holds the instruments recorded by the action executor and the
// regeneration driver. Instruments are no-ops until a global MeterProvider is set.
type ActionMetrics struct {
	performed  metric.Int64Counter
	failed     metric.Int64Counter
	fizzled    metric.Int64Counter
	duration   metric.Float64Histogram
	regenTicks metric.Int64Counter
	regenDelta metric.Int64Counter
}

// NewActionMetrics creates the action instruments on the global meter.
//
// Postcondition: Returns a non-nil ActionMetrics or a non-nil error.
func NewActionMetrics() (*ActionMetrics, error) {
	m := meter()
	am := &ActionMetrics{}
	var err error

	am.performed, err = m.Int64Counter(
		"actioncore.actions.performed",
		metric.WithDescription("Actions that passed validation and were dispatched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating performed counter: %w", err)
	}
	am.failed, err = m.Int64Counter(
		"actioncore.actions.failed",
		metric.WithDescription("Action attempts rejected during validation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	am.fizzled, err = m.Int64Counter(
		"actioncore.actions.fizzled",
		metric.WithDescription("Actions whose effect routine failed after costs were paid"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fizzled counter: %w", err)
	}
	am.duration, err = m.Float64Histogram(
		"actioncore.actions.duration",
		metric.WithDescription("Time spent executing one action attempt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	am.regenTicks, err = m.Int64Counter(
		"actioncore.regen.ticks",
		metric.WithDescription("Regeneration driver passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating regen tick counter: %w", err)
	}
	am.regenDelta, err = m.Int64Counter(
		"actioncore.regen.pools_changed",
		metric.WithDescription("Resource pools whose value changed during regeneration"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating regen change counter: %w", err)
	}
	return am, nil
}

// RecordPerformed counts a dispatched action and its execution time.
func (am *ActionMetrics) RecordPerformed(ctx context.Context, actionID string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("action", actionID))
	am.performed.Add(ctx, 1, attrs)
	am.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordFailed counts a rejected attempt by failure kind.
func (am *ActionMetrics) RecordFailed(ctx context.Context, actionID, kind string) {
	am.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", actionID),
		attribute.String("kind", kind),
	))
}

// RecordFizzled counts an action whose effect routine failed.
func (am *ActionMetrics) RecordFizzled(ctx context.Context, actionID string) {
	am.fizzled.Add(ctx, 1, metric.WithAttributes(attribute.String("action", actionID)))
}

// RecordRegenTick counts one regeneration pass and the pools it changed.
func (am *ActionMetrics) RecordRegenTick(ctx context.Context, changed int) {
	am.regenTicks.Add(ctx, 1)
	if changed > 0 {
		am.regenDelta.Add(ctx, int64(changed))
	}
}
