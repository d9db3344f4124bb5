package task

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "scout/task"

// Metrics records engine activity.
type Metrics struct {
	polls          metric.Int64Counter
	skippedTicks   metric.Int64Counter
	commits        metric.Int64Counter
	commitErrors   metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
	retryDelay     metric.Float64Histogram
	pollDuration   metric.Float64Histogram
}

// NewMetrics creates the engine instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(Metrics)
	var err error

	if m.polls, err = meter.Int64Counter(
		"task_polls_total",
		metric.WithDescription("Total number of status checks by outcome"),
	); err != nil {
		return nil, err
	}

	if m.skippedTicks, err = meter.Int64Counter(
		"task_poll_ticks_skipped_total",
		metric.WithDescription("Ticks dropped because a status check was in flight or backing off"),
	); err != nil {
		return nil, err
	}

	if m.commits, err = meter.Int64Counter(
		"task_terminal_commits_total",
		metric.WithDescription("Terminal status commits by status"),
	); err != nil {
		return nil, err
	}

	if m.commitErrors, err = meter.Int64Counter(
		"task_commit_errors_total",
		metric.WithDescription("Failed terminal status commits"),
	); err != nil {
		return nil, err
	}

	if m.activeSessions, err = meter.Int64UpDownCounter(
		"task_polling_sessions",
		metric.WithDescription("Number of live polling sessions"),
	); err != nil {
		return nil, err
	}

	if m.retryDelay, err = meter.Float64Histogram(
		"task_poll_retry_delay_seconds",
		metric.WithDescription("Backoff delay applied after transient failures"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.pollDuration, err = meter.Float64Histogram(
		"task_poll_duration_seconds",
		metric.WithDescription("Duration of single status checks"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

func (m *Metrics) observePoll(ctx context.Context, kind DecisionKind, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", kind.String()))
	m.polls.Add(ctx, 1, attrs)
	m.pollDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) incSkippedTick(ctx context.Context) {
	m.skippedTicks.Add(ctx, 1)
}

func (m *Metrics) incCommit(ctx context.Context, kind DecisionKind) {
	m.commits.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", kind.String())))
}

func (m *Metrics) incCommitError(ctx context.Context) {
	m.commitErrors.Add(ctx, 1)
}

func (m *Metrics) sessionStarted(ctx context.Context) {
	m.activeSessions.Add(ctx, 1)
}

func (m *Metrics) sessionStopped(ctx context.Context) {
	m.activeSessions.Add(ctx, -1)
}

func (m *Metrics) observeRetryDelay(ctx context.Context, d time.Duration) {
	m.retryDelay.Record(ctx, d.Seconds())
}
