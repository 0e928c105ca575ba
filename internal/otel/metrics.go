package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tcssh"

// Metrics holds all OTEL metric instruments for tcssh.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Resolution
	HostsResolved metric.Int64Counter
	Lookups       metric.Int64Counter // partitioned by result: ok, error, skipped

	// Sessions
	SessionsLaunched    metric.Int64Counter
	SessionsSpawnFailed metric.Int64Counter
	SessionsClosed      metric.Int64Counter

	// Broadcast
	KeystrokesBroadcast metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.HostsResolved, err = meter.Int64Counter("hosts.resolved",
		metric.WithDescription("Literal hosts produced by cluster/tag resolution"),
		metric.WithUnit("{host}"))
	if err != nil {
		return nil, err
	}

	m.Lookups, err = meter.Int64Counter("lookups.total",
		metric.WithDescription("Address lookups partitioned by result (ok, error, skipped)"))
	if err != nil {
		return nil, err
	}

	m.SessionsLaunched, err = meter.Int64Counter("sessions.launched",
		metric.WithDescription("Sessions that reached the Open state"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	m.SessionsSpawnFailed, err = meter.Int64Counter("sessions.spawn_failed",
		metric.WithDescription("Targets whose session could not be started"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	m.SessionsClosed, err = meter.Int64Counter("sessions.closed",
		metric.WithDescription("Sessions removed after a close notification"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	m.KeystrokesBroadcast, err = meter.Int64Counter("keystrokes.broadcast",
		metric.WithDescription("Key events fanned out to open sessions"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResolved records the size of a resolved host list.
func (m *Metrics) RecordResolved(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.HostsResolved.Add(ctx, int64(n))
}

// RecordLookup records one address lookup with its result.
func (m *Metrics) RecordLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lookup.result", result),
	))
}

// RecordLaunch records a session launch attempt for the given transport.
func (m *Metrics) RecordLaunch(ctx context.Context, transport string, ok bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("session.transport", transport))
	if ok {
		m.SessionsLaunched.Add(ctx, 1, attrs)
	} else {
		m.SessionsSpawnFailed.Add(ctx, 1, attrs)
	}
}

// RecordClosed records a session close.
func (m *Metrics) RecordClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(ctx, 1)
}

// RecordBroadcast records one key event delivered to n sessions.
func (m *Metrics) RecordBroadcast(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.KeystrokesBroadcast.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("broadcast.targets", n),
	))
}
