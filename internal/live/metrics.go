// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package live

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/linuxfoundation/lfx-v2-attendance-service/internal/live"

type viewMetrics struct {
	rebuilds metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	attrs    metric.MeasurementOption
}

func newViewMetrics(view string) *viewMetrics {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	rebuilds, err := meter.Int64Counter("attendance.view.rebuilds",
		metric.WithDescription("Number of times a live attendance view was recomputed and delivered"))
	if err != nil {
		rebuilds, _ = fallback.Int64Counter("attendance.view.rebuilds")
	}
	duration, err := meter.Float64Histogram("attendance.view.rebuild.duration",
		metric.WithDescription("Time spent recomputing a live attendance view"),
		metric.WithUnit("s"))
	if err != nil {
		duration, _ = fallback.Float64Histogram("attendance.view.rebuild.duration")
	}
	errs, err := meter.Int64Counter("attendance.view.errors",
		metric.WithDescription("Watch and fetch failures reported by live attendance views"))
	if err != nil {
		errs, _ = fallback.Int64Counter("attendance.view.errors")
	}

	return &viewMetrics{
		rebuilds: rebuilds,
		duration: duration,
		errors:   errs,
		attrs:    metric.WithAttributes(attribute.String("view", view)),
	}
}

func (m *viewMetrics) rebuilt(ctx context.Context, started time.Time) {
	m.rebuilds.Add(ctx, 1, m.attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), m.attrs)
}

func (m *viewMetrics) failed(ctx context.Context) {
	m.errors.Add(ctx, 1, m.attrs)
}
