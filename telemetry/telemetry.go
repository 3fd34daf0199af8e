// Package telemetry provides OpenTelemetry tracing and metrics for loading and dumping records.
// A nil *Observer is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/telemetry/otel/trace/span"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bearlytools/binrec/errors"
)

// Config configures an Observer.
type Config struct {
	// EnableTracing starts a span for every Load and Dump. Default is true.
	EnableTracing bool
	// EnableMetrics records counters and histograms. Default is true.
	EnableMetrics bool
	// MeterProvider for metrics. If nil, uses context.Meter().
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		EnableTracing: true,
		EnableMetrics: true,
	}
}

// Observer holds the OTEL instrumentation state.
type Observer struct {
	cfg Config

	loadDuration metric.Float64Histogram
	loadCount    metric.Int64Counter
	dumpCount    metric.Int64Counter
	dumpSize     metric.Int64Histogram
	fieldReads   metric.Int64Counter
}

// New creates a new Observer.
func New(ctx context.Context, cfg Config) (*Observer, error) {
	o := &Observer{cfg: cfg}
	if cfg.EnableMetrics {
		if err := o.initMetrics(ctx); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) initMetrics(ctx context.Context) error {
	var meter metric.Meter
	if o.cfg.MeterProvider != nil {
		meter = o.cfg.MeterProvider.Meter("binrec")
	} else {
		meter = context.Meter(ctx)
	}

	var err error
	o.loadDuration, err = meter.Float64Histogram(
		"binrec.load.duration",
		metric.WithDescription("Duration of record loads in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}
	o.loadCount, err = meter.Int64Counter(
		"binrec.load.count",
		metric.WithDescription("Total number of record loads"),
	)
	if err != nil {
		return err
	}
	o.dumpCount, err = meter.Int64Counter(
		"binrec.dump.count",
		metric.WithDescription("Total number of record dumps"),
	)
	if err != nil {
		return err
	}
	o.dumpSize, err = meter.Int64Histogram(
		"binrec.dump.size",
		metric.WithDescription("Size of dumped records in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	o.fieldReads, err = meter.Int64Counter(
		"binrec.field.reads",
		metric.WithDescription("Total number of field reads from a stream"),
	)
	return err
}

// Done is returned by the Start methods and must be called when the operation finishes.
type Done func(n int64, err error)

// StartLoad is called when a record starts loading.
func (o *Observer) StartLoad(ctx context.Context, record string, eager bool) (context.Context, Done) {
	if o == nil {
		return ctx, func(int64, error) {}
	}
	start := time.Now()

	var sp span.Span
	if o.cfg.EnableTracing {
		ctx, sp = span.New(ctx, span.WithName("binrec.Load"))
		sp.Span.SetAttributes(
			attribute.String("binrec.record", record),
			attribute.Bool("binrec.eager", eager),
		)
	}

	return ctx, func(_ int64, err error) {
		if o.cfg.EnableTracing {
			if err != nil {
				sp.Span.RecordError(err)
			}
			sp.End()
		}
		if !o.cfg.EnableMetrics {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String("binrec_record", record),
			attribute.String("binrec_status", status(err)),
		)
		o.loadDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		o.loadCount.Add(ctx, 1, attrs)
	}
}

// StartDump is called when a record starts dumping. n passed to Done is the number of bytes written.
func (o *Observer) StartDump(ctx context.Context, record string) (context.Context, Done) {
	if o == nil {
		return ctx, func(int64, error) {}
	}

	var sp span.Span
	if o.cfg.EnableTracing {
		ctx, sp = span.New(ctx, span.WithName("binrec.Dump"))
		sp.Span.SetAttributes(attribute.String("binrec.record", record))
	}

	return ctx, func(n int64, err error) {
		if o.cfg.EnableTracing {
			sp.Span.SetAttributes(attribute.Int64("binrec.bytes", n))
			if err != nil {
				sp.Span.RecordError(err)
			}
			sp.End()
		}
		if !o.cfg.EnableMetrics {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String("binrec_record", record),
			attribute.String("binrec_status", status(err)),
		)
		o.dumpCount.Add(ctx, 1, attrs)
		if err == nil {
			o.dumpSize.Record(ctx, n, metric.WithAttributes(attribute.String("binrec_record", record)))
		}
	}
}

// FieldRead records a read of a field from a stream.
func (o *Observer) FieldRead(ctx context.Context, record, field string, err error) {
	if o == nil || !o.cfg.EnableMetrics {
		return
	}
	o.fieldReads.Add(
		ctx, 1,
		metric.WithAttributes(
			attribute.String("binrec_record", record),
			attribute.String("binrec_field", field),
			attribute.String("binrec_status", status(err)),
		),
	)
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrMissingField):
		return "missing"
	case errors.Is(err, errors.ErrInvalidValue):
		return "invalid"
	}
	return "error"
}
