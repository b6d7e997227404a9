package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records batch level metrics through the OpenTelemetry meter
// provider. The prometheus exporter serves them on the default registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	batchCounter  otelmetric.Int64Counter
	itemCounter   otelmetric.Int64Counter
	batchDuration otelmetric.Float64Histogram
}

// New returns a working instance or, when the exporter cannot be registered,
// an instance whose Record methods do nothing.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	batchCounter, _ := meter.Int64Counter(
		"apply.batches.processed",
		otelmetric.WithDescription("Number of finished batch runs"),
	)
	itemCounter, _ := meter.Int64Counter(
		"apply.items.processed",
		otelmetric.WithDescription("Number of items by terminal set"),
	)
	batchDuration, _ := meter.Float64Histogram(
		"apply.batches.duration",
		otelmetric.WithDescription("Batch processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		batchCounter:  batchCounter,
		itemCounter:   itemCounter,
		batchDuration: batchDuration,
	}, nil
}

// RecordBatchProcessed counts one finished batch and its items per set.
func (o *Observability) RecordBatchProcessed(ctx context.Context, flow string, sets map[string]int) {
	if o == nil || o.batchCounter == nil {
		return
	}
	o.batchCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("flow", flow)))
	for set, n := range sets {
		o.itemCounter.Add(ctx, int64(n), otelmetric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("set", set),
		))
	}
}

func (o *Observability) RecordBatchDuration(ctx context.Context, flow string, duration time.Duration) {
	if o == nil || o.batchDuration == nil {
		return
	}
	o.batchDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("flow", flow),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
