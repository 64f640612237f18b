package vectorstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const storeInstrumentationName = "github.com/halcyonlabs/ragd/internal/vectorstore"

// Metrics holds store-level metrics. All instruments are optional: creation
// failures log a warning and the corresponding record becomes a no-op.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	searchDuration metric.Float64Histogram
	searchResults  metric.Int64Histogram
	mutations      metric.Int64Counter
	documents      metric.Int64UpDownCounter
}

// NewMetrics creates a Metrics instance for store instrumentation.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(storeInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.searchDuration, err = m.meter.Float64Histogram(
		"ragd.store.search_duration_seconds",
		metric.WithDescription("Duration of similarity searches in seconds, labeled by backend"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create search duration histogram", zap.Error(err))
	}

	m.searchResults, err = m.meter.Int64Histogram(
		"ragd.store.search_results",
		metric.WithDescription("Number of results returned per similarity search"),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		m.logger.Warn("failed to create search results histogram", zap.Error(err))
	}

	m.mutations, err = m.meter.Int64Counter(
		"ragd.store.mutations_total",
		metric.WithDescription("Total store mutations by backend and operation (add, delete)"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create mutations counter", zap.Error(err))
	}

	m.documents, err = m.meter.Int64UpDownCounter(
		"ragd.store.documents",
		metric.WithDescription("Current number of documents in the collection"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		m.logger.Warn("failed to create documents counter", zap.Error(err))
	}
}

// RecordSearch records a similarity search.
func (m *Metrics) RecordSearch(ctx context.Context, backend string, duration time.Duration, results int) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	if m.searchDuration != nil {
		m.searchDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.searchResults != nil {
		m.searchResults.Record(ctx, int64(results), attrs)
	}
}

// RecordMutation records an add or delete and the document count delta.
func (m *Metrics) RecordMutation(ctx context.Context, backend, operation string, delta int) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("operation", operation),
	)
	if m.mutations != nil {
		m.mutations.Add(ctx, 1, attrs)
	}
	if m.documents != nil {
		m.documents.Add(ctx, int64(delta), metric.WithAttributes(attribute.String("backend", backend)))
	}
}
