package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

const storageScopeName = "github.com/quillworks/taskboard/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in taskboard.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner     storage.Storage
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	listGauge metric.Int64Gauge
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumentedStorage(s)
}

func newInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("taskboard.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("taskboard.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("taskboard.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	listGauge, _ := m.Int64Gauge("taskboard.task.list.size",
		metric.WithDescription("Number of tasks returned by the latest ListTasks"),
	)
	return &InstrumentedStorage{
		inner:     s,
		tracer:    Tracer(storageScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		listGauge: listGauge,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStorage) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	ctx, span, t := s.op(ctx, "CreateTask")
	v, err := s.inner.CreateTask(ctx, task)
	if err == nil {
		span.SetAttributes(attribute.Int64("taskboard.task.id", v.ID))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	attrs := []attribute.KeyValue{attribute.Int64("taskboard.task.id", id)}
	ctx, span, t := s.op(ctx, "GetTask", attrs...)
	v, err := s.inner.GetTask(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListTasks(ctx context.Context, email string) ([]*types.Task, error) {
	ctx, span, t := s.op(ctx, "ListTasks")
	tasks, err := s.inner.ListTasks(ctx, email)
	if err == nil {
		span.SetAttributes(attribute.Int("taskboard.result.count", len(tasks)))
		s.listGauge.Record(ctx, int64(len(tasks)))
	}
	s.done(ctx, span, t, err)
	return tasks, err
}

func (s *InstrumentedStorage) UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error) {
	attrs := []attribute.KeyValue{
		attribute.Int64("taskboard.task.id", id),
		attribute.StringSlice("taskboard.update.fields", update.Fields()),
	}
	ctx, span, t := s.op(ctx, "UpdateTask", attrs...)
	v, err := s.inner.UpdateTask(ctx, id, update)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) DeleteTask(ctx context.Context, id int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("taskboard.task.id", id)}
	ctx, span, t := s.op(ctx, "DeleteTask", attrs...)
	err := s.inner.DeleteTask(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// Fingerprint forwards to the inner store when it supports change detection.
func (s *InstrumentedStorage) Fingerprint(ctx context.Context) (string, error) {
	detector, ok := s.inner.(storage.ChangeDetector)
	if !ok {
		return "", nil
	}
	return detector.Fingerprint(ctx)
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}

// Unwrap returns the decorated store.
func (s *InstrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}
