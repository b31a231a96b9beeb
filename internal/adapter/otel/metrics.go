package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "glint"

// Metrics holds all glint-core metric instruments.
type Metrics struct {
	TasksLaunched  metric.Int64Counter
	TasksSucceeded metric.Int64Counter
	TasksFailed    metric.Int64Counter
	PollDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksLaunched, err = meter.Int64Counter("glint.tasks.launched",
		metric.WithDescription("Number of generation tasks launched"))
	if err != nil {
		return nil, err
	}

	m.TasksSucceeded, err = meter.Int64Counter("glint.tasks.succeeded",
		metric.WithDescription("Number of generation tasks completed successfully"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("glint.tasks.failed",
		metric.WithDescription("Number of generation tasks failed"))
	if err != nil {
		return nil, err
	}

	m.PollDuration, err = meter.Float64Histogram("glint.poll.duration_seconds",
		metric.WithDescription("Job queue status poll duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
