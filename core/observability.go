package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const MetricPrefix = "paystack"

// Telemetry bundles the logger and metrics recorder used by feature packages.
type Telemetry struct {
	Logger  Logger
	Metrics MetricsRecorder
}

func NewTelemetry(logger Logger, metrics MetricsRecorder) Telemetry {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return Telemetry{Logger: logger, Metrics: metrics}
}

// Record emits the total counter and duration histogram for an operation.
func (t Telemetry) Record(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	status string,
	tags map[string]string,
) {
	operation = NormalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	metricTags := CloneTags(tags)
	metricTags["operation"] = operation
	metricTags["status"] = strings.TrimSpace(status)

	t.recordCounter(ctx, MetricPrefix+"."+operation+".total", 1, metricTags)
	t.recordHistogram(ctx, MetricPrefix+"."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), metricTags)
}

// Observe records metrics for the operation and logs the outcome.
func (t Telemetry) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = NormalizeOperation(operation)
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := CloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{}
	for _, key := range []string{"endpoint", "event", "stage"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	t.Record(ctx, startedAt, operation, status, tags)

	if err != nil {
		t.Log(ctx, "error", operation+" failed", contextFields)
		return
	}
	t.Log(ctx, "debug", operation+" succeeded", contextFields)
}

func (t Telemetry) Log(ctx context.Context, level string, message string, fields map[string]any) {
	if t.Logger == nil {
		return
	}
	logger := t.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(CloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (t Telemetry) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if t.Metrics == nil {
		return
	}
	t.Metrics.IncCounter(ctx, strings.TrimSpace(name), value, CloneTags(tags))
}

func (t Telemetry) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if t.Metrics == nil {
		return
	}
	t.Metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, CloneTags(tags))
}

func CloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func NormalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
