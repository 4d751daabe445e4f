package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-paystack/core"
)

func TestRecorder_CountsTelemetry(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	telemetry := core.NewTelemetry(nil, recorder)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		telemetry.Observe(ctx, time.Now(), "api_call", nil, map[string]any{"endpoint": "transaction.verify"})
	}
	telemetry.Observe(ctx, time.Now(), "api_call", context.DeadlineExceeded, map[string]any{"endpoint": "transaction.verify"})

	entry := recorder.counters["paystack_api_call_total"]
	if entry == nil {
		t.Fatalf("expected counter to be registered")
	}
	success := testutil.ToFloat64(entry.vec.WithLabelValues(labelValues(entry.labels, map[string]string{
		"endpoint":  "transaction.verify",
		"operation": "api_call",
		"status":    "success",
	})...))
	if success != 3 {
		t.Fatalf("expected 3 successful calls, got %v", success)
	}
	failure := testutil.ToFloat64(entry.vec.WithLabelValues(labelValues(entry.labels, map[string]string{
		"endpoint":  "transaction.verify",
		"operation": "api_call",
		"status":    "failure",
	})...))
	if failure != 1 {
		t.Fatalf("expected 1 failed call, got %v", failure)
	}

	count, err := testutil.GatherAndCount(registry, "paystack_api_call_duration_ms")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two histogram series, got %d", count)
	}
}

func TestRecorder_DropsUnknownLabelsAndFillsMissing(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	recorder.IncCounter(ctx, "paystack.webhook.dispatch.total", 1, map[string]string{"stage": "accepted", "event": "charge.success"})
	recorder.IncCounter(ctx, "paystack.webhook.dispatch.total", 1, map[string]string{"stage": "rejected", "remote": "10.0.0.1"})

	entry := recorder.counters["paystack_webhook_dispatch_total"]
	if strings.Join(entry.labels, ",") != "event,stage" {
		t.Fatalf("unexpected label set %v", entry.labels)
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("", "rejected")); got != 1 {
		t.Fatalf("expected rejected series with empty event, got %v", got)
	}
}

func TestRecorder_SharesVectorsAcrossRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	ctx := context.Background()

	first.IncCounter(ctx, "paystack.inbound.total", 1, map[string]string{"status": "success"})
	second.IncCounter(ctx, "paystack.inbound.total", 2, map[string]string{"status": "success"})

	if got := testutil.ToFloat64(first.counters["paystack_inbound_total"].vec.WithLabelValues("success")); got != 3 {
		t.Fatalf("expected shared counter value 3, got %v", got)
	}
}

func TestMetricName(t *testing.T) {
	cases := map[string]string{
		"paystack.api_call.total":       "paystack_api_call_total",
		" Paystack.Webhook-Receive.ms ": "paystack_webhook_receive_ms",
		"5xx.total":                     "_5xx_total",
		"":                              "",
	}
	for input, want := range cases {
		if got := MetricName(input); got != want {
			t.Fatalf("MetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewRecorder(registry).ObserveHistogram(context.Background(), "paystack.api_call.duration_ms", 42, map[string]string{"status": "success"})

	server := httptest.NewServer(Handler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "paystack_api_call_duration_ms_bucket") {
		t.Fatalf("expected histogram in scrape output, got %s", body)
	}
}
