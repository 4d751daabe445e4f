package adapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-paystack/adapters/gocommand"
	"github.com/goliatone/go-paystack/adapters/gojob"
	"github.com/goliatone/go-paystack/adapters/gologger"
	"github.com/goliatone/go-paystack/adapters/prometheus"
	paystackcommand "github.com/goliatone/go-paystack/command"
	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/webhooks"
)

const (
	compatSecret  = "sk_test_compat"
	compatPayload = `{"event":"dedicatedaccount.assign.success","data":{"customer":{"customer_code":"CUS_1"},"dedicated_account":{"account_number":"0123456789"}}}`
)

func TestRuntimeCompatibility_WebhookCommandEnqueuesJob(t *testing.T) {
	_, logger := gologger.Resolve("", nil, nil)
	registry := prom.NewRegistry()
	metrics := prometheus.NewRecorder(registry)

	enqueuer := &compatEnqueuer{}
	handlers := webhooks.NewRegistry()
	if err := handlers.Register(gojob.NewEnqueueHandler(enqueuer)); err != nil {
		t.Fatalf("register enqueue handler: %v", err)
	}
	processor := webhooks.NewProcessor(
		webhooks.NewSignatureVerifier(compatSecret),
		webhooks.NewInMemoryLedger(time.Hour),
		webhooks.NewDispatcher(handlers, webhooks.WithLogger(logger), webhooks.WithMetricsRecorder(metrics)),
	)

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterPaystack(adapter, nil, nil, processor)
	if err != nil {
		t.Fatalf("register paystack handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	collector := command.NewResult[core.InboundResult]()
	ctx := command.ContextWithResult(context.Background(), collector)
	err = gocommand.Dispatch(ctx, paystackcommand.ProcessWebhookMessage{Request: core.InboundRequest{
		ProviderID: "paystack",
		Headers: map[string]string{
			"x-paystack-signature": webhooks.ComputeSignature([]byte(compatPayload), compatSecret),
		},
		Body: []byte(compatPayload),
	}})
	if err != nil {
		t.Fatalf("dispatch webhook command: %v", err)
	}

	result, ok := collector.Load()
	if !ok || !result.Accepted {
		t.Fatalf("expected accepted result, got %+v ok=%v", result, ok)
	}
	if enqueuer.last == nil || enqueuer.last.Parameters["event"] != webhooks.EventDedicatedAccountAssignSuccess {
		t.Fatalf("expected dedicated account event to be queued, got %+v", enqueuer.last)
	}
	count, err := testutil.GatherAndCount(registry, "paystack_webhook_dispatch_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected dispatcher metrics in prometheus registry")
	}
}

func TestRuntimeCompatibility_GoJobLoggerBridge(t *testing.T) {
	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("paystack", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}
	jobProvider.GetLogger("paystack.jobs").Info("queued")
	if logger.infos != 1 {
		t.Fatalf("expected bridged log call, got %d", logger.infos)
	}
}

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct {
	infos int
}

func (*compatLogger) Trace(string, ...any)                      {}
func (*compatLogger) Debug(string, ...any)                      {}
func (l *compatLogger) Info(string, ...any)                     { l.infos++ }
func (*compatLogger) Warn(string, ...any)                       {}
func (*compatLogger) Error(string, ...any)                      {}
func (*compatLogger) Fatal(string, ...any)                      {}
func (l *compatLogger) WithContext(context.Context) glog.Logger { return l }
