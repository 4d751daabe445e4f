package webhooks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goliatone/go-paystack/core"
)

const (
	testSecret        = "s3cr3t"
	chargeSuccessBody = `{"event":"charge.success","data":{"reference":"T1","amount":5000}}`
)

func signedDelivery(payload string, secret string) Delivery {
	return Delivery{
		Payload:   []byte(payload),
		Signature: ComputeSignature([]byte(payload), secret),
		Secret:    secret,
	}
}

type countingHandler struct {
	eventType string
	calls     atomic.Int32
	err       error
}

func (h *countingHandler) EventType() string { return h.eventType }

func (h *countingHandler) Handle(context.Context, Envelope) error {
	h.calls.Add(1)
	return h.err
}

func TestDispatcher_ConcreteChargeScenario(t *testing.T) {
	registry := NewRegistry()
	handler := &countingHandler{eventType: EventChargeSuccess}
	if err := registry.Register(handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispatcher := NewDispatcher(registry)

	delivery := signedDelivery(chargeSuccessBody, testSecret)
	if !dispatcher.Dispatch(context.Background(), delivery) {
		t.Fatalf("expected signed delivery to dispatch")
	}
	if handler.calls.Load() != 1 {
		t.Fatalf("expected handler to run once, got %d", handler.calls.Load())
	}

	tampered := delivery
	tampered.Payload = []byte(strings.Replace(chargeSuccessBody, "T1", "T2", 1))
	if dispatcher.Dispatch(context.Background(), tampered) {
		t.Fatalf("expected tampered payload to be rejected")
	}
	if handler.calls.Load() != 1 {
		t.Fatalf("expected tampered payload not to reach handlers")
	}
}

func TestDispatcher_WrongSignatureInvokesNothing(t *testing.T) {
	registry := NewRegistry()
	handler := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(handler)
	dispatcher := NewDispatcher(registry)

	delivery := signedDelivery(chargeSuccessBody, "other-secret")
	delivery.Secret = testSecret

	result := dispatcher.DispatchResult(context.Background(), delivery)
	if result.Accepted {
		t.Fatalf("expected rejection")
	}
	if result.Stage != StageRejected || result.Reached != StageReceived {
		t.Fatalf("unexpected stage=%s reached=%s", result.Stage, result.Reached)
	}
	if !errors.Is(result.Err, ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", result.Err)
	}
	if handler.calls.Load() != 0 {
		t.Fatalf("expected no handler calls")
	}
}

func TestDispatcher_MissingCredentialsReject(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	tests := []Delivery{
		{Payload: []byte(chargeSuccessBody), Signature: "", Secret: testSecret},
		{Payload: []byte(chargeSuccessBody), Signature: ComputeSignature([]byte(chargeSuccessBody), ""), Secret: ""},
		{Payload: nil, Signature: ComputeSignature(nil, testSecret), Secret: testSecret},
	}
	for index, delivery := range tests {
		if dispatcher.Dispatch(context.Background(), delivery) {
			t.Fatalf("case %d: expected rejection", index)
		}
	}
}

func TestDispatcher_UnrecognizedEventInvokesNothing(t *testing.T) {
	registry := NewRegistry()
	handler := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(handler)
	dispatcher := NewDispatcher(registry)

	result := dispatcher.DispatchResult(context.Background(), signedDelivery(`{"event":"unknown.event","data":{}}`, testSecret))
	if result.Accepted {
		t.Fatalf("expected unrecognized event to be rejected")
	}
	if result.Stage != StageRejected || result.Reached != StageParsed {
		t.Fatalf("unexpected stage=%s reached=%s", result.Stage, result.Reached)
	}
	if !errors.Is(result.Err, ErrUnrecognizedEvent) {
		t.Fatalf("expected unrecognized event error, got %v", result.Err)
	}
	if handler.calls.Load() != 0 {
		t.Fatalf("expected wildcard handler not to run for unrecognized events")
	}
}

func TestDispatcher_PaddedEventNameInvokesNothing(t *testing.T) {
	registry := NewRegistry()
	exact := &countingHandler{eventType: EventChargeSuccess}
	wildcard := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(exact)
	_ = registry.Register(wildcard)
	dispatcher := NewDispatcher(registry)

	for _, payload := range []string{
		`{"event":" charge.success ","data":{}}`,
		`{"event":"charge.success\t","data":{}}`,
		`{"event":"Charge.Success","data":{}}`,
	} {
		result := dispatcher.DispatchResult(context.Background(), signedDelivery(payload, testSecret))
		if result.Accepted {
			t.Fatalf("expected %s to be rejected", payload)
		}
		if !errors.Is(result.Err, ErrUnrecognizedEvent) {
			t.Fatalf("expected unrecognized event error for %s, got %v", payload, result.Err)
		}
	}
	if !DispatchTyped[ChargeSuccessEvent](context.Background(), dispatcher, signedDelivery(chargeSuccessBody, testSecret)) {
		t.Fatalf("expected exact event name to dispatch")
	}
	if DispatchTyped[ChargeSuccessEvent](context.Background(), dispatcher, signedDelivery(`{"event":" charge.success","data":{}}`, testSecret)) {
		t.Fatalf("expected padded typed delivery to be rejected")
	}
	if exact.calls.Load() != 0 || wildcard.calls.Load() != 0 {
		t.Fatalf("expected no generic handler calls, got exact=%d wildcard=%d", exact.calls.Load(), wildcard.calls.Load())
	}
}

func TestDispatcher_DecodeFailureReportsFalse(t *testing.T) {
	registry := NewRegistry()
	handler := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(handler)
	dispatcher := NewDispatcher(registry)

	for _, payload := range []string{`{"event":`, `null`, `{"data":{}}`} {
		result := dispatcher.DispatchResult(context.Background(), signedDelivery(payload, testSecret))
		if result.Accepted || result.Stage != StageFailed || result.Reached != StageVerified {
			t.Fatalf("payload %q: unexpected result %+v", payload, result)
		}
		if !errors.Is(result.Err, ErrDecode) {
			t.Fatalf("payload %q: expected decode error, got %v", payload, result.Err)
		}
	}
	if handler.calls.Load() != 0 {
		t.Fatalf("expected no handler calls on decode failures")
	}
}

func TestDispatcher_NoHandlersStillSucceeds(t *testing.T) {
	result := NewDispatcher(NewRegistry()).DispatchResult(context.Background(), signedDelivery(chargeSuccessBody, testSecret))
	if !result.Accepted || result.Stage != StageDispatched || result.Handled != 0 {
		t.Fatalf("expected accepted dispatch with zero handlers, got %+v", result)
	}
	if result.Event != EventChargeSuccess {
		t.Fatalf("unexpected event %q", result.Event)
	}
}

func TestDispatcher_FanOutMatrix(t *testing.T) {
	registry := NewRegistry()
	charge := &countingHandler{eventType: EventChargeSuccess}
	chargeSecond := &countingHandler{eventType: EventChargeSuccess}
	transferFailed := &countingHandler{eventType: EventTransferFailed}
	wildcard := &countingHandler{eventType: WildcardEvent}
	for _, handler := range []*countingHandler{charge, chargeSecond, transferFailed, wildcard} {
		if err := registry.Register(handler); err != nil {
			t.Fatalf("register %s: %v", handler.eventType, err)
		}
	}
	dispatcher := NewDispatcher(registry)

	tests := []struct {
		event   string
		handled int
		want    map[*countingHandler]int32
	}{
		{event: EventChargeSuccess, handled: 3, want: map[*countingHandler]int32{charge: 1, chargeSecond: 1, transferFailed: 0, wildcard: 1}},
		{event: EventTransferSuccess, handled: 1, want: map[*countingHandler]int32{charge: 1, chargeSecond: 1, transferFailed: 0, wildcard: 2}},
		{event: EventTransferFailed, handled: 2, want: map[*countingHandler]int32{charge: 1, chargeSecond: 1, transferFailed: 1, wildcard: 3}},
	}
	for _, tt := range tests {
		result := dispatcher.DispatchResult(context.Background(), signedDelivery(`{"event":"`+tt.event+`","data":{}}`, testSecret))
		if !result.Accepted {
			t.Fatalf("%s: expected accepted dispatch, got %+v", tt.event, result)
		}
		if result.Handled != tt.handled {
			t.Fatalf("%s: expected %d handlers, got %d", tt.event, tt.handled, result.Handled)
		}
		for handler, calls := range tt.want {
			if got := handler.calls.Load(); got != calls {
				t.Fatalf("%s: handler for %s called %d times, want %d", tt.event, handler.eventType, got, calls)
			}
		}
	}
}

func TestDispatcher_HandlersRunConcurrently(t *testing.T) {
	registry := NewRegistry()
	var started sync.WaitGroup
	started.Add(2)
	rendezvous := func(context.Context, Envelope) error {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer handler never started")
		}
	}
	_ = registry.Register(NewHandler(EventChargeSuccess, rendezvous))
	_ = registry.Register(NewHandler(WildcardEvent, rendezvous))

	if !NewDispatcher(registry).Dispatch(context.Background(), signedDelivery(chargeSuccessBody, testSecret)) {
		t.Fatalf("expected both handlers to run at the same time")
	}
}

func TestDispatcher_FaultDoesNotStopOtherHandlers(t *testing.T) {
	registry := NewRegistry()
	var slowFinished atomic.Bool
	errDatabase := errors.New("database unavailable")
	_ = registry.Register(NewHandler(EventChargeSuccess, func(context.Context, Envelope) error {
		return errDatabase
	}))
	_ = registry.Register(NewHandler(EventChargeSuccess, func(context.Context, Envelope) error {
		panic("boom")
	}))
	_ = registry.Register(NewHandler(WildcardEvent, func(context.Context, Envelope) error {
		time.Sleep(50 * time.Millisecond)
		slowFinished.Store(true)
		return nil
	}))

	result := NewDispatcher(registry).DispatchResult(context.Background(), signedDelivery(chargeSuccessBody, testSecret))
	if result.Accepted {
		t.Fatalf("expected handler fault to report false")
	}
	if !slowFinished.Load() {
		t.Fatalf("expected dispatch to wait for every handler")
	}
	if result.Stage != StageFailed || result.Reached != StageValidated || result.Handled != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !errors.Is(result.Err, ErrHandlerFault) {
		t.Fatalf("expected handler fault error, got %v", result.Err)
	}
	if !errors.Is(result.Err, errDatabase) {
		t.Fatalf("expected handler errors to be joined into the fault, got %v", result.Err)
	}
}

func TestDispatcher_HandlersSeeValidatedEnvelope(t *testing.T) {
	registry := NewRegistry()
	var seen atomic.Value
	_ = registry.Register(NewHandler(EventChargeSuccess, func(_ context.Context, envelope Envelope) error {
		seen.Store(envelope)
		return nil
	}))
	NewDispatcher(registry).Dispatch(context.Background(), signedDelivery(chargeSuccessBody, testSecret))

	envelope, ok := seen.Load().(Envelope)
	if !ok {
		t.Fatalf("expected handler to receive an envelope")
	}
	data := envelope.Data.(map[string]any)
	if envelope.Event != EventChargeSuccess || data["reference"] != "T1" {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
}

func TestDispatchTyped_UsesTypedHandlersOnly(t *testing.T) {
	registry := NewRegistry()
	generic := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(generic)

	var reference atomic.Value
	var amount atomic.Value
	_ = RegisterTyped(registry, NewTypedHandler(EventChargeSuccess, func(_ context.Context, envelope TypedEnvelope[ChargeSuccessEvent]) error {
		reference.Store(envelope.Data.Reference)
		amount.Store(envelope.Data.Amount)
		return nil
	}))
	var otherShape atomic.Int32
	_ = RegisterTyped(registry, NewTypedHandler(EventChargeSuccess, func(context.Context, TypedEnvelope[TransferSuccessEvent]) error {
		otherShape.Add(1)
		return nil
	}))

	dispatcher := NewDispatcher(registry)
	result := DispatchTypedResult[ChargeSuccessEvent](context.Background(), dispatcher, signedDelivery(chargeSuccessBody, testSecret))
	if !result.Accepted || result.Handled != 1 {
		t.Fatalf("expected one typed handler, got %+v", result)
	}
	if reference.Load() != "T1" {
		t.Fatalf("unexpected reference %v", reference.Load())
	}
	if got, ok := amount.Load().(decimal.Decimal); !ok || !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected amount %v", amount.Load())
	}
	if generic.calls.Load() != 0 {
		t.Fatalf("expected generic wildcard handler to be skipped by typed dispatch")
	}
	if otherShape.Load() != 0 {
		t.Fatalf("expected handlers of another payload type to be skipped")
	}

	if DispatchTyped[ChargeSuccessEvent](context.Background(), dispatcher, signedDelivery(`{"event":"charge.success","data":{"amount":{}}}`, testSecret)) {
		t.Fatalf("expected typed decode failure to report false")
	}
	if !DispatchTyped[ChargeSuccessEvent](context.Background(), dispatcher, signedDelivery(`{"event":"charge.failed","data":{}}`, testSecret)) {
		t.Fatalf("expected typed dispatch without matching handlers to succeed")
	}
}

func TestDispatcher_ProcessSingleHandler(t *testing.T) {
	registry := NewRegistry()
	registered := &countingHandler{eventType: WildcardEvent}
	_ = registry.Register(registered)
	dispatcher := NewDispatcher(registry)

	var calls atomic.Int32
	ok := dispatcher.Process(context.Background(), signedDelivery(chargeSuccessBody, testSecret), func(_ context.Context, envelope Envelope) error {
		calls.Add(1)
		if envelope.Event != EventChargeSuccess {
			return errors.New("unexpected event")
		}
		return nil
	})
	if !ok || calls.Load() != 1 {
		t.Fatalf("expected single handler to run once, ok=%v calls=%d", ok, calls.Load())
	}
	if registered.calls.Load() != 0 {
		t.Fatalf("expected registry to be bypassed")
	}

	failing := func(context.Context, Envelope) error { return errors.New("failed") }
	if dispatcher.Process(context.Background(), signedDelivery(chargeSuccessBody, testSecret), failing) {
		t.Fatalf("expected handler error to report false")
	}
	if dispatcher.Process(context.Background(), signedDelivery(chargeSuccessBody, testSecret), nil) {
		t.Fatalf("expected nil handler to report false")
	}

	calls.Store(0)
	counting := func(context.Context, Envelope) error { calls.Add(1); return nil }
	if dispatcher.Process(context.Background(), signedDelivery(`{"event":"unknown.event"}`, testSecret), counting) {
		t.Fatalf("expected unrecognized event to report false")
	}
	if dispatcher.Process(context.Background(), Delivery{Payload: []byte(chargeSuccessBody), Signature: "00", Secret: testSecret}, counting) {
		t.Fatalf("expected bad signature to report false")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected gate failures not to invoke the handler")
	}
}

func TestProcessTyped(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	body := `{"event":"transfer.success","data":{"reference":"TRF_1","amount":"125000","transfer_code":"TRF_abc"}}`

	var code atomic.Value
	ok := ProcessTyped(context.Background(), dispatcher, signedDelivery(body, testSecret), func(_ context.Context, envelope TypedEnvelope[TransferSuccessEvent]) error {
		code.Store(envelope.Data.TransferCode)
		return nil
	})
	if !ok || code.Load() != "TRF_abc" {
		t.Fatalf("expected typed single handler to receive transfer data, ok=%v code=%v", ok, code.Load())
	}

	result := ProcessTypedResult(context.Background(), dispatcher, signedDelivery(body, testSecret), func(context.Context, TypedEnvelope[TransferSuccessEvent]) error {
		return errors.New("ledger write failed")
	})
	if result.Accepted || !errors.Is(result.Err, ErrHandlerFault) {
		t.Fatalf("expected handler fault, got %+v", result)
	}
}

func TestDispatcher_NilDispatcherBehavesAsEmpty(t *testing.T) {
	var dispatcher *Dispatcher
	if !dispatcher.Dispatch(context.Background(), signedDelivery(chargeSuccessBody, testSecret)) {
		t.Fatalf("expected nil dispatcher to behave as an empty registry")
	}
	delivery := signedDelivery(chargeSuccessBody, "other")
	delivery.Secret = testSecret
	if dispatcher.Dispatch(context.Background(), delivery) {
		t.Fatalf("expected nil dispatcher to keep the signature gate")
	}
}

func TestDispatcher_RecordsMetricsAndLogs(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	dispatcher := NewDispatcher(NewRegistry(), WithMetricsRecorder(metrics), WithLogger(logger))

	dispatcher.Dispatch(context.Background(), signedDelivery(chargeSuccessBody, testSecret))
	dispatcher.Dispatch(context.Background(), signedDelivery(`{"event":"made.up","data":{}}`, testSecret))

	counters := metrics.countersNamed("paystack.webhook_dispatch.total")
	if len(counters) != 2 {
		t.Fatalf("expected two dispatch counters, got %d", len(counters))
	}
	if counters[0].tags["status"] != "success" || counters[0].tags["event"] != EventChargeSuccess {
		t.Fatalf("unexpected success tags %#v", counters[0].tags)
	}
	if counters[1].tags["status"] != "failure" || counters[1].tags["stage"] != string(StageRejected) {
		t.Fatalf("unexpected failure tags %#v", counters[1].tags)
	}
	if _, ok := counters[1].tags["event"]; ok {
		t.Fatalf("expected unrecognized event names to stay out of metric tags")
	}
	if len(metrics.histogramsNamed("paystack.webhook_dispatch.duration_ms")) != 2 {
		t.Fatalf("expected dispatch duration histograms")
	}

	records := logger.snapshot()
	if len(records) != 2 || records[0].level != "debug" || records[1].level != "error" {
		t.Fatalf("unexpected log records %#v", records)
	}
}

type capturedMetric struct {
	name string
	tags map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedMetric
	histograms []capturedMetric
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedMetric{name: name, tags: core.CloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, _ float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedMetric{name: name, tags: core.CloneTags(tags)})
}

func (m *captureMetricsRecorder) countersNamed(name string) []capturedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterMetrics(m.counters, name)
}

func (m *captureMetricsRecorder) histogramsNamed(name string) []capturedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterMetrics(m.histograms, name)
}

func filterMetrics(metrics []capturedMetric, name string) []capturedMetric {
	var out []capturedMetric
	for _, metric := range metrics {
		if metric.name == name {
			out = append(out, metric)
		}
	}
	return out
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu      *sync.Mutex
	records *[]capturedLog
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) core.Logger { return l }

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := map[string]any{}
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capturedLog(nil), (*l.records)...)
}
