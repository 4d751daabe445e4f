package gojob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/webhooks"
)

const (
	testSecret = "s3cr3t"
	payload    = `{"event":"transfer.success","data":{"reference":"TRF-1","amount":250000}}`
)

func TestEnqueueHandler_QueuesDispatchedEvent(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	registry := webhooks.NewRegistry()
	if err := registry.Register(NewEnqueueHandler(enqueuer)); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispatcher := webhooks.NewDispatcher(registry)

	ok := dispatcher.Dispatch(context.Background(), webhooks.Delivery{
		Payload:   []byte(payload),
		Signature: webhooks.ComputeSignature([]byte(payload), testSecret),
		Secret:    testSecret,
	})
	if !ok {
		t.Fatalf("expected dispatch to succeed")
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one queued job, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != JobIDWebhookEvent {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.ScriptPath != "paystack/webhooks/transfer.success" {
		t.Fatalf("unexpected script path %q", msg.ScriptPath)
	}
	if msg.Parameters["event"] != webhooks.EventTransferSuccess {
		t.Fatalf("expected event parameter, got %#v", msg.Parameters)
	}
	if msg.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}
}

func TestEnqueueHandler_EnqueueFailureIsHandlerFault(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{err: errors.New("queue down")}
	registry := webhooks.NewRegistry()
	_ = registry.Register(NewEnqueueHandler(enqueuer, ForEvent(webhooks.EventTransferSuccess), WithJobID("payouts.settle")))
	dispatcher := webhooks.NewDispatcher(registry)

	result := dispatcher.DispatchResult(context.Background(), webhooks.Delivery{
		Payload:   []byte(payload),
		Signature: webhooks.ComputeSignature([]byte(payload), testSecret),
		Secret:    testSecret,
	})
	if result.Accepted {
		t.Fatalf("expected dispatch to fail when the queue rejects the job")
	}
	if !errors.Is(result.Err, webhooks.ErrHandlerFault) {
		t.Fatalf("expected handler fault, got %v", result.Err)
	}
}

func TestToExecutionMessage_KeyIsStableAcrossRedeliveries(t *testing.T) {
	first, err := webhooks.ParseGeneric([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, _ := webhooks.ParseGeneric([]byte(payload))
	a, err := ToExecutionMessage("", first)
	if err != nil {
		t.Fatalf("to message: %v", err)
	}
	b, _ := ToExecutionMessage("", second)
	if a.IdempotencyKey != b.IdempotencyKey {
		t.Fatalf("expected stable key, got %q and %q", a.IdempotencyKey, b.IdempotencyKey)
	}
	if a.JobID != JobIDWebhookEvent {
		t.Fatalf("expected default job id, got %q", a.JobID)
	}

	envelope, err := EnvelopeFromMessage(a)
	if err != nil {
		t.Fatalf("envelope from message: %v", err)
	}
	if envelope.Event != webhooks.EventTransferSuccess {
		t.Fatalf("unexpected event %q", envelope.Event)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok || data["reference"] != "TRF-1" {
		t.Fatalf("expected data to survive mapping, got %#v", envelope.Data)
	}
}

func TestEnvelopeFromMessage_RejectsUnknownEvent(t *testing.T) {
	_, err := EnvelopeFromMessage(&job.ExecutionMessage{
		JobID:      JobIDWebhookEvent,
		Parameters: map[string]any{"event": "charge.refunded"},
	})
	if err == nil || !strings.Contains(err.Error(), "unrecognized") {
		t.Fatalf("expected unrecognized event error, got %v", err)
	}
}

func TestConsumer_AcksOnSuccess(t *testing.T) {
	envelope, _ := webhooks.ParseGeneric([]byte(payload))
	msg, _ := ToExecutionMessage("", envelope)
	delivery := &stubQueueDelivery{msg: msg}

	var seen webhooks.Envelope
	consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, func(_ context.Context, env webhooks.Envelope) error {
		seen = env
		return nil
	}, RetryPolicy{})

	if err := consumer.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected ack")
	}
	if seen.Event != webhooks.EventTransferSuccess {
		t.Fatalf("expected handler to see the envelope, got %+v", seen)
	}
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	envelope, _ := webhooks.ParseGeneric([]byte(payload))
	msg, _ := ToExecutionMessage("", envelope)
	delivery := &stubQueueDelivery{msg: msg}
	consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, func(context.Context, webhooks.Envelope) error {
		return errors.New("ledger unavailable")
	}, RetryPolicy{
		MaxAttempts:     2,
		Backoff:         webhooks.ExponentialRetryPolicy{Initial: 20 * time.Second, Max: time.Minute},
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})
	ctx := context.Background()

	if err := consumer.ProcessNext(ctx); err == nil {
		t.Fatalf("expected handler error")
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected bounded requeue, got %+v", delivery.nackOpts)
	}

	if err := consumer.ProcessNext(ctx); err == nil {
		t.Fatalf("expected handler error")
	}
	if delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", delivery.nackOpts)
	}
	if delivery.nackOpts.Reason != "ledger unavailable" {
		t.Fatalf("expected failure reason, got %q", delivery.nackOpts.Reason)
	}
}

func TestConsumer_PanickingHandlerIsNacked(t *testing.T) {
	envelope, _ := webhooks.ParseGeneric([]byte(payload))
	msg, _ := ToExecutionMessage("", envelope)
	delivery := &stubQueueDelivery{msg: msg}
	consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, func(context.Context, webhooks.Envelope) error {
		panic("nil recipient")
	}, RetryPolicy{
		MaxAttempts:     1,
		Backoff:         webhooks.ExponentialRetryPolicy{Initial: time.Second, Max: time.Minute},
		DeadLetterOnMax: true,
	})

	err := consumer.ProcessNext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "nil recipient") {
		t.Fatalf("expected panic to surface as an error, got %v", err)
	}
	if delivery.acked || delivery.nacks != 1 {
		t.Fatalf("expected a single nack, got acked=%v nacks=%d", delivery.acked, delivery.nacks)
	}
	if !delivery.nackOpts.DeadLetter || delivery.nackOpts.Requeue {
		t.Fatalf("expected retry policy to dead-letter at max attempts, got %+v", delivery.nackOpts)
	}
}

func TestEnvelopeFromMessage_RejectsPaddedEvent(t *testing.T) {
	_, err := EnvelopeFromMessage(&job.ExecutionMessage{
		JobID:      JobIDWebhookEvent,
		Parameters: map[string]any{"event": " transfer.success "},
	})
	if err == nil {
		t.Fatalf("expected padded event to be rejected")
	}
}

func TestConsumer_DeadLettersMalformedMessage(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookEvent}}
	consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, func(context.Context, webhooks.Envelope) error {
		t.Fatalf("handler must not run for malformed messages")
		return nil
	}, RetryPolicy{})

	if err := consumer.ProcessNext(context.Background()); err == nil {
		t.Fatalf("expected malformed message error")
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected malformed message to be dead-lettered")
	}
}

func TestRetryPolicy_NormalizeAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second}

	opts := policy.NormalizeAttempt(queue.NackOptions{Delay: -time.Second}, 1)
	if opts.Delay != 0 || !opts.Requeue {
		t.Fatalf("expected clamped delay and requeue, got %+v", opts)
	}
	opts = policy.NormalizeAttempt(queue.NackOptions{Requeue: true}, 3)
	if !opts.Requeue || opts.DeadLetter {
		t.Fatalf("expected requeue fallback without dead letter policy, got %+v", opts)
	}
}

func TestWorkerHook_RecordsOutcome(t *testing.T) {
	metrics := &captureMetrics{}
	hook := NewWorkerHook(nil, metrics)
	msg := &job.ExecutionMessage{
		JobID:      JobIDWebhookEvent,
		Parameters: map[string]any{"event": webhooks.EventChargeSuccess},
	}
	hook.OnStart(context.Background(), worker.Event{Message: msg, Attempt: 1})
	hook.OnSuccess(context.Background(), worker.Event{Message: msg, Attempt: 1, StartedAt: time.Now().UTC()})
	hook.OnFailure(context.Background(), worker.Event{Message: msg, Attempt: 2, Err: errors.New("boom")})

	if len(metrics.counters) != 2 {
		t.Fatalf("expected two counters, got %d", len(metrics.counters))
	}
	if metrics.counters[0].name != "paystack.webhook_job.total" || metrics.counters[0].tags["status"] != "success" {
		t.Fatalf("unexpected success metric %+v", metrics.counters[0])
	}
	if metrics.counters[1].tags["status"] != "failure" || metrics.counters[1].tags["event"] != webhooks.EventChargeSuccess {
		t.Fatalf("unexpected failure metric %+v", metrics.counters[1])
	}
}

type stubQueueEnqueuer struct {
	messages []*job.ExecutionMessage
	err      error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacks    int
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacks++
	s.nackOpts = opts
	return nil
}

type capturedMetric struct {
	name string
	tags map[string]string
}

type captureMetrics struct {
	counters []capturedMetric
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.counters = append(m.counters, capturedMetric{name: name, tags: tags})
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ core.MetricsRecorder = (*captureMetrics)(nil)
