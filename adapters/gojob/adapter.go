package gojob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/webhooks"
)

const (
	JobIDWebhookEvent = "paystack.webhook.event"

	scriptPathPrefix = "paystack/webhooks/"
	dedupPolicyDrop  = "drop"
)

// RetryPolicy bounds how often a failed webhook job is requeued.
type RetryPolicy struct {
	MaxAttempts     int
	Backoff         webhooks.ExponentialRetryPolicy
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

type EnqueueOption func(*enqueueHandler)

// ForEvent narrows the handler to one event instead of the wildcard.
func ForEvent(eventType string) EnqueueOption {
	return func(h *enqueueHandler) {
		if eventType = strings.TrimSpace(eventType); eventType != "" {
			h.eventType = eventType
		}
	}
}

func WithJobID(jobID string) EnqueueOption {
	return func(h *enqueueHandler) {
		if jobID = strings.TrimSpace(jobID); jobID != "" {
			h.jobID = jobID
		}
	}
}

type enqueueHandler struct {
	enqueuer  queue.Enqueuer
	eventType string
	jobID     string
}

// NewEnqueueHandler returns a generic webhook handler that hands each event
// to a go-job queue. An enqueue failure is a handler fault, so the delivery
// is not acknowledged and Paystack retries it.
func NewEnqueueHandler(enqueuer queue.Enqueuer, opts ...EnqueueOption) webhooks.Handler {
	h := &enqueueHandler{
		enqueuer:  enqueuer,
		eventType: webhooks.WildcardEvent,
		jobID:     JobIDWebhookEvent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *enqueueHandler) EventType() string { return h.eventType }

func (h *enqueueHandler) Handle(ctx context.Context, envelope webhooks.Envelope) error {
	if h.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(h.jobID, envelope)
	if err != nil {
		return err
	}
	return h.enqueuer.Enqueue(ctx, msg)
}

// ToExecutionMessage maps a webhook envelope to a go-job message. The
// idempotency key is derived from the event content so a redelivered event
// collapses onto the queued one.
func ToExecutionMessage(jobID string, envelope webhooks.Envelope) (*job.ExecutionMessage, error) {
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("gojob: encode envelope: %w", err)
	}
	sum := sha256.Sum256(encoded)
	if jobID = strings.TrimSpace(jobID); jobID == "" {
		jobID = JobIDWebhookEvent
	}
	return &job.ExecutionMessage{
		JobID:      jobID,
		ScriptPath: scriptPathPrefix + envelope.Event,
		Parameters: map[string]any{
			"event": envelope.Event,
			"data":  envelope.Data,
		},
		IdempotencyKey: hex.EncodeToString(sum[:]),
		DedupPolicy:    job.DeduplicationPolicy(dedupPolicyDrop),
	}, nil
}

// EnvelopeFromMessage rebuilds the webhook envelope carried by msg.
func EnvelopeFromMessage(msg *job.ExecutionMessage) (webhooks.Envelope, error) {
	if msg == nil {
		return webhooks.Envelope{}, fmt.Errorf("gojob: execution message is required")
	}
	event, _ := msg.Parameters["event"].(string)
	if !webhooks.IsValidEvent(event) {
		return webhooks.Envelope{}, fmt.Errorf("gojob: message %q carries unrecognized event %q", msg.JobID, event)
	}
	return webhooks.Envelope{Event: event, Data: msg.Parameters["data"]}, nil
}

// Consumer pulls webhook jobs from a queue and runs them through a handler.
type Consumer struct {
	dequeuer queue.Dequeuer
	handler  webhooks.HandlerFunc
	policy   RetryPolicy

	mu       sync.Mutex
	attempts map[string]int
}

func NewConsumer(dequeuer queue.Dequeuer, handler webhooks.HandlerFunc, policy RetryPolicy) *Consumer {
	return &Consumer{
		dequeuer: dequeuer,
		handler:  handler,
		policy:   policy,
		attempts: map[string]int{},
	}
}

// ProcessNext dequeues one job, acks it when the handler succeeds and nacks
// it under the retry policy otherwise. Messages that do not carry a valid
// envelope are dead-lettered.
func (c *Consumer) ProcessNext(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.handler == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	envelope, err := EnvelopeFromMessage(msg)
	if err != nil {
		if nackErr := delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()}); nackErr != nil {
			return nackErr
		}
		return err
	}

	key := msg.IdempotencyKey
	if err := c.run(ctx, envelope); err != nil {
		attempt := c.recordAttempt(key)
		opts := c.policy.NormalizeAttempt(queue.NackOptions{
			Delay:   c.policy.Backoff.NextDelay(attempt),
			Requeue: true,
			Reason:  err.Error(),
		}, attempt)
		if !opts.Requeue {
			c.forget(key)
		}
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			return nackErr
		}
		return err
	}
	c.forget(key)
	return delivery.Ack(ctx)
}

// run invokes the handler, turning a panic into an error so the delivery is
// still nacked under the retry policy.
func (c *Consumer) run(ctx context.Context, envelope webhooks.Envelope) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("gojob: webhook handler panicked: %v", recovered)
		}
	}()
	return c.handler(ctx, envelope)
}

func (c *Consumer) recordAttempt(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Consumer) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

// WorkerHook reports go-job worker lifecycle events through the package
// telemetry.
type WorkerHook struct {
	telemetry core.Telemetry
}

func NewWorkerHook(logger core.Logger, metrics core.MetricsRecorder) *WorkerHook {
	return &WorkerHook{telemetry: core.NewTelemetry(logger, metrics)}
}

func (h *WorkerHook) OnStart(ctx context.Context, event worker.Event) {
	h.telemetry.Log(ctx, "debug", "webhook job started", eventFields(event))
}

func (h *WorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.telemetry.Observe(ctx, startedAt(event), "webhook_job", nil, eventFields(event))
}

func (h *WorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	err := event.Err
	if err == nil {
		err = fmt.Errorf("gojob: job failed")
	}
	h.telemetry.Observe(ctx, startedAt(event), "webhook_job", err, eventFields(event))
}

func (h *WorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	fields := eventFields(event)
	fields["delay_ms"] = event.Delay.Milliseconds()
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	h.telemetry.Log(ctx, "warn", "webhook job scheduled for retry", fields)
}

func eventFields(event worker.Event) map[string]any {
	fields := map[string]any{"attempt": event.Attempt}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		fields["job_id"] = message.JobID
		if name, ok := message.Parameters["event"].(string); ok && webhooks.IsValidEvent(name) {
			fields["event"] = name
		}
	}
	return fields
}

func startedAt(event worker.Event) time.Time {
	if event.StartedAt.IsZero() {
		return time.Now().UTC().Add(-event.Duration)
	}
	return event.StartedAt
}

var _ worker.Hook = (*WorkerHook)(nil)
