package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-paystack/core"
)

// Delivery is one inbound webhook as handed over by the hosting layer.
// Payload must be the raw request body, untouched.
type Delivery struct {
	Payload   []byte
	Signature string
	Secret    string
}

type Stage string

const (
	StageReceived   Stage = "received"
	StageVerified   Stage = "verified"
	StageParsed     Stage = "parsed"
	StageValidated  Stage = "validated"
	StageDispatched Stage = "dispatched"
	StageRejected   Stage = "rejected"
	StageFailed     Stage = "failed"
)

// Result describes how a dispatch ended. Stage is dispatched, rejected or
// failed; Reached is the last gate the delivery passed.
type Result struct {
	Accepted bool
	Stage    Stage
	Reached  Stage
	Event    string
	Handled  int
	Err      error
}

const dispatchOperation = "webhook_dispatch"

type Dispatcher struct {
	registry  *Registry
	telemetry core.Telemetry
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.telemetry.Logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.telemetry.Metrics = metrics
		}
	}
}

// NewDispatcher builds a dispatcher over registry. A nil registry behaves as
// an empty one.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	d := &Dispatcher{
		registry:  registry,
		telemetry: core.NewTelemetry(nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Dispatcher) Registry() *Registry {
	if d == nil {
		return nil
	}
	return d.registry
}

// Dispatch runs the delivery through the generic handlers and reports
// whether every gate and every matched handler succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) bool {
	return d.DispatchResult(ctx, delivery).Accepted
}

func (d *Dispatcher) DispatchResult(ctx context.Context, delivery Delivery) Result {
	return execute(ctx, d, delivery, d.genericPlan())
}

// DispatchTyped runs the delivery through the typed handlers registered
// for T.
func DispatchTyped[T any](ctx context.Context, d *Dispatcher, delivery Delivery) bool {
	return DispatchTypedResult[T](ctx, d, delivery).Accepted
}

func DispatchTypedResult[T any](ctx context.Context, d *Dispatcher, delivery Delivery) Result {
	return execute(ctx, d, delivery, typedPlan[T](d.Registry()))
}

// Process runs the delivery through the same gates but invokes only fn,
// ignoring the registry.
func (d *Dispatcher) Process(ctx context.Context, delivery Delivery, fn HandlerFunc) bool {
	return d.ProcessResult(ctx, delivery, fn).Accepted
}

func (d *Dispatcher) ProcessResult(ctx context.Context, delivery Delivery, fn HandlerFunc) Result {
	return execute(ctx, d, delivery, plan[Envelope]{
		parse: ParseGeneric,
		event: func(envelope Envelope) string { return envelope.Event },
		match: func(envelope Envelope) []invocation {
			return []invocation{func(ctx context.Context) error { return fn(ctx, envelope) }}
		},
	})
}

// ProcessTyped is the typed form of Process.
func ProcessTyped[T any](ctx context.Context, d *Dispatcher, delivery Delivery, fn TypedHandlerFunc[T]) bool {
	return ProcessTypedResult[T](ctx, d, delivery, fn).Accepted
}

func ProcessTypedResult[T any](ctx context.Context, d *Dispatcher, delivery Delivery, fn TypedHandlerFunc[T]) Result {
	return execute(ctx, d, delivery, plan[TypedEnvelope[T]]{
		parse: ParseTyped[T],
		event: func(envelope TypedEnvelope[T]) string { return envelope.Event },
		match: func(envelope TypedEnvelope[T]) []invocation {
			return []invocation{func(ctx context.Context) error { return fn(ctx, envelope) }}
		},
	})
}

type invocation func(ctx context.Context) error

// plan is the call-shape specific part of a dispatch: how to decode the
// payload and which handlers to run for the decoded envelope.
type plan[E any] struct {
	parse func(payload []byte) (E, error)
	event func(envelope E) string
	match func(envelope E) []invocation
}

func (d *Dispatcher) genericPlan() plan[Envelope] {
	registry := d.Registry()
	return plan[Envelope]{
		parse: ParseGeneric,
		event: func(envelope Envelope) string { return envelope.Event },
		match: func(envelope Envelope) []invocation {
			handlers := registry.Lookup(envelope.Event)
			invocations := make([]invocation, 0, len(handlers))
			for _, handler := range handlers {
				invocations = append(invocations, func(ctx context.Context) error {
					return handler.Handle(ctx, envelope)
				})
			}
			return invocations
		},
	}
}

func typedPlan[T any](registry *Registry) plan[TypedEnvelope[T]] {
	return plan[TypedEnvelope[T]]{
		parse: ParseTyped[T],
		event: func(envelope TypedEnvelope[T]) string { return envelope.Event },
		match: func(envelope TypedEnvelope[T]) []invocation {
			handlers := LookupTyped[T](registry, envelope.Event)
			invocations := make([]invocation, 0, len(handlers))
			for _, handler := range handlers {
				invocations = append(invocations, func(ctx context.Context) error {
					return handler.Handle(ctx, envelope)
				})
			}
			return invocations
		},
	}
}

func execute[E any](ctx context.Context, d *Dispatcher, delivery Delivery, p plan[E]) Result {
	return d.run(ctx, func(ctx context.Context, result *Result) {
		if !VerifySignature(delivery.Payload, delivery.Signature, delivery.Secret) {
			result.Stage = StageRejected
			result.Err = authenticationError("webhooks: signature verification failed", nil)
			return
		}
		result.Reached = StageVerified
		route(ctx, delivery.Payload, p, result)
	})
}

// routeVerified runs the generic gates after the signature has been checked
// by the caller.
func (d *Dispatcher) routeVerified(ctx context.Context, payload []byte) Result {
	return d.run(ctx, func(ctx context.Context, result *Result) {
		result.Reached = StageVerified
		route(ctx, payload, d.genericPlan(), result)
	})
}

func (d *Dispatcher) run(ctx context.Context, steps func(context.Context, *Result)) (result Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	result = Result{Stage: StageReceived, Reached: StageReceived}
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Accepted = false
			result.Stage = StageFailed
			result.Err = panicError(recovered)
		}
		d.observe(ctx, startedAt, result)
	}()
	steps(ctx, &result)
	return result
}

func route[E any](ctx context.Context, payload []byte, p plan[E], result *Result) {
	envelope, err := p.parse(payload)
	if err != nil {
		result.Stage = StageFailed
		result.Err = decodeError(err, nil)
		return
	}
	result.Reached = StageParsed

	result.Event = p.event(envelope)
	if !IsValidEvent(result.Event) {
		result.Stage = StageRejected
		result.Err = unrecognizedEventError(result.Event)
		return
	}
	result.Reached = StageValidated

	invocations := p.match(envelope)
	result.Handled = len(invocations)
	if failed, err := fanOut(ctx, invocations); err != nil {
		result.Stage = StageFailed
		result.Err = handlerFaultError(err, result.Event, failed, len(invocations))
		return
	}
	result.Reached = StageDispatched
	result.Stage = StageDispatched
	result.Accepted = true
}

// fanOut starts every invocation and waits for all of them. A failing or
// panicking handler does not stop the others.
func fanOut(ctx context.Context, invocations []invocation) (int, error) {
	if len(invocations) == 0 {
		return 0, nil
	}
	errs := make([]error, len(invocations))
	var group errgroup.Group
	for i, invoke := range invocations {
		group.Go(func() (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err = panicError(recovered)
				}
				errs[i] = err
			}()
			return invoke(ctx)
		})
	}
	_ = group.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == 0 {
		return 0, nil
	}
	return failed, errors.Join(errs...)
}

func (d *Dispatcher) observe(ctx context.Context, startedAt time.Time, result Result) {
	if d == nil {
		return
	}
	fields := map[string]any{
		"stage":    string(result.Stage),
		"reached":  string(result.Reached),
		"handlers": result.Handled,
	}
	// unrecognized names stay out of metric tags
	if IsValidEvent(result.Event) {
		fields["event"] = result.Event
	}
	d.telemetry.Observe(ctx, startedAt, dispatchOperation, result.Err, fields)
}

func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("webhooks: recovered panic: %w", err)
	}
	return fmt.Errorf("webhooks: recovered panic: %v", recovered)
}
