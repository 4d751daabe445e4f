package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-paystack/core"
)

const (
	DefaultProviderID  = "paystack"
	defaultClaimLease  = 30 * time.Second
	defaultMaxAttempts = 8
)

// DeliveryKeyFunc derives the idempotency key of a delivery.
type DeliveryKeyFunc func(req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor handles an HTTP delivery end to end: it authenticates the body,
// claims the delivery key on the ledger, routes the payload through the
// dispatcher and settles the claim with the outcome.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Dispatcher  *Dispatcher
	ExtractKey  DeliveryKeyFunc
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, dispatcher *Dispatcher) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Dispatcher:  dispatcher,
		ExtractKey:  DefaultDeliveryKey,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  defaultClaimLease,
		MaxAttempts: defaultMaxAttempts,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle makes Processor a core.InboundHandler.
func (p *Processor) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	return p.Process(ctx, req)
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Dispatcher == nil || p.Verifier == nil {
		return core.InboundResult{}, ledgerError(nil, "webhooks: processor requires verifier and dispatcher", nil)
	}
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		providerID = DefaultProviderID
	}
	req.ProviderID = providerID

	if err := p.Verifier.Verify(ctx, req); err != nil {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusUnauthorized,
			Metadata: map[string]any{
				"provider_id": providerID,
				"rejected":    true,
			},
		}, err
	}

	extractor := p.ExtractKey
	if extractor == nil {
		extractor = DefaultDeliveryKey
	}
	key, err := extractor(req)
	if err != nil {
		return core.InboundResult{
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"provider_id": providerID},
		}, err
	}
	metadata := map[string]any{
		"provider_id":  providerID,
		"delivery_key": key,
	}

	if p.Ledger == nil {
		return p.settle(ctx, req, nil, metadata)
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, providerID, key, p.claimLease())
	if err != nil {
		return core.InboundResult{
			StatusCode: http.StatusInternalServerError,
			Metadata:   metadata,
		}, ledgerError(err, "webhooks: claim delivery", metadata)
	}
	if !claimed {
		metadata["status"] = delivery.Status
		if delivery.Status == DeliveryStatusRetryReady {
			// not due yet; ask the sender to come back
			if delivery.NextAttemptAt != nil {
				metadata["retry_at"] = delivery.NextAttemptAt.UTC()
			}
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusServiceUnavailable,
				Metadata:   metadata,
			}, nil
		}
		metadata["deduped"] = true
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   metadata,
		}, nil
	}
	metadata["attempts"] = delivery.Attempts
	return p.settle(ctx, req, &delivery, metadata)
}

func (p *Processor) settle(
	ctx context.Context,
	req core.InboundRequest,
	delivery *DeliveryRecord,
	metadata map[string]any,
) (core.InboundResult, error) {
	result := p.Dispatcher.routeVerified(ctx, req.Body)
	metadata["stage"] = string(result.Stage)
	metadata["handlers"] = result.Handled
	if IsValidEvent(result.Event) {
		metadata["event"] = result.Event
	}

	if result.Accepted {
		if delivery != nil {
			if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
				return core.InboundResult{
					StatusCode: http.StatusInternalServerError,
					Metadata:   metadata,
				}, ledgerError(err, "webhooks: complete delivery", metadata)
			}
		}
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   metadata,
		}, nil
	}

	if delivery != nil {
		// a payload that cannot be decoded or names an unknown event will not
		// get better on redelivery
		maxAttempts := p.maxAttempts()
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		if result.Stage == StageRejected || errors.Is(result.Err, ErrDecode) {
			maxAttempts = 1
		}
		if err := p.Ledger.Fail(ctx, delivery.ClaimID, result.Err, nextAttemptAt, maxAttempts); err != nil {
			return core.InboundResult{
				StatusCode: http.StatusInternalServerError,
				Metadata:   metadata,
			}, errors.Join(result.Err, ledgerError(err, "webhooks: fail delivery", metadata))
		}
	}
	return core.InboundResult{
		Accepted:   false,
		StatusCode: StatusCode(result.Err),
		Metadata:   metadata,
	}, result.Err
}

// DefaultDeliveryKey keys a delivery by the hex SHA-256 of its raw body.
// Paystack redelivers the same bytes, so retries share a key.
func DefaultDeliveryKey(req core.InboundRequest) (string, error) {
	if len(req.Body) == 0 {
		return "", invalidDeliveryError("webhooks: delivery body is empty", map[string]any{
			"provider_id": req.ProviderID,
		})
	}
	sum := sha256.Sum256(req.Body)
	return hex.EncodeToString(sum[:]), nil
}

// StatusCode maps a dispatch error to the HTTP status the receiver replies
// with.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code >= http.StatusBadRequest {
		return rich.Code
	}
	return http.StatusInternalServerError
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}

var _ core.InboundHandler = (*Processor)(nil)
