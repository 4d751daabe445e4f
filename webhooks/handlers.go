package webhooks

import (
	"context"

	"github.com/goliatone/go-paystack/core"
)

// NewLoggingHandler returns a wildcard handler that logs every dispatched
// event with its reference when the payload carries one.
func NewLoggingHandler(logger core.Logger) Handler {
	telemetry := core.NewTelemetry(logger, nil)
	return NewHandler(WildcardEvent, func(ctx context.Context, envelope Envelope) error {
		fields := map[string]any{"event": envelope.Event}
		if data, ok := envelope.Data.(map[string]any); ok {
			for _, key := range []string{"reference", "transfer_code", "customer_code", "subscription_code"} {
				if value, ok := data[key]; ok && value != nil {
					fields[key] = value
				}
			}
		}
		telemetry.Log(ctx, "info", "paystack webhook received", fields)
		return nil
	})
}
