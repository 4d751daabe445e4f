// Package webhooks authenticates, decodes and dispatches Paystack webhook
// deliveries.
//
// A delivery moves through sequential gates:
// received -> verified -> parsed -> validated -> dispatched.
// Failing a gate ends in rejected (authentication or unknown event) or
// failed (decode error or handler fault), and the boolean entry points
// report false. Handlers matched for an event run concurrently and the
// dispatcher waits for every one of them before reporting.
//
// Processor wraps the dispatcher for HTTP deliveries and adds idempotency
// through a DeliveryLedger claim lifecycle:
// processing -> processed | retry_ready -> processing ... -> dead.
package webhooks
