// Package inbound exposes the webhook processor over HTTP.
//
// Paystack treats any reply other than 200 as a failed delivery and retries
// it, so the handler only answers 200 once the processor accepted the body.
package inbound
