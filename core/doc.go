// Package core contains the shared Paystack contracts: configuration, error
// envelopes, transport and inbound request shapes, logging and metrics hooks.
// Feature packages depend on core; core must not depend on them.
package core
