package webhooks

import (
	"errors"
	"net/http"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
)

var (
	ErrAuthentication    = errors.New("webhooks: signature verification failed")
	ErrDecode            = errors.New("webhooks: payload could not be decoded")
	ErrUnrecognizedEvent = errors.New("webhooks: event type is not recognized")
	ErrHandlerFault      = errors.New("webhooks: handler failed")
	ErrDeliveryNotFound  = errors.New("webhooks: delivery not found")
)

const (
	TextCodeAuthenticationFailed = "WEBHOOK_AUTHENTICATION_FAILED"
	TextCodeDecodeFailed         = "WEBHOOK_DECODE_FAILED"
	TextCodeUnrecognizedEvent    = "WEBHOOK_UNRECOGNIZED_EVENT"
	TextCodeHandlerFault         = "WEBHOOK_HANDLER_FAULT"
	TextCodeInvalidRegistration  = "WEBHOOK_INVALID_REGISTRATION"
	TextCodeLedgerFailure        = "WEBHOOK_LEDGER_FAILURE"
	TextCodeDeliveryNotFound     = "WEBHOOK_DELIVERY_NOT_FOUND"
	TextCodeInvalidDelivery      = "WEBHOOK_INVALID_DELIVERY"
)

// DecodeError reports why a payload could not be turned into an envelope.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ErrDecode.Error()
	}
	if e.Err != nil {
		return "webhooks: decode payload: " + e.Reason + ": " + e.Err.Error()
	}
	return "webhooks: decode payload: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func webhookError(
	sentinel error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.Wrap(sentinel, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func authenticationError(message string, metadata map[string]any) error {
	return webhookError(
		ErrAuthentication,
		goerrors.CategoryAuth,
		message,
		http.StatusUnauthorized,
		TextCodeAuthenticationFailed,
		metadata,
	)
}

func decodeError(source error, metadata map[string]any) error {
	if source == nil {
		source = ErrDecode
	}
	return webhookError(
		source,
		goerrors.CategoryBadInput,
		"webhooks: payload decode failed",
		http.StatusBadRequest,
		TextCodeDecodeFailed,
		metadata,
	)
}

func unrecognizedEventError(eventType string) error {
	return webhookError(
		ErrUnrecognizedEvent,
		goerrors.CategoryValidation,
		"webhooks: unrecognized event "+strconv.Quote(eventType),
		http.StatusUnprocessableEntity,
		TextCodeUnrecognizedEvent,
		map[string]any{"event": eventType},
	)
}

func handlerFaultError(source error, eventType string, failed int, total int) error {
	return webhookError(
		errors.Join(ErrHandlerFault, source),
		goerrors.CategoryOperation,
		"webhooks: handler failed for event "+strconv.Quote(eventType),
		http.StatusInternalServerError,
		TextCodeHandlerFault,
		map[string]any{"event": eventType, "failed": failed, "handlers": total},
	)
}

func registrationError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeInvalidRegistration)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ledgerError(source error, message string, metadata map[string]any) error {
	if source == nil {
		source = errors.New(message)
	}
	err := goerrors.Wrap(source, goerrors.CategoryOperation, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodeLedgerFailure)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// DeliveryNotFoundError is returned by ledgers when no record exists for a key.
func DeliveryNotFoundError(providerID string, key string) error {
	return webhookError(
		ErrDeliveryNotFound,
		goerrors.CategoryNotFound,
		"webhooks: delivery "+strconv.Quote(key)+" not found",
		http.StatusNotFound,
		TextCodeDeliveryNotFound,
		map[string]any{"provider_id": providerID, "delivery_key": key},
	)
}

func invalidDeliveryError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeInvalidDelivery)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
