package inbound

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-paystack/core"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return inboundError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func methodNotAllowed(method string) error {
	return inboundError(
		"inbound: method not allowed",
		goerrors.CategoryBadInput,
		http.StatusMethodNotAllowed,
		core.ErrorBadInput,
		map[string]any{"method": method},
	)
}

func forbiddenSource(address string) error {
	return inboundError(
		"inbound: source address is not allowed",
		goerrors.CategoryAuthz,
		http.StatusForbidden,
		core.ErrorForbidden,
		map[string]any{"remote_addr": address},
	)
}

func bodyTooLarge(limit int64) error {
	return inboundError(
		"inbound: request body exceeds limit",
		goerrors.CategoryBadInput,
		http.StatusRequestEntityTooLarge,
		core.ErrorBadInput,
		map[string]any{"max_body_bytes": limit},
	)
}

func readBodyError(source error) error {
	return inboundWrapError(
		source,
		goerrors.CategoryBadInput,
		"inbound: read request body",
		http.StatusBadRequest,
		core.ErrorBadInput,
		nil,
	)
}

func processorMissing() error {
	return inboundError(
		"inbound: webhook processor is required",
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.ErrorInternal,
		nil,
	)
}
