package client

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-paystack/core"
)

func clientError(message string, category goerrors.Category, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(core.TextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func clientWrapError(source error, category goerrors.Category, message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.Wrap(source, category, message).
		WithCode(core.HTTPStatus(category)).
		WithTextCode(core.TextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// providerError converts a non-2xx reply, or a 2xx reply whose body says
// status=false, into an envelope carrying Paystack's message.
func providerError(endpoint string, statusCode int, message string) *goerrors.Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	metadata := map[string]any{
		"endpoint":        endpoint,
		"provider_status": statusCode,
	}
	if statusCode >= 200 && statusCode < 300 {
		return goerrors.New("paystack: "+message, goerrors.CategoryOperation).
			WithCode(http.StatusUnprocessableEntity).
			WithTextCode(core.ErrorProviderRejected).
			WithMetadata(metadata)
	}
	return clientError("paystack: "+message, core.CategoryForStatus(statusCode), metadata)
}

func requestValidationError(endpoint string, err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return clientWrapError(err, goerrors.CategoryValidation, "client: invalid request", map[string]any{"endpoint": endpoint})
	}
	fields := make([]goerrors.FieldError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields = append(fields, goerrors.FieldError{
			Field:   fieldErr.Field(),
			Message: "failed on " + fieldErr.Tag(),
		})
	}
	return goerrors.NewValidation("client: invalid request", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(map[string]any{"endpoint": endpoint})
}

func missingArgumentError(endpoint string, field string) error {
	return goerrors.NewValidation("client: invalid request", goerrors.FieldError{
		Field:   field,
		Message: "is required",
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(map[string]any{"endpoint": endpoint})
}
