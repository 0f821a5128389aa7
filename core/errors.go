package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	OutboundErrorBadInput        = "OUTBOUND_BAD_INPUT"
	OutboundErrorNotFound        = "OUTBOUND_NOT_FOUND"
	OutboundErrorRateLimited     = "OUTBOUND_RATE_LIMITED"
	OutboundErrorPolicyViolation = "OUTBOUND_POLICY_VIOLATION"
	OutboundErrorDeliveryFailed  = "OUTBOUND_DELIVERY_FAILED"
	OutboundErrorInternal        = "OUTBOUND_INTERNAL_ERROR"
)

// MapError translates plain errors into enveloped ones so the request layer
// can map delivery failures onto HTTP responses without string matching.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newOutboundError(err.Error(), goerrors.CategoryNotFound, OutboundErrorNotFound)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newOutboundError(err.Error(), goerrors.CategoryRateLimit, OutboundErrorRateLimited)
	case strings.Contains(msg, "https"), strings.Contains(msg, "localhost"):
		return newOutboundError(err.Error(), goerrors.CategoryAuthz, OutboundErrorPolicyViolation)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newOutboundError(err.Error(), goerrors.CategoryBadInput, OutboundErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newOutboundError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = outboundHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultOutboundTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultOutboundTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return OutboundErrorBadInput
	case goerrors.CategoryNotFound:
		return OutboundErrorNotFound
	case goerrors.CategoryRateLimit:
		return OutboundErrorRateLimited
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return OutboundErrorPolicyViolation
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return OutboundErrorDeliveryFailed
	default:
		return OutboundErrorInternal
	}
}

func outboundHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
