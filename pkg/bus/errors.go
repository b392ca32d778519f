package bus

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureCode classifies a failed message. Codes that have an HTTP
// equivalent share its value.
type FailureCode int

const (
	// CodeNoHandlers: nothing is registered for the endpoint.
	CodeNoHandlers FailureCode = -1

	CodeForbidden   FailureCode = http.StatusForbidden
	CodeNotFound    FailureCode = http.StatusNotFound
	CodeInternal    FailureCode = http.StatusInternalServerError
	CodeUnavailable FailureCode = http.StatusServiceUnavailable
	CodeTimeout     FailureCode = http.StatusGatewayTimeout
)

// HTTPStatus maps the code onto the status returned to web clients.
func (c FailureCode) HTTPStatus() int {
	switch {
	case c == CodeNoHandlers:
		return http.StatusServiceUnavailable
	case c >= 400 && c < 600:
		return int(c)
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the metrics label for the code.
func (c FailureCode) Outcome() string {
	switch c {
	case CodeNoHandlers:
		return "no_handlers"
	case CodeForbidden:
		return "forbidden"
	case CodeNotFound:
		return "not_found"
	case CodeUnavailable:
		return "unavailable"
	case CodeTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// ReplyError is the failure delivered to a sender.
type ReplyError struct {
	Code    FailureCode
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("dispatch failed (%d): %s", e.Code, e.Message)
}

// Code extracts the failure code carried by err. Errors that did not come
// from the bus are internal failures.
func Code(err error) FailureCode {
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeInternal
}

// OutcomeOK labels a replied message.
const OutcomeOK = "ok"

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return Code(err).Outcome()
}
