package guardian

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// TransportError is a guardian query that failed for reasons unrelated to the signing state of the
// message: dial or timeout errors, 5xx and 429 responses, undecodable bodies or an open breaker.
// It is never reported as NotFound.
type TransportError struct {
	Host       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("guardian transport error [%s, status %d]: %v", e.Host, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("guardian transport error [%s]: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the guardian rejected the request with 429.
func (e *TransportError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError reports whether the guardian answered with a 5xx status.
func (e *TransportError) IsServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// RequestError is a 4xx answer other than 404 and 429, typically a malformed message id. Asking
// again cannot change it, and it says nothing about the health of the host.
type RequestError struct {
	Host       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("guardian rejected request [%s, status %d]: %s", e.Host, e.StatusCode, e.Body)
}

// IsRequestError reports whether err is or wraps a *RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
