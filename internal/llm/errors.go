package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
)

var (
	// ErrAuth indicates the provider rejected the credentials
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimited indicates the provider throttled the request
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout indicates the call did not finish in time
	ErrTimeout = errors.New("request timed out")
	// ErrMalformedResponse indicates an unexpected response body shape
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNetwork indicates a transport failure before a response arrived
	ErrNetwork = errors.New("network error")
	// ErrProvider indicates any other non-success status from the provider
	ErrProvider = errors.New("provider error")
	// ErrInvalidRequest indicates the request was rejected before sending
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCancelled indicates the caller cancelled the request
	ErrCancelled = errors.New("request cancelled")
)

// ErrorKind classifies a failed ChatResponse
type ErrorKind string

const (
	KindAuth              ErrorKind = "auth"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTimeout           ErrorKind = "timeout"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNetwork           ErrorKind = "network"
	KindProvider          ErrorKind = "provider_error"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindCancelled         ErrorKind = "cancelled"
)

// Sentinel returns the error value errors.Is should match for this kind
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindRateLimited:
		return ErrRateLimited
	case KindTimeout:
		return ErrTimeout
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindNetwork:
		return ErrNetwork
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrProvider
	}
}

// kindForStatus maps a non-2xx HTTP status to an ErrorKind
func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindProvider
	}
}

// kindForTransport classifies an error returned by the HTTP round trip
func kindForTransport(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return KindCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// Provider error bodies sometimes echo credentials back
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]+`),
	regexp.MustCompile(`sk-(?:or-)?[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`xai-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{30,}`),
	regexp.MustCompile(`"x-api-key"\s*:\s*"[^"]*"`),
}

// sanitizeErrorBody redacts anything that looks like an API key
func sanitizeErrorBody(body string) string {
	for _, re := range secretPatterns {
		body = re.ReplaceAllString(body, "[REDACTED]")
	}
	return body
}
