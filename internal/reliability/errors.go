// Package reliability provides error classification, retry with backoff, call
// monitoring, and database backups for the services that talk to upstreams.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCode is one of a closed set of upstream failure categories
type ErrorCode string

const (
	CodeConsentExpired         ErrorCode = "CONSENT_EXPIRED"
	CodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	CodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInstitutionUnavailable ErrorCode = "INSTITUTION_UNAVAILABLE"
	CodeQuoteServiceDown       ErrorCode = "QUOTE_SERVICE_DOWN"
	CodeInvalidSymbol          ErrorCode = "INVALID_SYMBOL"
	CodeMarketClosed           ErrorCode = "MARKET_CLOSED"
	CodeNetwork                ErrorCode = "NETWORK_ERROR"
	CodeTimeout                ErrorCode = "TIMEOUT"
	CodeUnknown                ErrorCode = "UNKNOWN_ERROR"
)

type codeInfo struct {
	message   string
	retryable bool
}

// Consent and token failures need the user to reconnect, so retrying them
// locally cannot help.
var codeTable = map[ErrorCode]codeInfo{
	CodeConsentExpired:         {"Your consent has expired. Please authorize the connection again.", false},
	CodeInvalidToken:           {"Invalid access token. Try reconnecting your account.", false},
	CodeRateLimitExceeded:      {"Too many requests. Try again in a few minutes.", true},
	CodeInstitutionUnavailable: {"The financial institution is temporarily unavailable.", true},
	CodeQuoteServiceDown:       {"The quote service is temporarily unavailable.", true},
	CodeInvalidSymbol:          {"Asset symbol not found.", false},
	CodeMarketClosed:           {"Market closed. Showing the last available quote.", false},
	CodeNetwork:                {"Connection error. Check your network.", true},
	CodeTimeout:                {"The request timed out. Try again.", true},
	CodeUnknown:                {"Unexpected error. Try again or contact support.", true},
}

// Codes returns every known error code
func Codes() []ErrorCode {
	return []ErrorCode{
		CodeConsentExpired, CodeInvalidToken, CodeRateLimitExceeded,
		CodeInstitutionUnavailable, CodeQuoteServiceDown, CodeInvalidSymbol,
		CodeMarketClosed, CodeNetwork, CodeTimeout, CodeUnknown,
	}
}

// FinancialError is a classified upstream failure with a user-facing message
type FinancialError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
}

// NewError wraps err under code with the code's message and retry flag
func NewError(code ErrorCode, err error) *FinancialError {
	info, ok := codeTable[code]
	if !ok {
		code, info = CodeUnknown, codeTable[CodeUnknown]
	}
	return &FinancialError{Code: code, Message: info.message, Retryable: info.retryable, Err: err}
}

func (e *FinancialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FinancialError) Unwrap() error {
	return e.Err
}

// HTTPError is returned by clients when an upstream answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("upstream %s returned status %d: %s", e.URL, e.StatusCode, body)
}

// Classify maps an error to a FinancialError. Already classified errors are
// returned unchanged; nil yields nil.
func Classify(err error) *FinancialError {
	if err == nil {
		return nil
	}

	var fe *FinancialError
	if errors.As(err, &fe) {
		return fe
	}

	return NewError(classifyCode(err), err)
}

func classifyCode(err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if code, ok := statusCode(httpErr.StatusCode); ok {
			return code
		}
	}

	// Transport failures are matched on type first. Their text often carries
	// the request path (".../connect_token"), which must not read as an
	// auth failure.
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "consent"):
		return CodeConsentExpired
	case strings.Contains(msg, "invalid token"), strings.Contains(msg, "token expired"), strings.Contains(msg, "expired token"):
		return CodeInvalidToken
	case strings.Contains(msg, "rate limit"):
		return CodeRateLimitExceeded
	case strings.Contains(msg, "invalid symbol"):
		return CodeInvalidSymbol
	case strings.Contains(msg, "market closed"):
		return CodeMarketClosed
	}

	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return CodeTimeout
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return CodeNetwork
	}

	return CodeUnknown
}

func statusCode(status int) (ErrorCode, bool) {
	switch status {
	case http.StatusNotFound:
		return CodeInvalidSymbol, true
	case http.StatusServiceUnavailable:
		return CodeInstitutionUnavailable, true
	case http.StatusTooManyRequests:
		return CodeRateLimitExceeded, true
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeInvalidToken, true
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return CodeTimeout, true
	}
	if status >= 500 {
		return CodeQuoteServiceDown, true
	}
	return "", false
}

// IsRetryable reports whether err is worth retrying
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}
