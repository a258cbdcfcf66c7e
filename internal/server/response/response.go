// Package response writes the JSON envelopes shared by every HTTP handler.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error     string                `json:"error"`
	Code      reliability.ErrorCode `json:"code,omitempty"`
	Retryable bool                  `json:"retryable"`
}

// JSON writes data with the given status
func JSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Data wraps data in the {data, metadata} envelope
func Data(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	JSON(w, log, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// Error writes a plain error message
func Error(w http.ResponseWriter, log zerolog.Logger, status int, message string) {
	JSON(w, log, status, ErrorBody{Error: message})
}

// Failure classifies an upstream error and writes its user-facing message with a matching status
func Failure(w http.ResponseWriter, log zerolog.Logger, err error) {
	fe := reliability.Classify(err)
	status := StatusFor(fe.Code)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("code", string(fe.Code)).Int("status", status).Msg("Request failed")

	JSON(w, log, status, ErrorBody{Error: fe.Message, Code: fe.Code, Retryable: fe.Retryable})
}

// StatusFor maps an error code to an HTTP status
func StatusFor(code reliability.ErrorCode) int {
	switch code {
	case reliability.CodeInvalidSymbol:
		return http.StatusNotFound
	case reliability.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case reliability.CodeConsentExpired:
		return http.StatusUnauthorized
	case reliability.CodeInvalidToken, reliability.CodeNetwork:
		return http.StatusBadGateway
	case reliability.CodeInstitutionUnavailable, reliability.CodeQuoteServiceDown, reliability.CodeMarketClosed:
		return http.StatusServiceUnavailable
	case reliability.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
