package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.False(t, IsRetryable(nil))
}

func TestClassify_Messages(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{"consent", errors.New("Consent expired for item 42"), CodeConsentExpired, false},
		{"token", errors.New("invalid TOKEN supplied"), CodeInvalidToken, false},
		{"expired token", errors.New("pluggy: token expired"), CodeInvalidToken, false},
		{"token in a path is not an auth failure", errors.New("failed to create connect token: boom"), CodeUnknown, true},
		{"rate limit", errors.New("Rate limit reached"), CodeRateLimitExceeded, true},
		{"invalid symbol", errors.New("invalid symbol XXXX9"), CodeInvalidSymbol, false},
		{"market closed", errors.New("market closed"), CodeMarketClosed, false},
		{"network text", errors.New("network unreachable"), CodeNetwork, true},
		{"timeout text", errors.New("request timed out"), CodeTimeout, true},
		{"unknown", errors.New("boom"), CodeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.NotEmpty(t, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_HTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		code   ErrorCode
	}{
		{404, CodeInvalidSymbol},
		{503, CodeInstitutionUnavailable},
		{429, CodeRateLimitExceeded},
		{401, CodeInvalidToken},
		{504, CodeTimeout},
		{500, CodeQuoteServiceDown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := fmt.Errorf("fetch quote: %w", &HTTPError{StatusCode: tt.status, URL: "http://x"})
			assert.Equal(t, tt.code, Classify(err).Code)
		})
	}

	// Statuses without a mapping fall through to the message checks
	err := &HTTPError{StatusCode: 400, URL: "http://x", Body: "bad"}
	assert.Equal(t, CodeUnknown, Classify(err).Code)
}

func TestClassify_ContextAndNetErrors(t *testing.T) {
	assert.Equal(t, CodeTimeout, Classify(fmt.Errorf("get: %w", context.DeadlineExceeded)).Code)

	dnsErr := &net.DNSError{Err: "server misbehaving", Name: "query1.example"}
	assert.Equal(t, CodeNetwork, Classify(dnsErr).Code)

	dnsTimeout := &net.DNSError{Err: "i/o wait", Name: "query1.example", IsTimeout: true}
	assert.Equal(t, CodeTimeout, Classify(dnsTimeout).Code)

	refused := &url.Error{
		Op:  "Post",
		URL: "https://api.pluggy.ai/connect_token",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}
	for _, err := range []error{refused, fmt.Errorf("failed to create connect token: %w", refused)} {
		got := Classify(err)
		assert.Equal(t, CodeNetwork, got.Code, err.Error())
		assert.True(t, got.Retryable, err.Error())
	}
}

func TestClassify_AlreadyClassified(t *testing.T) {
	original := NewError(CodeMarketClosed, errors.New("closed"))
	wrapped := fmt.Errorf("layer: %w", original)

	assert.Same(t, original, Classify(wrapped))
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	fe := NewError(ErrorCode("NOPE"), nil)
	assert.Equal(t, CodeUnknown, fe.Code)
	assert.True(t, fe.Retryable)
	assert.Contains(t, fe.Error(), "UNKNOWN_ERROR")
}

func TestCodes_AllHaveMessages(t *testing.T) {
	for _, code := range Codes() {
		info, ok := codeTable[code]
		assert.True(t, ok, code)
		assert.NotEmpty(t, info.message, code)
	}
}
