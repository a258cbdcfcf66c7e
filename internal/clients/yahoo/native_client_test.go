package yahoo

import (
	"context"
	"testing"

	"github.com/aristath/famfin/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeClient_ImplementsProviders(t *testing.T) {
	var _ domain.MarketDataProvider = NewNativeClient(zerolog.Nop())
	var _ domain.MarketDataProvider = NewClient(zerolog.Nop())
	var _ domain.DividendProvider = NewClient(zerolog.Nop())
}

func TestNativeClient_CancelledContext(t *testing.T) {
	client := NewNativeClient(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetQuote(ctx, "PETR4")
	require.ErrorIs(t, err, context.Canceled)

	_, err = client.GetHistory(ctx, "PETR4", "1mo")
	require.ErrorIs(t, err, context.Canceled)

	closes, err := client.GetLatestCloses(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, closes)
}
