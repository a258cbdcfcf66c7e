package aggregation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/reliability"
	testingpkg "github.com/aristath/famfin/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAggregator is a mock implementation of Aggregator
type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockAggregator) CreateConnectToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockAggregator) Accounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pluggy.Account), args.Error(1)
}

func (m *MockAggregator) Investments(ctx context.Context, itemID string) ([]pluggy.Investment, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pluggy.Investment), args.Error(1)
}

func (m *MockAggregator) DeleteItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func newTestService(t *testing.T, client Aggregator) (*Service, *clientdata.Repository) {
	t.Helper()
	repo := clientdata.NewRepository(testingpkg.NewTestDB(t, "cache").Conn())
	policy := reliability.Policy{MaxRetries: 1, Sleep: func(context.Context, time.Duration) error { return nil }}
	return NewService(client, NewCaches(nil, 0), repo, nil, reliability.NewMonitor(zerolog.Nop()), policy, 4, zerolog.Nop()), repo
}

// newItemService is newTestService with the per-user item registry enabled
func newItemService(t *testing.T, client Aggregator) *Service {
	t.Helper()
	s, _ := newTestService(t, client)
	s.items = NewItemRepository(testingpkg.NewTestDB(t, "app").Conn(), zerolog.Nop())
	s.items.now = func() time.Time { return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) }
	return s
}

func holdings() []pluggy.Investment {
	return []pluggy.Investment{
		{ID: "i1", Name: "Tesouro Selic 2029", Type: "FIXED_INCOME", Balance: 10500.25, CurrencyCode: "BRL"},
		{ID: "i2", Name: "BOVA11", Type: "ETF", Balance: 4200, CurrencyCode: "BRL"},
	}
}

func TestPortfolio_CachesAndTotals(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "item-1").Return(holdings(), nil).Once()

	s, _ := newTestService(t, client)

	portfolio, err := s.Portfolio(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", portfolio.ItemID)
	assert.InDelta(t, 14700.25, portfolio.TotalBalance, 1e-9)
	assert.False(t, portfolio.Stale)

	again, err := s.Portfolio(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, portfolio, again)

	client.AssertExpectations(t)
	assert.Equal(t, 1, s.monitor.EndpointStats(reliability.EndpointAggregatorInvest).TotalCalls)
}

func TestPortfolio_FallsBackToSnapshot(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "item-1").Return(nil, &reliability.HTTPError{StatusCode: 503}).Times(2)

	s, repo := newTestService(t, client)
	snapshot := Portfolio{ItemID: "item-1", Investments: holdings()[:1], TotalBalance: 10500.25}
	require.NoError(t, repo.Store(clientdata.TableAggregatorSnapshots, clientdata.PortfolioKey(PortfolioSource, "item-1"), snapshot, -time.Minute))

	portfolio, err := s.Portfolio(context.Background(), "item-1")
	require.NoError(t, err)
	assert.True(t, portfolio.Stale)
	assert.Equal(t, 10500.25, portfolio.TotalBalance)
	client.AssertExpectations(t)
}

func TestPortfolio_ErrorWithoutSnapshot(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "item-2").Return(nil, errors.New("consent expired for item"))

	s, _ := newTestService(t, client)
	_, err := s.Portfolio(context.Background(), "item-2")

	require.Error(t, err)
	assert.Equal(t, reliability.CodeConsentExpired, reliability.Classify(err).Code)
	client.AssertNumberOfCalls(t, "Investments", 1)
}

func TestAccounts(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Accounts", mock.Anything, "item-1").
		Return([]pluggy.Account{{ID: "a1", Name: "Conta Corrente", Balance: 1200}}, nil).Once()

	s, repo := newTestService(t, client)

	accounts, err := s.Accounts(context.Background(), " item-1 ")
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	_, err = s.Accounts(context.Background(), "item-1")
	require.NoError(t, err)
	client.AssertExpectations(t)

	var stored []pluggy.Account
	ok, err := repo.LoadFresh(clientdata.TableAggregatorSnapshots, clientdata.AccountsKey("item-1"), &stored)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequiresConfigurationAndItem(t *testing.T) {
	unconfigured := new(MockAggregator)
	unconfigured.On("Configured").Return(false)
	s, _ := newTestService(t, unconfigured)

	_, err := s.Accounts(context.Background(), "item-1")
	assert.ErrorIs(t, err, pluggy.ErrNotConfigured)
	_, err = s.ConnectToken(context.Background())
	assert.ErrorIs(t, err, pluggy.ErrNotConfigured)

	configured := new(MockAggregator)
	configured.On("Configured").Return(true)
	s, _ = newTestService(t, configured)

	_, err = s.Portfolio(context.Background(), "  ")
	assert.ErrorIs(t, err, pluggy.ErrItemIDRequired)
	assert.ErrorIs(t, s.DeleteItem(context.Background(), ""), pluggy.ErrItemIDRequired)
}

func TestPortfolios_PerItemFailures(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "good").Return(holdings(), nil)
	client.On("Investments", mock.Anything, "bad").Return(nil, errors.New("invalid token"))

	s, _ := newTestService(t, client)
	portfolios, failures := s.Portfolios(context.Background(), []string{"good", "bad", "good", " "})

	require.Len(t, portfolios, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, reliability.CodeInvalidToken, failures["bad"].Code)
	client.AssertNumberOfCalls(t, "Investments", 2)
}

func TestDeleteItem_ForgetsCachedData(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "item-1").Return(holdings(), nil).Times(2)
	client.On("DeleteItem", mock.Anything, "item-1").Return(nil).Once()

	s, repo := newTestService(t, client)

	_, err := s.Portfolio(context.Background(), "item-1")
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(context.Background(), "item-1"))

	raw, err := repo.Get(clientdata.TableAggregatorSnapshots, clientdata.PortfolioKey(PortfolioSource, "item-1"))
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = s.Portfolio(context.Background(), "item-1")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestConnectToken(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("CreateConnectToken", mock.Anything).Return("tok-123", nil)

	s, _ := newTestService(t, client)
	token, err := s.ConnectToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestItemRegistry(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	s := newItemService(t, client)
	ctx := context.Background()

	require.NoError(t, s.RegisterItem(ctx, "alice", " item-1 ", "Nubank"))
	require.NoError(t, s.RegisterItem(ctx, "alice", "item-2", ""))
	// Re-linking without a name keeps the known one
	require.NoError(t, s.RegisterItem(ctx, "alice", "item-1", ""))
	require.NoError(t, s.RegisterItem(ctx, "bob", "item-3", "Itau"))

	items, err := s.UserItems(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Item{ItemID: "item-1", InstitutionName: "Nubank", CreatedAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}, items[0])

	assert.NoError(t, s.Authorize(ctx, "alice", "item-2"))
	assert.ErrorIs(t, s.Authorize(ctx, "alice", "item-3"), ErrItemNotFound)
	assert.ErrorIs(t, s.RegisterItem(ctx, "alice", "", "x"), pluggy.ErrItemIDRequired)

	none, err := s.UserItems(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUserPortfolios(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("Investments", mock.Anything, "item-1").Return(holdings(), nil).Once()
	client.On("Investments", mock.Anything, "item-2").Return(nil, errors.New("invalid token"))

	s := newItemService(t, client)
	ctx := context.Background()
	require.NoError(t, s.RegisterItem(ctx, "alice", "item-1", ""))
	require.NoError(t, s.RegisterItem(ctx, "alice", "item-2", ""))
	require.NoError(t, s.RegisterItem(ctx, "bob", "item-9", ""))

	portfolios, failures, err := s.UserPortfolios(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Contains(t, portfolios, "item-1")
	assert.Equal(t, reliability.CodeInvalidToken, failures["item-2"].Code)

	_, _, err = s.UserPortfolios(ctx, "alice", []string{"item-1", "item-9"})
	assert.ErrorIs(t, err, ErrItemNotFound)
	client.AssertNotCalled(t, "Investments", mock.Anything, "item-9")
}

func TestDeleteUserItem(t *testing.T) {
	client := new(MockAggregator)
	client.On("Configured").Return(true)
	client.On("DeleteItem", mock.Anything, "item-1").Return(nil).Once()

	s := newItemService(t, client)
	ctx := context.Background()
	require.NoError(t, s.RegisterItem(ctx, "alice", "item-1", ""))

	assert.ErrorIs(t, s.DeleteUserItem(ctx, "bob", "item-1"), ErrItemNotFound)
	require.NoError(t, s.DeleteUserItem(ctx, "alice", " item-1 "))

	items, err := s.UserItems(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
	client.AssertExpectations(t)
}
