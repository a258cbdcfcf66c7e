// Package aggregation serves accounts and investments from open-banking
// connections (Pluggy items) with caching and stale-snapshot fallback.
package aggregation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/utils"
	"github.com/rs/zerolog"
)

// PortfolioSource names aggregator portfolios in cache keys
const PortfolioSource = "pluggy"

// Aggregator is the subset of the Pluggy client used by the service
type Aggregator interface {
	Configured() bool
	CreateConnectToken(ctx context.Context) (string, error)
	Accounts(ctx context.Context, itemID string) ([]pluggy.Account, error)
	Investments(ctx context.Context, itemID string) ([]pluggy.Investment, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// Portfolio is the investment snapshot of one connected item
type Portfolio struct {
	FetchedAt    time.Time           `json:"fetched_at"`
	ItemID       string              `json:"item_id"`
	Investments  []pluggy.Investment `json:"investments"`
	TotalBalance float64             `json:"total_balance"`
	Stale        bool                `json:"stale,omitempty"` // Served from an expired snapshot
}

// Caches groups the in-memory caches used by the service
type Caches struct {
	Accounts   *clientdata.Cache[[]pluggy.Account]
	Portfolios *clientdata.Cache[Portfolio]
}

// NewCaches creates the caches and registers them when registry is non-nil
func NewCaches(registry *clientdata.Registry, ttl time.Duration) Caches {
	if ttl <= 0 {
		ttl = clientdata.PortfolioTTL
	}
	c := Caches{
		Accounts:   clientdata.NewCache[[]pluggy.Account]("aggregator_accounts", ttl),
		Portfolios: clientdata.NewCache[Portfolio]("aggregator_portfolios", ttl),
	}
	if registry != nil {
		registry.Register(c.Accounts)
		registry.Register(c.Portfolios)
	}
	return c
}

// Service fronts the aggregator
type Service struct {
	client      Aggregator
	caches      Caches
	snapshots   *clientdata.Repository
	items       *ItemRepository
	monitor     *reliability.Monitor
	policy      reliability.Policy
	fanOutLimit int
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates an aggregation service. snapshots and monitor may be nil.
// Without items every item id is served to every caller.
func NewService(
	client Aggregator,
	caches Caches,
	snapshots *clientdata.Repository,
	items *ItemRepository,
	monitor *reliability.Monitor,
	policy reliability.Policy,
	fanOutLimit int,
	log zerolog.Logger,
) *Service {
	return &Service{
		client:      client,
		caches:      caches,
		snapshots:   snapshots,
		items:       items,
		monitor:     monitor,
		policy:      policy,
		fanOutLimit: fanOutLimit,
		now:         time.Now,
		log:         log.With().Str("service", "aggregation").Logger(),
	}
}

func (s *Service) ready(itemID string) (string, error) {
	if !s.client.Configured() {
		return "", pluggy.ErrNotConfigured
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return "", pluggy.ErrItemIDRequired
	}
	return itemID, nil
}

// ConnectToken returns a token for the aggregator's connect widget
func (s *Service) ConnectToken(ctx context.Context) (string, error) {
	if !s.client.Configured() {
		return "", pluggy.ErrNotConfigured
	}
	return reliability.Measure(s.monitor, reliability.EndpointAggregatorAuth, func() (string, error) {
		return s.client.CreateConnectToken(ctx)
	})
}

// Accounts returns the accounts of an item
func (s *Service) Accounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	itemID, err := s.ready(itemID)
	if err != nil {
		return nil, err
	}

	key := clientdata.AccountsKey(itemID)
	if cached, ok := s.caches.Accounts.Get(key); ok {
		return cached, nil
	}

	accounts, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]pluggy.Account, error) {
		return reliability.Measure(s.monitor, reliability.EndpointAggregatorAccts, func() ([]pluggy.Account, error) {
			return s.client.Accounts(ctx, itemID)
		})
	})
	if err != nil {
		var stale []pluggy.Account
		if s.loadSnapshot(key, &stale) {
			s.log.Warn().Err(err).Str("item_id", itemID).Msg("Accounts fetch failed, serving snapshot")
			return stale, nil
		}
		return nil, fmt.Errorf("failed to fetch accounts for item %s: %w", itemID, err)
	}

	s.caches.Accounts.Set(key, accounts, 0)
	s.storeSnapshot(key, accounts)
	return accounts, nil
}

// Portfolio returns the investments of an item with their total balance
func (s *Service) Portfolio(ctx context.Context, itemID string) (Portfolio, error) {
	itemID, err := s.ready(itemID)
	if err != nil {
		return Portfolio{}, err
	}

	key := clientdata.PortfolioKey(PortfolioSource, itemID)
	if cached, ok := s.caches.Portfolios.Get(key); ok {
		return cached, nil
	}

	investments, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]pluggy.Investment, error) {
		return reliability.Measure(s.monitor, reliability.EndpointAggregatorInvest, func() ([]pluggy.Investment, error) {
			return s.client.Investments(ctx, itemID)
		})
	})
	if err != nil {
		var stale Portfolio
		if s.loadSnapshot(key, &stale) {
			s.log.Warn().Err(err).Str("item_id", itemID).Msg("Investments fetch failed, serving snapshot")
			stale.Stale = true
			return stale, nil
		}
		return Portfolio{}, fmt.Errorf("failed to fetch investments for item %s: %w", itemID, err)
	}

	portfolio := Portfolio{
		FetchedAt:   s.now().UTC(),
		ItemID:      itemID,
		Investments: investments,
	}
	for _, inv := range investments {
		portfolio.TotalBalance += inv.Balance
	}

	s.caches.Portfolios.Set(key, portfolio, 0)
	s.storeSnapshot(key, portfolio)
	return portfolio, nil
}

// Portfolios fetches several items concurrently. Failed items are returned
// in the error map and do not affect the others.
func (s *Service) Portfolios(ctx context.Context, itemIDs []string) (map[string]Portfolio, map[string]*reliability.FinancialError) {
	results := utils.FanOut(ctx, uniqueIDs(itemIDs), s.fanOutLimit, s.Portfolio)

	failures := make(map[string]*reliability.FinancialError)
	for id, err := range utils.Failures(results) {
		failures[id] = reliability.Classify(err)
	}
	return utils.Successes(results), failures
}

// DeleteItem disconnects an item and forgets everything cached for it
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	itemID, err := s.ready(itemID)
	if err != nil {
		return err
	}
	if err := s.client.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}

	for _, key := range []string{clientdata.AccountsKey(itemID), clientdata.PortfolioKey(PortfolioSource, itemID)} {
		s.caches.Accounts.Delete(key)
		s.caches.Portfolios.Delete(key)
		if s.snapshots != nil {
			if err := s.snapshots.Delete(clientdata.TableAggregatorSnapshots, key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete snapshot")
			}
		}
	}

	s.log.Info().Str("item_id", itemID).Msg("Deleted item")
	return nil
}

// RegisterItem links a freshly connected item to userID
func (s *Service) RegisterItem(ctx context.Context, userID, itemID, institution string) error {
	itemID, err := s.ready(itemID)
	if err != nil {
		return err
	}
	if s.items == nil {
		return nil
	}
	if err := s.items.Register(ctx, userID, itemID, institution); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("item_id", itemID).Msg("Linked item")
	return nil
}

// UserItems returns the items userID linked
func (s *Service) UserItems(ctx context.Context, userID string) ([]Item, error) {
	if s.items == nil {
		return []Item{}, nil
	}
	return s.items.List(ctx, userID)
}

// Authorize fails with ErrItemNotFound unless userID linked itemID
func (s *Service) Authorize(ctx context.Context, userID, itemID string) error {
	itemID, err := s.ready(itemID)
	if err != nil {
		return err
	}
	if s.items == nil {
		return nil
	}
	owned, err := s.items.Owns(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrItemNotFound
	}
	return nil
}

// UserPortfolios fetches the portfolios of itemIDs, or of every item userID
// linked when itemIDs is empty. Requesting an item the user does not own fails
// the whole call.
func (s *Service) UserPortfolios(ctx context.Context, userID string, itemIDs []string) (map[string]Portfolio, map[string]*reliability.FinancialError, error) {
	if len(itemIDs) == 0 {
		items, err := s.UserItems(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		for _, item := range items {
			itemIDs = append(itemIDs, item.ItemID)
		}
	} else {
		for _, id := range uniqueIDs(itemIDs) {
			if err := s.Authorize(ctx, userID, id); err != nil {
				return nil, nil, err
			}
		}
	}

	portfolios, failures := s.Portfolios(ctx, itemIDs)
	return portfolios, failures, nil
}

// DeleteUserItem disconnects one of userID's items and unlinks it
func (s *Service) DeleteUserItem(ctx context.Context, userID, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if err := s.Authorize(ctx, userID, itemID); err != nil {
		return err
	}
	if err := s.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	if s.items == nil {
		return nil
	}
	return s.items.Remove(ctx, userID, itemID)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Service) storeSnapshot(key string, data interface{}) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Store(clientdata.TableAggregatorSnapshots, key, data, clientdata.TTLAggregatorSnapshot); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to store snapshot")
	}
}

func (s *Service) loadSnapshot(key string, out interface{}) bool {
	if s.snapshots == nil {
		return false
	}
	ok, err := s.snapshots.LoadStale(clientdata.TableAggregatorSnapshots, key, out)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to read snapshot")
		return false
	}
	return ok
}
