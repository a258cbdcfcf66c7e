package investments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/modules/market"
	"github.com/aristath/famfin/internal/modules/positions"
	"github.com/rs/zerolog"
)

// PortfolioSource names the manually entered portfolio in cache keys
const PortfolioSource = "manual"

// QuoteSource resolves live quotes for a batch of symbols
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string) market.QuoteResult
}

// Service validates trades at ingestion and derives positions from them
type Service struct {
	repo      *Repository
	quotes    QuoteSource
	summaries *clientdata.Cache[positions.Summary]
	writeMu   sync.Mutex // serializes validate-then-write per process
	log       zerolog.Logger
}

// NewService creates an investments service. summaries may be nil to disable caching.
func NewService(repo *Repository, quotes QuoteSource, summaries *clientdata.Cache[positions.Summary], log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		quotes:    quotes,
		summaries: summaries,
		log:       log.With().Str("service", "investments").Logger(),
	}
}

// NewSummaryCache creates the portfolio summary cache and registers it when registry is non-nil
func NewSummaryCache(registry *clientdata.Registry, ttl time.Duration) *clientdata.Cache[positions.Summary] {
	if ttl <= 0 {
		ttl = clientdata.PortfolioTTL
	}
	c := clientdata.NewCache[positions.Summary]("portfolio_summaries", ttl)
	if registry != nil {
		registry.Register(c)
	}
	return c
}

// AddTransaction validates tx against the user's existing history for the same
// ticker and stores it. A sell larger than the quantity held on its date is
// rejected with positions.ErrOversell.
func (s *Service) AddTransaction(ctx context.Context, userID string, tx domain.Transaction) (*domain.Transaction, error) {
	tx.UserID = userID
	tx.Ticker = positions.NormalizeTicker(tx.Ticker)
	tx.AssetType = strings.ToUpper(strings.TrimSpace(tx.AssetType))
	tx.AssetName = strings.TrimSpace(tx.AssetName)

	if err := positions.Validate(tx); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	history, err := s.repo.ListByTicker(ctx, userID, tx.Ticker)
	if err != nil {
		return nil, err
	}
	if err := positions.ValidateHistory(append(history, tx)); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &tx); err != nil {
		return nil, err
	}
	s.invalidate(userID)
	return &tx, nil
}

// ListTransactions returns the user's transactions in date order
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.repo.ListByUser(ctx, userID)
}

// DeleteTransaction removes a transaction unless that would leave a later sell
// exceeding the quantity held
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	target, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	history, err := s.repo.ListByTicker(ctx, userID, target.Ticker)
	if err != nil {
		return err
	}
	remaining := make([]domain.Transaction, 0, len(history))
	for _, tx := range history {
		if tx.ID != id {
			remaining = append(remaining, tx)
		}
	}
	if err := positions.ValidateHistory(remaining); err != nil {
		return fmt.Errorf("cannot delete transaction %s: %w", id, err)
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Positions returns the user's open positions
func (s *Service) Positions(ctx context.Context, userID string) ([]domain.Position, error) {
	txs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return positions.ComputePositions(txs), nil
}

// PortfolioSummary returns positions enriched with live quotes and portfolio
// totals. Summaries are cached only when every position was quoted.
func (s *Service) PortfolioSummary(ctx context.Context, userID string) (positions.Summary, error) {
	key := clientdata.PortfolioKey(PortfolioSource, userID)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			return cached, nil
		}
	}

	open, err := s.Positions(ctx, userID)
	if err != nil {
		return positions.Summary{}, err
	}

	quotes := map[string]domain.Quote{}
	if len(open) > 0 && s.quotes != nil {
		symbols := make([]string, 0, len(open))
		for _, p := range open {
			symbols = append(symbols, p.Ticker)
		}
		result := s.quotes.GetQuotes(ctx, symbols)
		for symbol, fe := range result.Errors {
			s.log.Warn().Str("symbol", symbol).Str("code", string(fe.Code)).Msg("Position priced without a quote")
		}
		quotes = result.Quotes
	}

	summary := positions.Summarize(positions.Enrich(open, quotes))
	if s.summaries != nil && len(summary.MissingQuotes) == 0 {
		s.summaries.Set(key, summary, 0)
	}
	return summary, nil
}

func (s *Service) invalidate(userID string) {
	if s.summaries == nil {
		return
	}
	s.summaries.Delete(clientdata.PortfolioKey(PortfolioSource, userID))
}
