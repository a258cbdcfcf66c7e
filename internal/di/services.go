// Package di provides dependency injection for clients and services.
package di

import (
	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/clients/bcb"
	"github.com/aristath/famfin/internal/clients/exchangerate"
	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/clients/yahoo"
	"github.com/aristath/famfin/internal/config"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/modules/aggregation"
	"github.com/aristath/famfin/internal/modules/benchmark"
	"github.com/aristath/famfin/internal/modules/budget"
	"github.com/aristath/famfin/internal/modules/dividends"
	"github.com/aristath/famfin/internal/modules/groups"
	"github.com/aristath/famfin/internal/modules/investments"
	"github.com/aristath/famfin/internal/modules/market"
	"github.com/aristath/famfin/internal/modules/tasks"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/scheduler"
	"github.com/rs/zerolog"
)

// RetryPolicy builds the outbound retry policy from configuration
func RetryPolicy(cfg *config.Config) reliability.Policy {
	return reliability.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}
}

// InitializeServices creates clients, caches, repositories and services.
// Databases must already be open on the container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	policy := RetryPolicy(cfg)

	// Cross-cutting state shared by every service
	container.Monitor = reliability.NewMonitor(log)
	container.CacheRegistry = clientdata.NewRegistry()
	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.Scheduler = scheduler.New(log)

	// Clients
	httpYahoo := yahoo.NewClient(log, yahoo.WithTimeout(cfg.RequestTimeout))
	if cfg.QuoteProvider == "native" {
		container.MarketData = yahoo.NewNativeClient(log)
	} else {
		container.MarketData = httpYahoo
	}
	// Dividends are only served by the JSON endpoints
	container.DividendSource = httpYahoo
	container.ExchangeRates = exchangerate.NewClient("", container.CacheRepo, container.Monitor, log)
	container.BCBClient = bcb.NewClient("", cfg.RequestTimeout, log)
	container.PluggyClient = pluggy.NewClient(pluggy.Config{
		BaseURL:      cfg.Pluggy.BaseURL,
		ClientID:     cfg.Pluggy.ClientID,
		ClientSecret: cfg.Pluggy.ClientSecret,
		Timeout:      cfg.RequestTimeout,
	}, log)
	if !cfg.Pluggy.Enabled() {
		log.Warn().Msg("Pluggy credentials not set, aggregation endpoints will return 503")
	}

	// Repositories
	container.TransactionRepo = investments.NewRepository(container.LedgerDB.Conn(), log)
	container.TaskRepo = tasks.NewRepository(container.AppDB.Conn(), log)
	container.GroupRepo = groups.NewRepository(container.AppDB.Conn(), log)
	container.BudgetRepo = budget.NewRepository(container.LedgerDB.Conn(), log)
	container.ItemRepo = aggregation.NewItemRepository(container.AppDB.Conn(), log)

	// Services
	container.QuoteService = market.NewQuoteService(
		container.MarketData,
		container.ExchangeRates,
		market.NewCaches(container.CacheRegistry, cfg.Cache.QuoteTTL),
		container.Monitor,
		market.Config{
			BaseCurrency: domain.Currency(cfg.BaseCurrency),
			FanOutLimit:  cfg.FanOutLimit,
			Policy:       policy,
			Searcher:     httpYahoo,
		},
		log,
	)

	container.DividendService = dividends.NewService(
		container.DividendSource,
		container.CacheRepo,
		container.Monitor,
		policy,
		cfg.FanOutLimit,
		log,
	)

	container.BenchmarkService = benchmark.NewService(
		container.BCBClient,
		container.CacheRepo,
		container.Monitor,
		policy,
		log,
	)

	container.InvestmentService = investments.NewService(
		container.TransactionRepo,
		container.QuoteService,
		investments.NewSummaryCache(container.CacheRegistry, cfg.Cache.PortfolioTTL),
		log,
	)

	container.AggregationService = aggregation.NewService(
		container.PluggyClient,
		aggregation.NewCaches(container.CacheRegistry, cfg.Cache.PortfolioTTL),
		container.CacheRepo,
		container.ItemRepo,
		container.Monitor,
		policy,
		cfg.FanOutLimit,
		log,
	)

	container.GroupService = groups.NewService(container.GroupRepo, log)
	container.BudgetService = budget.NewService(container.BudgetRepo, container.GroupService, log)

	container.Notifier = tasks.NewLogNotifier(log)

	log.Info().
		Str("quote_provider", cfg.QuoteProvider).
		Str("base_currency", cfg.BaseCurrency).
		Bool("aggregator", cfg.Pluggy.Enabled()).
		Msg("Services initialized")

	return nil
}
