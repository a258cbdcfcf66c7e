/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to handlers and monitoring state.
 */
package di

import (
	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/clients/bcb"
	"github.com/aristath/famfin/internal/clients/exchangerate"
	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/database"
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
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: ledger (transactions, household budget), app (tasks, groups, linked items),
 *   cache (persisted upstream data)
 * - Clients: Yahoo Finance, BCB, exchangerate-api.com, Pluggy
 * - Caches: in-memory TTL caches registered with one Registry for sweeping
 * - Services: quotes, dividends, benchmark, investments, aggregation, groups, budget
 * - Scheduler: cron runner for housekeeping and refresh jobs
 */
type Container struct {
	// Databases
	LedgerDB *database.DB // Investment transactions and household entries
	AppDB    *database.DB // Tasks, family groups and linked items
	CacheDB  *database.DB // Persisted upstream responses with stale fallback

	// Clients - External API integrations
	MarketData     domain.MarketDataProvider // Yahoo, HTTP or native depending on config
	DividendSource domain.DividendProvider
	ExchangeRates  *exchangerate.Client
	BCBClient      *bcb.Client
	PluggyClient   *pluggy.Client

	// Cross-cutting
	Monitor       *reliability.Monitor
	CacheRegistry *clientdata.Registry
	CacheRepo     *clientdata.Repository
	Scheduler     *scheduler.Scheduler

	// Repositories - Data access layer
	TransactionRepo *investments.Repository
	TaskRepo        *tasks.Repository
	GroupRepo       *groups.Repository
	BudgetRepo      *budget.Repository
	ItemRepo        *aggregation.ItemRepository

	// Services - Business logic layer
	QuoteService       *market.QuoteService
	DividendService    *dividends.Service
	BenchmarkService   *benchmark.Service
	InvestmentService  *investments.Service
	AggregationService *aggregation.Service
	GroupService       *groups.Service
	BudgetService      *budget.Service
	Notifier           tasks.Notifier
}

// JobInstances holds references to the scheduled jobs for manual triggering
type JobInstances struct {
	CacheCleanup        *clientdata.CleanupJob
	MonitorCleanup      *reliability.MonitorCleanupJob
	DatabaseMaintenance *scheduler.DatabaseMaintenanceJob
	TaskReminders       *tasks.ReminderJob
	CDIRefresh          *benchmark.RefreshJob
	Backup              *reliability.BackupJob // nil when no bucket is configured
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range []*database.DB{c.LedgerDB, c.AppDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}
