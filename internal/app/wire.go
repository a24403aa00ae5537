package app

import (
	"context"
	"log/slog"

	"github.com/maltedev/amazon-price-tracker/internal/browser"
	"github.com/maltedev/amazon-price-tracker/internal/config"
	"github.com/maltedev/amazon-price-tracker/internal/database"
	"github.com/maltedev/amazon-price-tracker/internal/events"
	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/maltedev/amazon-price-tracker/internal/parser"
	"github.com/maltedev/amazon-price-tracker/internal/ratelimit"
	"github.com/maltedev/amazon-price-tracker/internal/report"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
	"github.com/maltedev/amazon-price-tracker/internal/tracker"
	"github.com/redis/go-redis/v9"
)

// NewDriverFactory opens playwright or static sessions depending on the
// configured engine.
func NewDriverFactory(cfg config.BrowserConfig, logger *slog.Logger) DriverFactory {
	if cfg.Engine == "static" {
		return func(ctx context.Context) (browser.Driver, error) {
			return browser.NewStaticSession(browser.StaticOptions{
				UserAgent: cfg.UserAgent,
				Timeout:   cfg.Timeout,
			}, logger), nil
		}
	}

	return func(ctx context.Context) (browser.Driver, error) {
		session, err := browser.Launch(&browser.Options{
			Headless:          cfg.Headless,
			IgnoreHTTPSErrors: cfg.IgnoreHTTPSErrors,
			Timeout:           cfg.Timeout,
			UserAgent:         cfg.UserAgent,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			AcceptLanguage:    cfg.AcceptLanguage,
			Locale:            cfg.Locale,
			ProxyServer:       cfg.ProxyServer,
		}, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Services holds a wired runner and the resources it depends on.
type Services struct {
	Runner  *Runner
	Store   *storage.FileStore
	// History is nil unless Postgres is enabled and reachable.
	History *database.HistoryRepository

	db        *database.DB
	publisher *events.Publisher
	logger    *slog.Logger
}

// Build wires a Runner from configuration. Postgres and Redis are connected
// only when enabled; a failed connection disables that sink.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	store, err := storage.NewFileStore(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}

	style, err := report.ParseDateStyle(cfg.Output.DateStyle)
	if err != nil {
		return nil, err
	}

	prices, err := parser.NewPriceParser(cfg.Scraper.PriceFormat, cfg.Search.Currency)
	if err != nil {
		return nil, err
	}

	extractorCfg := tracker.DefaultConfig(cfg.Search.BaseURL, cfg.Search.Currency)
	extractorCfg.Language = cfg.Scraper.Language
	extractorCfg.Dedupe = cfg.Scraper.Dedupe
	extractorCfg.DedupeSize = cfg.Scraper.DedupeSize

	s := &Services{
		Store:  store,
		logger: logger,
	}

	opts := Options{
		Extractor:   extractorCfg,
		Prices:      prices,
		Delay:       ratelimit.NewJitterDelay(cfg.Scraper.SettleMin, cfg.Scraper.SettleMax),
		Metrics:     tracker.NewMetrics(),
		EmptyPolicy: EmptyPolicy(cfg.Output.EmptyPolicy),
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			logger.Error("price history disabled", "error", err)
		} else {
			history := database.NewHistoryRepository(db, logger)
			if err := history.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
			s.db = db
			opts.History = history
			s.History = history
		}
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("report events disabled", "error", err)
			client.Close()
		} else {
			s.publisher = events.NewPublisher(client, cfg.Redis.Stream, logger)
			opts.Publisher = s.publisher
		}
	}

	reporter := report.NewReporter(store, style, logger)
	s.Runner = NewRunner(NewDriverFactory(cfg.Browser, logger), reporter, opts, logger)

	return s, nil
}

func (s *Services) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}

// FilterFromSearch converts the configured price bounds.
func FilterFromSearch(search config.SearchConfig) models.SearchFilter {
	return models.SearchFilter{Min: search.MinPrice, Max: search.MaxPrice}
}
