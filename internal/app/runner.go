package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-price-tracker/internal/browser"
	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/maltedev/amazon-price-tracker/internal/parser"
	"github.com/maltedev/amazon-price-tracker/internal/ratelimit"
	"github.com/maltedev/amazon-price-tracker/internal/report"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
	"github.com/maltedev/amazon-price-tracker/internal/tracker"
)

var (
	ErrInvalidParams = errors.New("invalid run parameters")
	ErrNoProducts    = errors.New("no products extracted")
)

type EmptyPolicy string

const (
	// EmptyPolicyWrite writes a report with no products and a null best item.
	EmptyPolicyWrite EmptyPolicy = "write"
	// EmptyPolicySkip writes nothing and fails the run.
	EmptyPolicySkip EmptyPolicy = "skip"
)

// DriverFactory opens a fresh browser session for one run.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

type HistoryStore interface {
	SaveReport(ctx context.Context, runID uuid.UUID, rep *models.Report) error
}

type EventPublisher interface {
	PublishReport(ctx context.Context, runID uuid.UUID, rep *models.Report, path string) (string, error)
}

type Params struct {
	Title      string              `json:"title"`
	SearchTerm string              `json:"search_term"`
	Filter     models.SearchFilter `json:"filters"`
}

func (p Params) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidParams)
	}
	if err := storage.ValidateName(p.Title); err != nil {
		return fmt.Errorf("%w: title: %v", ErrInvalidParams, err)
	}
	if strings.TrimSpace(p.SearchTerm) == "" {
		return fmt.Errorf("%w: search term is required", ErrInvalidParams)
	}
	if err := p.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

type Result struct {
	RunID  uuid.UUID      `json:"run_id"`
	Report *models.Report `json:"report"`
	Path   string         `json:"path"`
}

type Options struct {
	Extractor   tracker.Config
	Prices      parser.PriceParser
	Delay       ratelimit.Delay
	Metrics     *tracker.Metrics
	EmptyPolicy EmptyPolicy
	History     HistoryStore
	Publisher   EventPublisher
}

// Runner executes one search-to-report run at a time per call.
type Runner struct {
	drivers  DriverFactory
	reporter *report.Reporter
	opts     Options
	base     *slog.Logger
	logger   *slog.Logger
}

func NewRunner(drivers DriverFactory, reporter *report.Reporter, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EmptyPolicy == "" {
		opts.EmptyPolicy = EmptyPolicyWrite
	}
	return &Runner{
		drivers:  drivers,
		reporter: reporter,
		opts:     opts,
		base:     logger,
		logger:   logger.With("component", "runner"),
	}
}

func (r *Runner) Metrics() *tracker.Metrics {
	return r.opts.Metrics
}

func (r *Runner) Run(ctx context.Context, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := r.logger.With("run_id", runID, "title", params.Title)

	driver, err := r.drivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}

	// The extractor tags its own component.
	extractor := tracker.NewExtractor(driver, r.opts.Prices, r.opts.Extractor, r.base.With("run_id", runID)).
		WithMetrics(r.opts.Metrics)
	if r.opts.Delay != nil {
		extractor.WithDelay(r.opts.Delay)
	}

	records, err := extractor.Run(ctx, params.SearchTerm, params.Filter)
	switch {
	case errors.Is(err, tracker.ErrNoProductLinks):
		if r.opts.EmptyPolicy == EmptyPolicySkip {
			logger.Warn("skipping report, no product links")
			return nil, err
		}
		records = nil
	case err != nil:
		return nil, fmt.Errorf("run failed: %w", err)
	case len(records) == 0 && r.opts.EmptyPolicy == EmptyPolicySkip:
		logger.Warn("skipping report, every product was dropped")
		return nil, ErrNoProducts
	}

	rep, path, err := r.reporter.Generate(params.Title, params.Filter, r.opts.Extractor.BaseURL, r.opts.Extractor.Currency, records)
	if err != nil {
		return nil, err
	}

	r.record(ctx, logger, runID, rep, path)

	logger.Info("run complete", "products", len(rep.Products), "path", path)

	return &Result{RunID: runID, Report: rep, Path: path}, nil
}

// record feeds the optional sinks. Their failures never fail a written report.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, runID uuid.UUID, rep *models.Report, path string) {
	if r.opts.History != nil {
		if err := r.opts.History.SaveReport(ctx, runID, rep); err != nil {
			logger.Error("failed to save price history", "error", err)
		}
	}

	if r.opts.Publisher != nil {
		if _, err := r.opts.Publisher.PublishReport(ctx, runID, rep, path); err != nil {
			logger.Error("failed to publish report event", "error", err)
		}
	}
}
