package report

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
)

type DateStyle string

const (
	// DateStyleLegacy keeps a literal "Y" where the year would be, matching
	// reports written by earlier versions of the tracker.
	DateStyleLegacy DateStyle = "legacy"
	DateStyleFull   DateStyle = "full"
)

const (
	legacyLayout = "02/01/Y 15:04:05"
	fullLayout   = "02/01/2006 15:04:05"
)

func ParseDateStyle(s string) (DateStyle, error) {
	switch DateStyle(s) {
	case "", DateStyleLegacy:
		return DateStyleLegacy, nil
	case DateStyleFull:
		return DateStyleFull, nil
	default:
		return "", fmt.Errorf("unknown date style %q", s)
	}
}

func (d DateStyle) Format(t time.Time) string {
	if d == DateStyleFull {
		return t.Format(fullLayout)
	}
	return t.Format(legacyLayout)
}

type Reporter struct {
	store     *storage.FileStore
	dateStyle DateStyle
	now       func() time.Time
	logger    *slog.Logger
}

func NewReporter(store *storage.FileStore, style DateStyle, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		store:     store,
		dateStyle: style,
		now:       time.Now,
		logger:    logger.With("component", "reporter"),
	}
}

// WithClock replaces the time source used for the report date.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Build assembles a report without writing it.
func (r *Reporter) Build(title string, filter models.SearchFilter, baseURL, currency string, records []models.ProductRecord) *models.Report {
	products := make([]models.ProductRecord, len(records))
	copy(products, records)

	generated := r.now()

	rep := &models.Report{
		Title:       title,
		Date:        r.dateStyle.Format(generated),
		BestItem:    Cheapest(products),
		Currency:    currency,
		Filters:     filter,
		BaseLink:    baseURL,
		Products:    products,
		GeneratedAt: generated,
	}

	if rep.BestItem == nil {
		r.logger.Warn("report has no products", "title", title)
	}

	return rep
}

// Generate builds the report and writes it as {title}.json, replacing any
// earlier report with the same title.
func (r *Reporter) Generate(title string, filter models.SearchFilter, baseURL, currency string, records []models.ProductRecord) (*models.Report, string, error) {
	rep := r.Build(title, filter, baseURL, currency, records)

	r.logger.Info("writing report", "title", title, "products", len(rep.Products))

	path, err := r.store.Save(title, rep)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write report %s: %w", title, err)
	}

	r.logger.Info("report written", "path", path)

	return rep, path, nil
}

// Cheapest returns a copy of the first record with the lowest price, or nil
// for no records.
func Cheapest(records []models.ProductRecord) *models.ProductRecord {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]models.ProductRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	best := sorted[0]
	return &best
}
