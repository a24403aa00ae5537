package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/amazon-price-tracker/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	run_id      UUID NOT NULL,
	title       TEXT NOT NULL,
	asin        TEXT NOT NULL,
	url         TEXT NOT NULL,
	product     TEXT NOT NULL,
	seller      TEXT NOT NULL,
	price       NUMERIC(12, 2) NOT NULL,
	currency    TEXT NOT NULL,
	is_best     BOOLEAN NOT NULL DEFAULT FALSE,
	captured_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_asin ON price_snapshots (asin, captured_at);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_run ON price_snapshots (run_id);
`

const insertSnapshot = `
	INSERT INTO price_snapshots (run_id, title, asin, url, product, seller, price, currency, is_best, captured_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Snapshot is one product price observed during a run.
type Snapshot struct {
	RunID      uuid.UUID `db:"run_id" json:"run_id"`
	Title      string    `db:"title" json:"title"`
	ASIN       string    `db:"asin" json:"asin"`
	URL        string    `db:"url" json:"url"`
	Product    string    `db:"product" json:"product"`
	Seller     string    `db:"seller" json:"seller"`
	Price      float64   `db:"price" json:"price"`
	Currency   string    `db:"currency" json:"currency"`
	IsBest     bool      `db:"is_best" json:"is_best"`
	CapturedAt time.Time `db:"captured_at" json:"captured_at"`
}

// HistoryRepository keeps every report's products as price snapshots.
type HistoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewHistoryRepository(db *DB, logger *slog.Logger) *HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRepository{
		db:     db,
		logger: logger.With("component", "history"),
	}
}

func (r *HistoryRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create price_snapshots: %w", err)
	}
	return nil
}

// SaveReport stores the report's products in one transaction.
func (r *HistoryRepository) SaveReport(ctx context.Context, runID uuid.UUID, report *models.Report) error {
	snapshots := Snapshots(runID, report)
	if len(snapshots) == 0 {
		r.logger.Debug("nothing to record", "run_id", runID)
		return nil
	}

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, snapshotBatch(snapshots))
		defer results.Close()

		for range snapshots {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert snapshot: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return err
	}

	r.logger.Info("recorded price snapshots", "run_id", runID, "count", len(snapshots))
	return nil
}

// LatestPrices returns the most recent snapshot per product for a report title.
func (r *HistoryRepository) LatestPrices(ctx context.Context, title string) ([]Snapshot, error) {
	query := `
		SELECT DISTINCT ON (asin) run_id, title, asin, url, product, seller, price::float8, currency, is_best, captured_at
		FROM price_snapshots
		WHERE title = $1
		ORDER BY asin, captured_at DESC`

	rows, err := r.db.pool.Query(ctx, query, title)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, pgx.RowToStructByName[Snapshot])
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return snapshots, nil
}

// Snapshots flattens a report into one snapshot per product.
func Snapshots(runID uuid.UUID, report *models.Report) []Snapshot {
	if report == nil || len(report.Products) == 0 {
		return nil
	}

	captured := report.GeneratedAt
	if captured.IsZero() {
		captured = time.Now()
	}

	best := bestIndex(report)

	snapshots := make([]Snapshot, 0, len(report.Products))
	for i, p := range report.Products {
		snapshots = append(snapshots, Snapshot{
			RunID:      runID,
			Title:      report.Title,
			ASIN:       p.ASIN,
			URL:        p.URL,
			Product:    p.Title,
			Seller:     p.Seller,
			Price:      p.Price,
			Currency:   report.Currency,
			IsBest:     i == best,
			CapturedAt: captured.UTC(),
		})
	}
	return snapshots
}

// bestIndex finds the first product equal to the report's best item, or -1.
// Duplicate result links can produce several identical records.
func bestIndex(report *models.Report) int {
	if report.BestItem == nil {
		return -1
	}
	for i, p := range report.Products {
		if p == *report.BestItem {
			return i
		}
	}
	return -1
}

func snapshotBatch(snapshots []Snapshot) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(insertSnapshot,
			s.RunID, s.Title, s.ASIN, s.URL, s.Product, s.Seller, s.Price, s.Currency, s.IsBest, s.CapturedAt,
		)
	}
	return batch
}
