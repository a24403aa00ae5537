package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/redis/go-redis/v9"
)

const EventTypeReportGenerated = "PRICE_REPORT_GENERATED"

// RedisClient is the subset of the redis client the publisher uses.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// ReportGeneratedPayload summarizes a written report for stream consumers.
type ReportGeneratedPayload struct {
	EventID      string                `json:"event_id"`
	EventType    string                `json:"event_type"`
	RunID        string                `json:"run_id"`
	Timestamp    time.Time             `json:"timestamp"`
	Title        string                `json:"title"`
	Currency     string                `json:"currency"`
	Filters      models.SearchFilter   `json:"filters"`
	ProductCount int                   `json:"product_count"`
	BestItem     *models.ProductRecord `json:"best_item"`
	ReportPath   string                `json:"report_path"`
}

// Publisher appends report events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		now:    time.Now,
		logger: logger.With("component", "publisher"),
	}
}

// PublishReport adds one PRICE_REPORT_GENERATED entry and returns its stream ID.
func (p *Publisher) PublishReport(ctx context.Context, runID uuid.UUID, report *models.Report, path string) (string, error) {
	payload := ReportGeneratedPayload{
		EventID:      uuid.NewString(),
		EventType:    EventTypeReportGenerated,
		RunID:        runID.String(),
		Timestamp:    p.now().UTC(),
		Title:        report.Title,
		Currency:     report.Currency,
		Filters:      report.Filters,
		ProductCount: len(report.Products),
		BestItem:     report.BestItem,
		ReportPath:   path,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      EventTypeReportGenerated,
			"event_id":  payload.EventID,
			"run_id":    payload.RunID,
			"title":     report.Title,
			"timestamp": fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("report event published",
		"stream", p.stream,
		"stream_id", id,
		"run_id", payload.RunID,
		"title", report.Title)

	return id, nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
