package store

import (
	"context"

	"github.com/nulzo/anthropic-gateway/internal/store/model"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Usage() UsageRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type UsageRepository interface {
	// Record stores one completed request's token counts.
	Record(ctx context.Context, rec *model.UsageRecord) error
	// DailyStats returns aggregated usage grouped by day, newest first.
	DailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
