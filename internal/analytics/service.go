package analytics

import (
	"context"

	"github.com/nulzo/anthropic-gateway/internal/store"
	"github.com/nulzo/anthropic-gateway/internal/store/model"
)

const defaultDays = 7

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = defaultDays
	}
	return s.repo.Usage().DailyStats(ctx, days)
}
