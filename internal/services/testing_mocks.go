package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tradeway/forecast-service/internal/database"
	"github.com/tradeway/forecast-service/internal/models"
)

// MockAggregateSource implements AggregateSource for tests in this and
// dependent packages.
type MockAggregateSource struct {
	mock.Mock
}

func (m *MockAggregateSource) DailyAggregates(ctx context.Context, filter database.AggregateFilter) ([]models.DailyAggregate, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DailyAggregate), args.Error(1)
}

func (m *MockAggregateSource) Categories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
