package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tradeway/forecast-service/internal/models"
)

// Querier defines the database operations needed for read-only aggregation.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AggregateFilter narrows the orders that feed a daily series. Category is
// matched case-insensitively. The zero value selects every order.
type AggregateFilter struct {
	Category string
	Since    *time.Time
}

const dailyAggregatesQuery = `
SELECT date_trunc('day', o.created_at AT TIME ZONE 'UTC') AS day,
       AVG(o.unit_price)::float8 AS avg_price,
       COUNT(*)::bigint AS order_count,
       COALESCE(SUM(o.quantity), 0)::bigint AS total_volume
FROM orders o
JOIN products p ON p.id = o.product_id
WHERE ($1::text = '' OR lower(p.category) = lower($1))
  AND ($2::timestamptz IS NULL OR o.created_at >= $2)
GROUP BY day
ORDER BY day ASC`

const categoriesQuery = `SELECT DISTINCT category FROM products ORDER BY category ASC`

// OrderAggregateRepository reads per-day order statistics.
type OrderAggregateRepository struct {
	db Querier
}

func NewOrderAggregateRepository(db Querier) *OrderAggregateRepository {
	return &OrderAggregateRepository{db: db}
}

// DailyAggregates returns one row per UTC day that has at least one order,
// in ascending day order. Days without orders are absent, not zero-filled.
func (r *OrderAggregateRepository) DailyAggregates(ctx context.Context, filter AggregateFilter) ([]models.DailyAggregate, error) {
	var since any
	if filter.Since != nil {
		since = filter.Since.UTC()
	}

	rows, err := r.db.Query(ctx, dailyAggregatesQuery, filter.Category, since)
	if err != nil {
		RecordDatabaseError(ctx, err, "daily_aggregates")
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]models.DailyAggregate, 0)
	for rows.Next() {
		var a models.DailyAggregate
		if err := rows.Scan(&a.Day, &a.AvgPrice, &a.OrderCount, &a.TotalVolume); err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		a.Day = a.Day.UTC()
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily aggregates: %w", err)
	}

	AddDatabaseSpanAttributes(ctx, "orders", int64(len(aggregates)))
	return aggregates, nil
}

// Categories lists the distinct product categories.
func (r *OrderAggregateRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, categoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
