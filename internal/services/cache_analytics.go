package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	overallCategory  = "overall"
	analyticsKey     = "cache:analytics:stats"
	analyticsKeepTTL = 24 * time.Hour
)

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

func (s *CacheStats) record(hit bool, now time.Time) {
	if hit {
		s.Hits++
	} else {
		s.Misses++
	}
	s.TotalOps++
	s.HitRate = float64(s.Hits) / float64(s.TotalOps)
	s.LastUpdated = now
}

// CacheMetrics combines per-target hit statistics with Redis server state.
type CacheMetrics struct {
	Overall    CacheStats            `json:"overall"`
	ByCategory map[string]CacheStats `json:"by_category"`
	RedisInfo  map[string]string     `json:"redis_info,omitempty"`
	KeyCount   int64                 `json:"key_count"`
}

// CacheAnalyticsService tracks forecast cache hit rates. Categories are
// forecast targets; an "overall" bucket aggregates all of them.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	stats       map[string]*CacheStats
	mu          sync.RWMutex
	now         func() time.Time
}

// NewCacheAnalyticsService creates a new cache analytics service. A nil
// client disables the Redis-backed parts of GetMetrics and reporting.
func NewCacheAnalyticsService(redisClient *redis.Client) *CacheAnalyticsService {
	return &CacheAnalyticsService{
		redisClient: redisClient,
		stats:       make(map[string]*CacheStats),
		now:         time.Now,
	}
}

// RecordHit records a cache hit for the given category
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, true)
}

// RecordMiss records a cache miss for the given category
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, false)
}

func (c *CacheAnalyticsService) record(category string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range []string{category, overallCategory} {
		if c.stats[key] == nil {
			c.stats[key] = &CacheStats{}
		}
		c.stats[key].record(hit, now)
		if category == overallCategory {
			break
		}
	}
}

// GetStats returns cache statistics for a specific category
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns all cache statistics
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns hit statistics plus whatever Redis reports about
// itself. Redis INFO is best effort; DBSIZE failures are returned.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	allStats := c.GetAllStats()

	metrics := &CacheMetrics{
		Overall:    allStats[overallCategory],
		ByCategory: allStats,
	}
	if c.redisClient == nil {
		return metrics, nil
	}

	if info, err := c.redisClient.Info(ctx, "memory", "clients").Result(); err == nil {
		metrics.RedisInfo = parseRedisInfo(info)
	} else {
		logrus.WithError(err).Debug("Redis INFO unavailable")
	}

	keyCount, err := c.redisClient.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	metrics.KeyCount = keyCount

	return metrics, nil
}

// parseRedisInfo parses Redis INFO command output
func parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if ok {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return result
}

// ResetStats resets all cache statistics
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting persists a stats snapshot to Redis every interval
// until ctx is cancelled.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if c.redisClient == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.reportStats(ctx); err != nil {
					logrus.WithError(err).Warn("Failed to persist cache analytics")
				}
			}
		}
	}()
}

func (c *CacheAnalyticsService) reportStats(ctx context.Context) error {
	statsJSON, err := json.Marshal(c.GetAllStats())
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, analyticsKey, statsJSON, analyticsKeepTTL).Err()
}
