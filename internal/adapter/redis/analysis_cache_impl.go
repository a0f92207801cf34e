package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/listing-aggregator/internal/entity"
)

const analysisKeyPrefix = "ai:analysis:"

// AnalysisCacheImpl stores ranking responses under "ai:analysis:{query}:{corpusSize}".
type AnalysisCacheImpl struct {
	client redis.Cmdable
}

// NewAnalysisCache creates a new instance of AnalysisCacheImpl.
func NewAnalysisCache(client redis.Cmdable) *AnalysisCacheImpl {
	return &AnalysisCacheImpl{client: client}
}

func analysisKey(query string, corpusSize int) string {
	return fmt.Sprintf("%s%s:%d", analysisKeyPrefix, query, corpusSize)
}

func (c *AnalysisCacheImpl) Get(ctx context.Context, query string, corpusSize int) (*entity.Analysis, bool, error) {
	raw, err := c.client.Get(ctx, analysisKey(query, corpusSize)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var analysis entity.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &analysis, true, nil
}

func (c *AnalysisCacheImpl) Set(ctx context.Context, query string, corpusSize int, analysis *entity.Analysis, ttl time.Duration) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return c.client.SetEx(ctx, analysisKey(query, corpusSize), data, ttl).Err()
}

// Clear removes every cached analysis and returns how many were deleted.
func (c *AnalysisCacheImpl) Clear(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	n, err := c.client.Del(ctx, keys...).Result()
	return int(n), err
}

func (c *AnalysisCacheImpl) Count(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	return len(keys), err
}

func (c *AnalysisCacheImpl) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, analysisKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
