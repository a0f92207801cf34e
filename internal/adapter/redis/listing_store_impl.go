package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/pkg/metrics"
)

const (
	partitionSuffix = ":items"
	backupSuffix    = ":backup"
	scanBatch       = 100

	// DefaultPartitionTTL is refreshed on every partition write.
	DefaultPartitionTTL = 24 * time.Hour
)

// ListingStoreImpl keeps one JSON array of listings per partition key "{name}:items".
type ListingStoreImpl struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewListingStore creates a new instance of ListingStoreImpl.
func NewListingStore(client redis.Cmdable, ttl time.Duration) *ListingStoreImpl {
	if ttl <= 0 {
		ttl = DefaultPartitionTTL
	}
	return &ListingStoreImpl{client: client, ttl: ttl}
}

func partitionKey(name string) string { return name + partitionSuffix }

func backupKey(name string) string { return partitionKey(name) + backupSuffix }

func partitionName(key string) string {
	return strings.TrimSuffix(strings.TrimSuffix(key, backupSuffix), partitionSuffix)
}

// WritePartition replaces the partition with the given listings and refreshes its TTL.
func (s *ListingStoreImpl) WritePartition(ctx context.Context, name string, listings []entity.Listing) error {
	if listings == nil {
		listings = []entity.Listing{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", name, err)
	}
	return s.client.SetEx(ctx, partitionKey(name), data, s.ttl).Err()
}

// ReadPartition returns the listings of one partition; a missing partition is empty.
func (s *ListingStoreImpl) ReadPartition(ctx context.Context, name string) ([]entity.Listing, error) {
	raw, err := s.client.Get(ctx, partitionKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return []entity.Listing{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePartition(partitionKey(name), raw)
}

// ReadAll concatenates every live partition in key order.
func (s *ListingStoreImpl) ReadAll(ctx context.Context) ([]entity.Listing, error) {
	partitions, err := s.readLive(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]entity.Listing, 0)
	for _, p := range partitions {
		all = append(all, p.listings...)
	}
	return all, nil
}

func (s *ListingStoreImpl) DeletePartition(ctx context.Context, name string) error {
	return s.client.Del(ctx, partitionKey(name)).Err()
}

// ClearAll deletes live partitions only.
func (s *ListingStoreImpl) ClearAll(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx, "*"+partitionSuffix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return int(n), err
}

func (s *ListingStoreImpl) Stats(ctx context.Context) (*entity.StoreStats, error) {
	partitions, err := s.readLive(ctx)
	if err != nil {
		return nil, err
	}
	stats := &entity.StoreStats{PerPartition: make(map[string]int, len(partitions))}
	for _, p := range partitions {
		stats.PerPartition[p.name] = len(p.listings)
		stats.TotalListings += len(p.listings)
	}
	stats.PartitionCount = len(partitions)
	metrics.StorePartitions.Set(float64(stats.PartitionCount))
	return stats, nil
}

// BackupAll copies each live partition to "{name}:items:backup" with the partition TTL.
func (s *ListingStoreImpl) BackupAll(ctx context.Context) ([]string, error) {
	keys, err := s.scanKeys(ctx, "*"+partitionSuffix)
	if err != nil {
		return nil, err
	}
	created := make([]string, 0, len(keys))
	for _, key := range keys {
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("read %s for backup: %w", key, err)
		}
		bk := key + backupSuffix
		if err := s.client.SetEx(ctx, bk, raw, s.ttl).Err(); err != nil {
			return created, fmt.Errorf("write backup %s: %w", bk, err)
		}
		created = append(created, bk)
	}
	return created, nil
}

// RestoreFromBackup overwrites every live partition that has a backup copy.
// Partitions without a backup are not touched.
func (s *ListingStoreImpl) RestoreFromBackup(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx, "*"+partitionSuffix+backupSuffix)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, bk := range keys {
		raw, err := s.client.Get(ctx, bk).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("read backup %s: %w", bk, err)
		}
		live := strings.TrimSuffix(bk, backupSuffix)
		if err := s.client.SetEx(ctx, live, raw, s.ttl).Err(); err != nil {
			return restored, fmt.Errorf("restore %s: %w", live, err)
		}
		restored++
	}
	return restored, nil
}

func (s *ListingStoreImpl) DeleteBackups(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx, "*"+partitionSuffix+backupSuffix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return int(n), err
}

type partition struct {
	name     string
	listings []entity.Listing
}

func (s *ListingStoreImpl) readLive(ctx context.Context) ([]partition, error) {
	keys, err := s.scanKeys(ctx, "*"+partitionSuffix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	partitions := make([]partition, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		listings, err := decodePartition(keys[i], raw)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, partition{name: partitionName(keys[i]), listings: listings})
	}
	return partitions, nil
}

func (s *ListingStoreImpl) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	sort.Strings(keys)
	// SCAN may return a key more than once
	return slices.Compact(keys), nil
}

func decodePartition(key, raw string) ([]entity.Listing, error) {
	var listings []entity.Listing
	if err := json.Unmarshal([]byte(raw), &listings); err != nil {
		return nil, fmt.Errorf("decode partition %s: %w", key, err)
	}
	if listings == nil {
		listings = []entity.Listing{}
	}
	return listings, nil
}
