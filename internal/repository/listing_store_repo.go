package repository

import (
	"context"

	"github.com/user/listing-aggregator/internal/entity"
)

// CorpusReader is the read side of the listing store used by search.
type CorpusReader interface {
	// ReadAll concatenates every live (non-backup) partition.
	ReadAll(ctx context.Context) ([]entity.Listing, error)
}

// PartitionWriter replaces one partition's contents.
type PartitionWriter interface {
	WritePartition(ctx context.Context, name string, listings []entity.Listing) error
}

// SnapshotStore stages and restores backup copies of live partitions.
type SnapshotStore interface {
	// BackupAll copies every live partition to its backup key and returns the created keys.
	BackupAll(ctx context.Context) ([]string, error)
	// RestoreFromBackup overwrites each live partition that has a backup copy.
	// Partitions without a backup are left untouched.
	RestoreFromBackup(ctx context.Context) (int, error)
	DeleteBackups(ctx context.Context) (int, error)
}

// ListingStore is the partitioned TTL cache holding the live corpus.
type ListingStore interface {
	CorpusReader
	PartitionWriter
	SnapshotStore
	ReadPartition(ctx context.Context, name string) ([]entity.Listing, error)
	DeletePartition(ctx context.Context, name string) error
	// ClearAll removes every live partition. Backups are kept.
	ClearAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*entity.StoreStats, error)
}
