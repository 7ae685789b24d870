package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// SnapshotArchiver moves aged order-book snapshots to cold storage.
type SnapshotArchiver interface {
	// ArchiveSnapshots uploads all snapshots created strictly before the
	// cutoff and removes them from the primary store. It returns the number
	// of archived rows.
	ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error)
}
