package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// SnapshotArchiveStore is the slice of the book store the archiver needs:
// time-ranged reads plus the exact-row deletion that completes a batch.
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.BookSnapshot, error)
	DeleteByID(ctx context.Context, ids []int64) (int64, error)
}

// archiveBatchSize bounds how many snapshot rows are pulled into memory per
// upload.
const archiveBatchSize = 10000

// multipartThreshold is the payload size above which a batch is uploaded via
// the SDK's multipart manager instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// SnapshotArchiver implements domain.SnapshotArchiver by querying aged
// order-book snapshots, serializing them to JSONL, uploading the result to
// S3, and then deleting the archived rows from the primary store.
type SnapshotArchiver struct {
	writer domain.BlobWriter
	store  SnapshotArchiveStore
}

var _ domain.SnapshotArchiver = (*SnapshotArchiver)(nil)

// NewSnapshotArchiver creates a new SnapshotArchiver.
func NewSnapshotArchiver(writer domain.BlobWriter, store SnapshotArchiveStore) *SnapshotArchiver {
	return &SnapshotArchiver{
		writer: writer,
		store:  store,
	}
}

// ArchiveSnapshots uploads every snapshot created strictly before the cutoff
// to archive/orderbooks/YYYY-MM.jsonl and removes the uploaded rows. Each
// batch is deleted by the ids it actually uploaded, only after its upload
// succeeded, so a failed run leaves the primary store intact and no row is
// ever archived twice.
func (a *SnapshotArchiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	var total int64

	for part := 0; ; part++ {
		snaps, err := a.store.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots query: %w", err)
		}
		if len(snaps) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(snaps)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
		}

		path := archivePath("orderbooks", before, part)
		if err := a.upload(ctx, path, buf); err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
		}

		// The batch is safe in cold storage; drop exactly its rows.
		ids := make([]int64, len(snaps))
		for i := range snaps {
			ids[i] = snaps[i].ID
		}
		deleted, err := a.store.DeleteByID(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
		}
		total += deleted

		if len(snaps) < archiveBatchSize {
			return total, nil
		}
	}
}

// upload sends one JSONL payload, switching to a multipart upload for large
// batches.
func (a *SnapshotArchiver) upload(ctx context.Context, path string, buf []byte) error {
	if len(buf) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), int64(len(buf)/4))
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time:
//
//	archive/orderbooks/2026-08.jsonl
//	archive/orderbooks/2026-08.001.jsonl  (overflow parts)
func archivePath(kind string, before time.Time, part int) string {
	if part == 0 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
	}
	return fmt.Sprintf("archive/%s/%s.%03d.jsonl", kind, before.Format("2006-01"), part)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
