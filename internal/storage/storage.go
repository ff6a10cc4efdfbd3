package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ProgramArchive stores immutable markdown snapshots of program versions and
// hands out temporary export links. The archive is best-effort from the
// caller's point of view: a failed put never blocks saving the version itself.
type ProgramArchive interface {
	// PutMarkdown writes one program version's markdown under the given key.
	PutMarkdown(ctx context.Context, objectKey string, markdown string) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for downloading an archived snapshot.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes a snapshot from the archive.
	DeleteObject(ctx context.Context, objectKey string) error
}
