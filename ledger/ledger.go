// Package ledger persists multipart upload state: one session row per
// upload and one part row per acknowledged part. This is the only
// durable state in the gateway core; everything else is reconstructible
// from the backends or is a disposable cache.
package ledger

import (
	"context"
	"time"
)

// PartStatus marks the outcome of one part transfer.
type PartStatus string

const (
	PartStatusUploaded PartStatus = "uploaded"
	PartStatusError    PartStatus = "error"
)

// Part is a single acknowledged (or failed) upload part.
// Unique per (UploadID, PartNo); upserts are last-write-wins.
type Part struct {
	ID       string `json:"id"`
	UploadID string `json:"upload_id"`
	PartNo   int    `json:"part_no"`

	ByteStart int64 `json:"byte_start"`
	ByteEnd   int64 `json:"byte_end"`
	Size      int64 `json:"size"`

	Checksum     string `json:"checksum,omitempty"`
	ChecksumAlgo string `json:"checksum_algo,omitempty"`

	StorageType    string `json:"storage_type"`
	ProviderPartID string `json:"provider_part_id,omitempty"`
	ProviderMeta   string `json:"provider_meta,omitempty"`

	Status       PartStatus `json:"status"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is one multipart upload in progress. Sessions left neither
// completed nor aborted are reclaimed by the age sweep on UpdatedAt.
type Session struct {
	ID      string `json:"id"`
	MountID string `json:"mount_id"`
	Path    string `json:"path"`

	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	PartSize  int64  `json:"part_size"`
	PartCount int    `json:"part_count"`

	StorageType      string `json:"storage_type"`
	Strategy         string `json:"strategy"`
	ProviderUploadID string `json:"provider_upload_id,omitempty"`
	ProviderMeta     string `json:"provider_meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence contract for sessions and parts.
type Store interface {
	// Open is part of the lifecycle behaviour and prepares the store.
	Open(ctx context.Context) error
	// Close releases the underlying store.
	Close(ctx context.Context) error

	// CreateSession records a newly initialized upload session.
	CreateSession(ctx context.Context, session *Session) error

	// GetSession returns the session or data.ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)

	// TouchSession renews the session's UpdatedAt.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// ListSessionsByPath returns all open sessions targeting the path.
	ListSessionsByPath(ctx context.Context, mountID, path string) ([]*Session, error)

	// DeleteSessions removes the sessions and all their parts.
	DeleteSessions(ctx context.Context, ids []string) error

	// UpsertPart records a part acknowledgement. Conflicts on
	// (UploadID, PartNo) resolve last-write-wins.
	UpsertPart(ctx context.Context, part *Part) error

	// ListParts returns the recorded parts of a session, ordered by
	// part number.
	ListParts(ctx context.Context, uploadID string) ([]*Part, error)

	// DeleteParts removes all parts of the given sessions.
	DeleteParts(ctx context.Context, uploadIDs []string) error

	// SweepExpired deletes sessions (and their parts) whose UpdatedAt
	// is older than the cutoff. Returns the number of reclaimed
	// sessions.
	SweepExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// deleteChunkSize keeps batch deletes under backend parameter limits
// (sqlite caps bound variables at 999).
const deleteChunkSize = 500

// Chunk splits ids into slices of at most deleteChunkSize.
func Chunk(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}

	var chunks [][]string
	for len(ids) > deleteChunkSize {
		chunks = append(chunks, ids[:deleteChunkSize])
		ids = ids[deleteChunkSize:]
	}

	return append(chunks, ids)
}
