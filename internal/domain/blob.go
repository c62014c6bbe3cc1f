package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// TickArchive is the document written to object storage after each scan.
type TickArchive struct {
	TickID        string        `json:"tick_id"`
	StartedAt     time.Time     `json:"started_at"`
	Snapshots     []Snapshot    `json:"snapshots"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Archiver stores a tick's output in cold storage.
type Archiver interface {
	ArchiveTick(ctx context.Context, tick TickArchive) (string, error)
}
