package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// multipartWriter is implemented by writers that can split large uploads.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// TickArchiver implements domain.Archiver by writing each tick as one JSON
// document under prefix/YYYY/MM/DD/HHMMSSZ.json.
type TickArchiver struct {
	writer domain.BlobWriter
	prefix string
	logger *slog.Logger
}

var _ domain.Archiver = (*TickArchiver)(nil)

// NewArchiver creates a TickArchiver. An empty prefix means "snapshots".
func NewArchiver(writer domain.BlobWriter, prefix string, logger *slog.Logger) *TickArchiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "snapshots"
	}
	return &TickArchiver{
		writer: writer,
		prefix: prefix,
		logger: logger.With(slog.String("component", "s3_archiver")),
	}
}

// ArchiveTick uploads tick and returns the object key. Payloads above the
// multipart threshold go through the upload manager when the writer supports
// it.
func (a *TickArchiver) ArchiveTick(ctx context.Context, tick domain.TickArchive) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tick); err != nil {
		return "", fmt.Errorf("s3blob: marshal tick %s: %w", tick.TickID, err)
	}

	key := archiveKey(a.prefix, tick)
	var err error
	if mw, ok := a.writer.(multipartWriter); ok && int64(buf.Len()) > minPartSize {
		err = mw.PutMultipart(ctx, key, &buf, "application/json", minPartSize)
	} else {
		err = a.writer.Put(ctx, key, &buf, "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive tick %s: %w", tick.TickID, err)
	}

	a.logger.DebugContext(ctx, "tick archived",
		slog.String("key", key),
		slog.Int("snapshots", len(tick.Snapshots)),
		slog.Int("opportunities", len(tick.Opportunities)),
	)
	return key, nil
}

// archiveKey partitions archives by the tick's UTC start date.
//
//	snapshots/2026/10/17/153000Z.json
func archiveKey(prefix string, tick domain.TickArchive) string {
	t := tick.StartedAt.UTC()
	return path.Join(prefix, t.Format("2006/01/02"), t.Format("150405")+"Z.json")
}
