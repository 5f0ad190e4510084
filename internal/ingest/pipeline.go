// Package ingest orchestrates one submission: audit events, upload
// checks, content-store write, and the relational transaction, in that
// order.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/smookymolina/formulario-doxx/internal/domain"
	"github.com/smookymolina/formulario-doxx/internal/logging"
	"github.com/smookymolina/formulario-doxx/internal/media"
	"github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

// Client input errors. These reject the request before anything is
// written anywhere.
var (
	ErrNoVideo       = errors.New("no video file received")
	ErrEmptyFilename = errors.New("empty video filename")
	ErrBadFileType   = errors.New("video file type not allowed")
)

// BlobStore is the content-store surface the pipeline needs.
type BlobStore interface {
	Save(name string, data []byte) (string, error)
}

// Recorder is the relational surface: the all-or-nothing submission write
// plus the independent audit log.
type Recorder interface {
	RecordSubmission(ctx context.Context, sub *domain.Submission, video postgres.VideoMeta) (int64, error)
	LogEvent(ctx context.Context, sessionID, eventType string, data map[string]any, ip, userAgent string) error
}

// Upload is the binary part of the multipart request, already read in
// full (the transport layer enforces the size cap).
type Upload struct {
	Filename string
	Data     []byte
}

// ClientInfo is recorded on audit events only.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type Pipeline struct {
	blobs BlobStore
	rec   Recorder
}

func NewPipeline(blobs BlobStore, rec Recorder) *Pipeline {
	return &Pipeline{blobs: blobs, rec: rec}
}

// Submit runs the full ingestion for an already-validated payload and
// returns the new submission id.
//
// The asset is written to the content store before the relational
// transaction opens. If the transaction then fails, the file is left
// behind; that orphan is logged, not cleaned up.
func (p *Pipeline) Submit(ctx context.Context, sub *domain.Submission, up Upload, client ClientInfo) (int64, error) {
	log := logging.Ctx(ctx)

	p.logEvent(ctx, sub.SessionID, postgres.EventSubmissionStarted,
		map[string]any{"email": sub.Email}, client)

	if len(up.Data) == 0 {
		return 0, ErrNoVideo
	}
	if up.Filename == "" {
		return 0, ErrEmptyFilename
	}
	if !media.Allowed(up.Filename) {
		return 0, fmt.Errorf("%w: %q", ErrBadFileType, media.Extension(up.Filename))
	}

	digests := media.ComputeDigests(up.Data)
	name := media.ObjectName(sub.SessionID, digests.MD5, up.Filename)

	path, err := p.blobs.Save(name, up.Data)
	if err != nil {
		return 0, fmt.Errorf("store video: %w", err)
	}

	mimeType := sub.VideoMetadata.Type
	if mimeType == "" {
		mimeType = "video/webm"
	}

	id, err := p.rec.RecordSubmission(ctx, sub, postgres.VideoMeta{
		Filename:   name,
		Path:       path,
		Size:       int64(len(up.Data)),
		MimeType:   mimeType,
		Duration:   sub.VideoMetadata.Duration,
		RecordedAt: sub.VideoMetadata.RecordedAt,
		MD5:        digests.MD5,
		SHA256:     digests.SHA256,
	})
	if err != nil {
		p.logEvent(ctx, sub.SessionID, postgres.EventSubmissionError,
			map[string]any{"error": err.Error()}, client)
		log.Warn().Str("session_id", sub.SessionID).Str("file", path).
			Msg("submission rolled back, stored asset orphaned")
		return 0, fmt.Errorf("record submission: %w", err)
	}

	p.logEvent(ctx, sub.SessionID, postgres.EventSubmissionSuccess,
		map[string]any{"respuesta_id": id, "email": sub.Email}, client)

	log.Info().Int64("respuesta_id", id).Str("session_id", sub.SessionID).
		Int64("video_bytes", int64(len(up.Data))).Msg("submission stored")
	return id, nil
}

// IsClientError reports whether err should surface as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoVideo) || errors.Is(err, ErrEmptyFilename) || errors.Is(err, ErrBadFileType)
}

// logEvent is best-effort: the audit trail must never fail a request.
func (p *Pipeline) logEvent(ctx context.Context, sessionID, eventType string, data map[string]any, client ClientInfo) {
	if err := p.rec.LogEvent(ctx, sessionID, eventType, data, client.IP, client.UserAgent); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event_type", eventType).Msg("event log write failed")
	}
}
