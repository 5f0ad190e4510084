package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smookymolina/formulario-doxx/internal/domain"
	"github.com/smookymolina/formulario-doxx/internal/media"
	"github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

type fakeBlobs struct {
	saved   map[string][]byte
	saveErr error
}

func (f *fakeBlobs) Save(name string, data []byte) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = data
	return "/store/" + name, nil
}

type loggedEvent struct {
	SessionID string
	Type      string
	Data      map[string]any
}

type fakeRecorder struct {
	events    []loggedEvent
	recorded  []postgres.VideoMeta
	nextID    int64
	recordErr error
}

func (f *fakeRecorder) RecordSubmission(_ context.Context, _ *domain.Submission, v postgres.VideoMeta) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.recorded = append(f.recorded, v)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRecorder) LogEvent(_ context.Context, sessionID, eventType string, data map[string]any, _, _ string) error {
	f.events = append(f.events, loggedEvent{SessionID: sessionID, Type: eventType, Data: data})
	return nil
}

func newSubmission() *domain.Submission {
	return &domain.Submission{
		SessionID:     "sess-1",
		Email:         "ana@example.com",
		VideoMetadata: domain.VideoMetadata{Type: "video/webm", Duration: 12.5},
	}
}

func TestSubmitSuccess(t *testing.T) {
	blobs := &fakeBlobs{}
	rec := &fakeRecorder{}
	p := NewPipeline(blobs, rec)

	payload := []byte("video-bytes")
	id, err := p.Submit(context.Background(), newSubmission(), Upload{Filename: "clip.webm", Data: payload}, ClientInfo{IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// Asset stored under the derived name with both digests recorded.
	want := media.ComputeDigests(payload)
	require.Len(t, rec.recorded, 1)
	meta := rec.recorded[0]
	assert.Equal(t, want.MD5, meta.MD5)
	assert.Equal(t, want.SHA256, meta.SHA256)
	assert.Equal(t, int64(len(payload)), meta.Size)
	assert.Equal(t, "video/webm", meta.MimeType)
	assert.Contains(t, blobs.saved, meta.Filename)

	// started then success, with the new id echoed in the success event.
	require.Len(t, rec.events, 2)
	assert.Equal(t, postgres.EventSubmissionStarted, rec.events[0].Type)
	assert.Equal(t, postgres.EventSubmissionSuccess, rec.events[1].Type)
	assert.Equal(t, int64(1), rec.events[1].Data["respuesta_id"])
}

func TestSubmitRejectsBadUploads(t *testing.T) {
	cases := []struct {
		name    string
		up      Upload
		wantErr error
	}{
		{"missing file", Upload{Filename: "clip.webm"}, ErrNoVideo},
		{"empty filename", Upload{Data: []byte("x")}, ErrEmptyFilename},
		{"disallowed extension", Upload{Filename: "clip.avi", Data: []byte("x")}, ErrBadFileType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blobs := &fakeBlobs{}
			rec := &fakeRecorder{}
			p := NewPipeline(blobs, rec)

			_, err := p.Submit(context.Background(), newSubmission(), tc.up, ClientInfo{})
			require.ErrorIs(t, err, tc.wantErr)
			assert.True(t, IsClientError(err))

			// Client errors write nothing: no asset, no rows, no error event.
			assert.Empty(t, blobs.saved)
			assert.Empty(t, rec.recorded)
			require.Len(t, rec.events, 1)
			assert.Equal(t, postgres.EventSubmissionStarted, rec.events[0].Type)
		})
	}
}

func TestSubmitBlobFailureSkipsRelationalWrite(t *testing.T) {
	blobs := &fakeBlobs{saveErr: errors.New("disk full")}
	rec := &fakeRecorder{}
	p := NewPipeline(blobs, rec)

	_, err := p.Submit(context.Background(), newSubmission(), Upload{Filename: "clip.webm", Data: []byte("x")}, ClientInfo{})
	require.Error(t, err)
	assert.False(t, IsClientError(err))
	assert.Empty(t, rec.recorded)
}

func TestSubmitRecordFailureLogsErrorEvent(t *testing.T) {
	blobs := &fakeBlobs{}
	rec := &fakeRecorder{recordErr: errors.New("constraint violation")}
	p := NewPipeline(blobs, rec)

	_, err := p.Submit(context.Background(), newSubmission(), Upload{Filename: "clip.webm", Data: []byte("x")}, ClientInfo{})
	require.Error(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, postgres.EventSubmissionError, rec.events[1].Type)
	// The orphaned asset stays in the store; accepted trade-off.
	assert.Len(t, blobs.saved, 1)
}

func TestSubmitDefaultsMimeType(t *testing.T) {
	rec := &fakeRecorder{}
	p := NewPipeline(&fakeBlobs{}, rec)

	sub := newSubmission()
	sub.VideoMetadata = domain.VideoMetadata{}
	_, err := p.Submit(context.Background(), sub, Upload{Filename: "clip.mp4", Data: []byte("x")}, ClientInfo{})
	require.NoError(t, err)
	require.Len(t, rec.recorded, 1)
	assert.Equal(t, "video/webm", rec.recorded[0].MimeType)
}
