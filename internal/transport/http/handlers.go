package transporthttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/smookymolina/formulario-doxx/internal/config"
	"github.com/smookymolina/formulario-doxx/internal/domain"
	"github.com/smookymolina/formulario-doxx/internal/ingest"
	"github.com/smookymolina/formulario-doxx/internal/logging"
	"github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

// maxPerPage caps the client-supplied page size on the admin listing.
const maxPerPage = 100

// Reader is the live read surface backing the query endpoints.
type Reader interface {
	Stats(ctx context.Context) (postgres.Stats, error)
	Dashboard(ctx context.Context) (postgres.Dashboard, error)
	ListSubmissions(ctx context.Context, page, perPage int) (postgres.ListingPage, error)
	SubmissionDetail(ctx context.Context, id int64) (postgres.Detail, error)
	VideoForSubmission(ctx context.Context, id int64) (postgres.VideoRow, error)
}

// Submitter runs the ingestion pipeline.
type Submitter interface {
	Submit(ctx context.Context, sub *domain.Submission, up ingest.Upload, client ingest.ClientInfo) (int64, error)
}

type ServerDeps struct {
	Cfg       config.Config
	Reader    Reader
	Submitter Submitter
}

type submitResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RespuestaID int64  `json:"respuestaId"`
	SessionID   string `json:"sessionId"`
}

// HandleSubmitForm accepts the multipart submission: a "datos" JSON field
// plus a "video" file field.
func (d *ServerDeps) HandleSubmitForm(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteProblem(w, http.StatusRequestEntityTooLarge, "upload too large",
				fmt.Sprintf("request body exceeds the %d byte limit", tooBig.Limit), nil)
			return
		}
		WriteProblem(w, http.StatusBadRequest, "invalid request", "could not parse multipart form: "+err.Error(), nil)
		return
	}

	raw := r.FormValue("datos")
	if raw == "" {
		WriteProblem(w, http.StatusBadRequest, "invalid request", "missing datos field", nil)
		return
	}

	var sub domain.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}

	if errs := domain.ValidateSubmission(&sub); len(errs) > 0 {
		prob := map[string][]string{}
		for _, fe := range errs {
			prob[fe.Field] = append(prob[fe.Field], fe.Msg)
		}
		WriteProblem(w, http.StatusBadRequest, "validation failed", "one or more fields are invalid", prob)
		return
	}

	up, err := readUpload(r)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid request", err.Error(), nil)
		return
	}

	client := ingest.ClientInfo{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	id, err := d.Submitter.Submit(r.Context(), &sub, up, client)
	if err != nil {
		if ingest.IsClientError(err) {
			WriteProblem(w, http.StatusBadRequest, "invalid upload", err.Error(), nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("submission failed")
		WriteProblem(w, http.StatusInternalServerError, "submission failed", "could not store the submission", nil)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:     true,
		Message:     "Formulario guardado exitosamente",
		RespuestaID: id,
		SessionID:   sub.SessionID,
	})
}

// readUpload pulls the video part out of the form. A missing part is not
// an error here; the pipeline owns the reject so the taxonomy lives in
// one place.
func readUpload(r *http.Request) (ingest.Upload, error) {
	file, header, err := r.FormFile("video")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return ingest.Upload{}, nil
		}
		return ingest.Upload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.Upload{}, err
	}
	return ingest.Upload{Filename: header.Filename, Data: data}, nil
}

func (d *ServerDeps) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"database":   redactDSN(d.Cfg.PostgresDSN),
		"videos_dir": d.Cfg.VideosDir,
	})
}

func (d *ServerDeps) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := d.Reader.Stats(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("stats query failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not compute stats", nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (d *ServerDeps) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := d.Reader.Dashboard(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("dashboard query failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not compute dashboard", nil)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (d *ServerDeps) HandleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := positiveIntParam(q.Get("page"), 1)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "page must be a positive integer", nil)
		return
	}
	perPage, err := positiveIntParam(q.Get("per_page"), d.Cfg.PageSize)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "per_page must be a positive integer", nil)
		return
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	listing, err := d.Reader.ListSubmissions(r.Context(), page, perPage)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("listing query failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not list submissions", nil)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (d *ServerDeps) HandleSubmissionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "id must be an integer", nil)
		return
	}

	detail, err := d.Reader.SubmissionDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			WriteProblem(w, http.StatusNotFound, "not found", "respuesta no encontrada", nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Int64("id", id).Msg("detail query failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not load submission", nil)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (d *ServerDeps) HandleVideo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "id must be an integer", nil)
		return
	}

	video, err := d.Reader.VideoForSubmission(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			WriteProblem(w, http.StatusNotFound, "not found", "video no encontrado", nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Int64("id", id).Msg("video lookup failed")
		WriteProblem(w, http.StatusInternalServerError, "query error", "could not load video", nil)
		return
	}

	f, err := os.Open(video.Filepath)
	if err != nil {
		if os.IsNotExist(err) {
			WriteProblem(w, http.StatusNotFound, "not found", "video file missing from store", nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("path", video.Filepath).Msg("video open failed")
		WriteProblem(w, http.StatusInternalServerError, "storage error", "could not open video", nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		WriteProblem(w, http.StatusInternalServerError, "storage error", "could not stat video", nil)
		return
	}

	w.Header().Set("Content-Type", video.MimeType)
	http.ServeContent(w, r, video.Filename, info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func positiveIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}

// redactDSN strips the password from a URL-form DSN before it leaves the
// health endpoint.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "configured"
	}
	return u.Redacted()
}
