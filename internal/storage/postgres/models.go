package postgres

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// GroupCount is one grouped-count aggregate row. It serializes under the
// dimension's own key, e.g. {"programa":"X","count":3}, matching what the
// reporting front end consumes. An empty GroupCount serializes as {}.
type GroupCount struct {
	Key   string
	Label string
	Count int64
}

func (g GroupCount) MarshalJSON() ([]byte, error) {
	if g.Key == "" {
		return []byte("{}"), nil
	}
	label, err := json.Marshal(g.Label)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, `{%q:%s,"count":%d}`, g.Key, label, g.Count), nil
}

// The Optional* wrappers give each 0..1 relation an empty-object
// rendering when the row is absent, rather than null or a missing key.
// They are concrete per row type; goccy does not pick up a MarshalJSON
// declared on a generic wrapper.

type OptionalVideo struct {
	Row *VideoRow
}

func (o OptionalVideo) MarshalJSON() ([]byte, error) {
	if o.Row == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Row)
}

type OptionalLocation struct {
	Row *LocationRow
}

func (o OptionalLocation) MarshalJSON() ([]byte, error) {
	if o.Row == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Row)
}

type OptionalDevice struct {
	Row *DeviceRow
}

func (o OptionalDevice) MarshalJSON() ([]byte, error) {
	if o.Row == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Row)
}

// SubmissionRow mirrors the respuestas table.
type SubmissionRow struct {
	ID                      int64     `json:"id"`
	SessionID               string    `json:"session_id"`
	StartTime               string    `json:"start_time"`
	EndTime                 string    `json:"end_time"`
	Nombre                  string    `json:"nombre"`
	Email                   string    `json:"email"`
	Telefono                string    `json:"telefono"`
	Programa                string    `json:"programa"`
	TipoEvento              string    `json:"tipo_evento"`
	Horario                 string    `json:"horario"`
	Lugar                   string    `json:"lugar"`
	Acompanante             string    `json:"acompanante"`
	Sugerencias             string    `json:"sugerencias"`
	IntentosValidacionTotal int       `json:"intentos_validacion_total"`
	DuracionTotalSegundos   float64   `json:"duracion_total_segundos"`
	CreatedAt               time.Time `json:"created_at"`
}

// VideoRow mirrors the videos table.
type VideoRow struct {
	ID               int64   `json:"id"`
	RespuestaID      int64   `json:"respuesta_id"`
	SessionID        string  `json:"session_id"`
	Filename         string  `json:"filename"`
	Filepath         string  `json:"filepath"`
	FileSize         int64   `json:"file_size"`
	MimeType         string  `json:"mime_type"`
	DuracionSegundos float64 `json:"duracion_segundos"`
	RecordedAt       *string `json:"recorded_at"`
	MD5Hash          string  `json:"md5_hash"`
	SHA256Hash       string  `json:"sha256_hash"`
}

// LocationRow mirrors the ubicaciones table.
type LocationRow struct {
	ID               int64    `json:"id"`
	RespuestaID      int64    `json:"respuesta_id"`
	SessionID        string   `json:"session_id"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         *float64 `json:"accuracy"`
	Altitude         *float64 `json:"altitude"`
	AltitudeAccuracy *float64 `json:"altitude_accuracy"`
	Heading          *float64 `json:"heading"`
	Speed            *float64 `json:"speed"`
	Timestamp        *int64   `json:"timestamp"`
}

// DeviceRow mirrors the dispositivos table.
type DeviceRow struct {
	ID                  int64   `json:"id"`
	RespuestaID         int64   `json:"respuesta_id"`
	SessionID           string  `json:"session_id"`
	UserAgent           *string `json:"user_agent"`
	Platform            *string `json:"platform"`
	Language            *string `json:"language"`
	ScreenWidth         *int    `json:"screen_width"`
	ScreenHeight        *int    `json:"screen_height"`
	ViewportWidth       *int    `json:"viewport_width"`
	ViewportHeight      *int    `json:"viewport_height"`
	TouchSupport        bool    `json:"touch_support"`
	DeviceMemory        *string `json:"device_memory"`
	HardwareConcurrency *string `json:"hardware_concurrency"`
	Timezone            *string `json:"timezone"`
}

// StepTimeRow mirrors the step_times table.
type StepTimeRow struct {
	ID              int64   `json:"id"`
	RespuestaID     int64   `json:"respuesta_id"`
	SessionID       string  `json:"session_id"`
	StepNumber      int     `json:"step_number"`
	EnteredAt       *string `json:"entered_at"`
	CompletedAt     *string `json:"completed_at"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ValidationAttemptRow mirrors the validation_attempts table.
type ValidationAttemptRow struct {
	ID            int64  `json:"id"`
	RespuestaID   int64  `json:"respuesta_id"`
	SessionID     string `json:"session_id"`
	StepNumber    int    `json:"step_number"`
	AttemptsCount int    `json:"attempts_count"`
}

// ListingRow is one entry of the paginated listing: submission columns
// joined LEFT with its location.
type ListingRow struct {
	ID                    int64     `json:"id"`
	SessionID             string    `json:"session_id"`
	Nombre                string    `json:"nombre"`
	Email                 string    `json:"email"`
	Telefono              string    `json:"telefono"`
	Programa              string    `json:"programa"`
	TipoEvento            string    `json:"tipo_evento"`
	Horario               string    `json:"horario"`
	Lugar                 string    `json:"lugar"`
	Acompanante           string    `json:"acompanante"`
	Sugerencias           string    `json:"sugerencias"`
	CreatedAt             time.Time `json:"created_at"`
	DuracionTotalSegundos float64   `json:"duracion_total_segundos"`
	Latitude              *float64  `json:"latitude"`
	Longitude             *float64  `json:"longitude"`
	Accuracy              *float64  `json:"accuracy"`
}

// ListingPage is the self-describing page envelope.
type ListingPage struct {
	Respuestas []ListingRow `json:"respuestas"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
	TotalPages int          `json:"total_pages"`
}

// RecentSubmission is one entry of the dashboard's latest-submissions list.
type RecentSubmission struct {
	ID        int64     `json:"id"`
	Nombre    string    `json:"nombre"`
	Programa  string    `json:"programa"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard is the summary document: admin endpoint and dashboard.json
// share this shape.
type Dashboard struct {
	TotalRespuestas   int64              `json:"total_respuestas"`
	RespuestasHoy     int64              `json:"respuestas_hoy"`
	PorPrograma       []GroupCount       `json:"por_programa"`
	EventoPopular     GroupCount         `json:"evento_popular"`
	Horarios          []GroupCount       `json:"horarios"`
	ActividadesTop    []GroupCount       `json:"actividades_top"`
	TiempoPromedio    float64            `json:"tiempo_promedio"`
	UltimasRespuestas []RecentSubmission `json:"ultimas_respuestas"`
}

// Stats is the public live-aggregate document.
type Stats struct {
	TotalRespuestas        int64        `json:"total_respuestas"`
	PorPrograma            []GroupCount `json:"por_programa"`
	TipoEvento             []GroupCount `json:"tipo_evento"`
	TiempoPromedioSegundos float64      `json:"tiempo_promedio_segundos"`
}

// DetailedStats is the full breakdown by every categorical dimension.
type DetailedStats struct {
	PorPrograma    []GroupCount `json:"por_programa"`
	PorTipoEvento  []GroupCount `json:"por_tipo_evento"`
	PorHorario     []GroupCount `json:"por_horario"`
	PorLugar       []GroupCount `json:"por_lugar"`
	PorAcompanante []GroupCount `json:"por_acompanante"`
	PorActividad   []GroupCount `json:"por_actividad"`
}

// Detail is the self-contained per-submission document. Absent 0..1
// relations serialize as {}, absent fan-outs as [].
type Detail struct {
	Respuesta          SubmissionRow          `json:"respuesta"`
	Video              OptionalVideo          `json:"video"`
	Ubicacion          OptionalLocation       `json:"ubicacion"`
	Actividades        []string               `json:"actividades"`
	Dispositivo        OptionalDevice         `json:"dispositivo"`
	StepTimes          []StepTimeRow          `json:"step_times"`
	ValidationAttempts []ValidationAttemptRow `json:"validation_attempts"`
}
