package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound marks a lookup for an identifier that has no row. Callers
// must be able to tell "absent" apart from "query failed".
var ErrNotFound = errors.New("not found")

// groupCounts runs a grouped count over one column of one table. Ordering
// is count descending with the label as an explicit tiebreak, which keeps
// repeated materialization runs byte-identical.
func (s *Store) groupCounts(ctx context.Context, table, column string, limit int) ([]GroupCount, error) {
	sql := fmt.Sprintf(
		`SELECT %s, COUNT(*)::bigint AS cnt FROM %s GROUP BY %s ORDER BY cnt DESC, %s ASC`,
		column, table, column, column,
	)
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]GroupCount, 0, 8)
	for rows.Next() {
		g := GroupCount{Key: column}
		if err := rows.Scan(&g.Label, &g.Count); err != nil {
			return nil, fmt.Errorf("scan %s group: %w", column, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) countSubmissions(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*)::bigint FROM respuestas`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count respuestas: %w", err)
	}
	return total, nil
}

func (s *Store) averageDuration(ctx context.Context) (float64, error) {
	// COALESCE keeps the empty table arithmetic-safe: zero, never NULL.
	var avg float64
	err := s.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(duracion_total_segundos), 0) FROM respuestas`,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("avg duration: %w", err)
	}
	return avg, nil
}

// Stats returns the public live aggregates.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if st.TotalRespuestas, err = s.countSubmissions(ctx); err != nil {
		return st, err
	}
	if st.PorPrograma, err = s.groupCounts(ctx, "respuestas", "programa", 0); err != nil {
		return st, err
	}
	if st.TipoEvento, err = s.groupCounts(ctx, "respuestas", "tipo_evento", 0); err != nil {
		return st, err
	}
	if st.TiempoPromedioSegundos, err = s.averageDuration(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// Dashboard returns the summary aggregates used by the admin dashboard and
// the materialized dashboard.json.
func (s *Store) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	var err error

	if d.TotalRespuestas, err = s.countSubmissions(ctx); err != nil {
		return d, err
	}

	err = s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*)::bigint FROM respuestas WHERE created_at::date = CURRENT_DATE`,
	).Scan(&d.RespuestasHoy)
	if err != nil {
		return d, fmt.Errorf("count today: %w", err)
	}

	if d.PorPrograma, err = s.groupCounts(ctx, "respuestas", "programa", 0); err != nil {
		return d, err
	}

	popular, err := s.groupCounts(ctx, "respuestas", "tipo_evento", 1)
	if err != nil {
		return d, err
	}
	if len(popular) > 0 {
		d.EventoPopular = popular[0]
	}

	if d.Horarios, err = s.groupCounts(ctx, "respuestas", "horario", 0); err != nil {
		return d, err
	}
	if d.ActividadesTop, err = s.groupCounts(ctx, "actividades_seleccionadas", "actividad", 5); err != nil {
		return d, err
	}
	if d.TiempoPromedio, err = s.averageDuration(ctx); err != nil {
		return d, err
	}

	rows, err := s.db.Pool.Query(ctx, `
SELECT id, nombre, programa, created_at
FROM respuestas
ORDER BY created_at DESC, id DESC
LIMIT 5`)
	if err != nil {
		return d, fmt.Errorf("recent respuestas: %w", err)
	}
	defer rows.Close()

	d.UltimasRespuestas = make([]RecentSubmission, 0, 5)
	for rows.Next() {
		var r RecentSubmission
		if err := rows.Scan(&r.ID, &r.Nombre, &r.Programa, &r.CreatedAt); err != nil {
			return d, fmt.Errorf("scan recent: %w", err)
		}
		d.UltimasRespuestas = append(d.UltimasRespuestas, r)
	}
	return d, rows.Err()
}

// DetailedStats returns the full grouped breakdown of every categorical
// dimension.
func (s *Store) DetailedStats(ctx context.Context) (DetailedStats, error) {
	var ds DetailedStats
	var err error

	if ds.PorPrograma, err = s.groupCounts(ctx, "respuestas", "programa", 0); err != nil {
		return ds, err
	}
	if ds.PorTipoEvento, err = s.groupCounts(ctx, "respuestas", "tipo_evento", 0); err != nil {
		return ds, err
	}
	if ds.PorHorario, err = s.groupCounts(ctx, "respuestas", "horario", 0); err != nil {
		return ds, err
	}
	if ds.PorLugar, err = s.groupCounts(ctx, "respuestas", "lugar", 0); err != nil {
		return ds, err
	}
	if ds.PorAcompanante, err = s.groupCounts(ctx, "respuestas", "acompanante", 0); err != nil {
		return ds, err
	}
	if ds.PorActividad, err = s.groupCounts(ctx, "actividades_seleccionadas", "actividad", 0); err != nil {
		return ds, err
	}
	return ds, nil
}

// ListSubmissions returns one page of the listing, newest first. The id
// tiebreak keeps pages free of duplicates and gaps when timestamps collide.
func (s *Store) ListSubmissions(ctx context.Context, page, perPage int) (ListingPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	total, err := s.countSubmissions(ctx)
	if err != nil {
		return ListingPage{}, err
	}

	offset := (page - 1) * perPage
	rows, err := s.db.Pool.Query(ctx, `
SELECT
    r.id, r.session_id, r.nombre, r.email, r.telefono,
    r.programa, r.tipo_evento, r.horario, r.lugar,
    r.acompanante, r.sugerencias, r.created_at,
    r.duracion_total_segundos,
    u.latitude, u.longitude, u.accuracy
FROM respuestas r
LEFT JOIN ubicaciones u ON r.id = u.respuesta_id
ORDER BY r.created_at DESC, r.id DESC
LIMIT $1 OFFSET $2`, perPage, offset)
	if err != nil {
		return ListingPage{}, fmt.Errorf("list respuestas: %w", err)
	}
	defer rows.Close()

	listing := make([]ListingRow, 0, perPage)
	for rows.Next() {
		var r ListingRow
		err := rows.Scan(
			&r.ID, &r.SessionID, &r.Nombre, &r.Email, &r.Telefono,
			&r.Programa, &r.TipoEvento, &r.Horario, &r.Lugar,
			&r.Acompanante, &r.Sugerencias, &r.CreatedAt,
			&r.DuracionTotalSegundos,
			&r.Latitude, &r.Longitude, &r.Accuracy,
		)
		if err != nil {
			return ListingPage{}, fmt.Errorf("scan listing row: %w", err)
		}
		listing = append(listing, r)
	}
	if err := rows.Err(); err != nil {
		return ListingPage{}, err
	}

	return ListingPage{
		Respuestas: listing,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: TotalPages(total, perPage),
	}, nil
}

// TotalPages is ceiling(total / perPage).
func TotalPages(total int64, perPage int) int {
	if perPage < 1 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// SubmissionIDs lists every submission id, ascending.
func (s *Store) SubmissionIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT id FROM respuestas ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SubmissionDetail assembles the full denormalized document for one
// submission. Returns ErrNotFound when the id has no row.
func (s *Store) SubmissionDetail(ctx context.Context, id int64) (Detail, error) {
	var det Detail

	err := s.db.Pool.QueryRow(ctx, `
SELECT id, session_id, start_time, end_time, nombre, email, telefono,
       programa, tipo_evento, horario, lugar, acompanante, sugerencias,
       intentos_validacion_total, duracion_total_segundos, created_at
FROM respuestas WHERE id = $1`, id).Scan(
		&det.Respuesta.ID, &det.Respuesta.SessionID, &det.Respuesta.StartTime,
		&det.Respuesta.EndTime, &det.Respuesta.Nombre, &det.Respuesta.Email,
		&det.Respuesta.Telefono, &det.Respuesta.Programa, &det.Respuesta.TipoEvento,
		&det.Respuesta.Horario, &det.Respuesta.Lugar, &det.Respuesta.Acompanante,
		&det.Respuesta.Sugerencias, &det.Respuesta.IntentosValidacionTotal,
		&det.Respuesta.DuracionTotalSegundos, &det.Respuesta.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return det, fmt.Errorf("respuesta %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return det, fmt.Errorf("query respuesta: %w", err)
	}

	var video VideoRow
	err = s.db.Pool.QueryRow(ctx, `
SELECT id, respuesta_id, session_id, filename, filepath, file_size,
       mime_type, duracion_segundos, recorded_at, md5_hash, sha256_hash
FROM videos WHERE respuesta_id = $1`, id).Scan(
		&video.ID, &video.RespuestaID, &video.SessionID, &video.Filename,
		&video.Filepath, &video.FileSize, &video.MimeType,
		&video.DuracionSegundos, &video.RecordedAt, &video.MD5Hash, &video.SHA256Hash,
	)
	switch {
	case err == nil:
		det.Video = OptionalVideo{Row: &video}
	case !errors.Is(err, pgx.ErrNoRows):
		return det, fmt.Errorf("query video: %w", err)
	}

	var loc LocationRow
	err = s.db.Pool.QueryRow(ctx, `
SELECT id, respuesta_id, session_id, latitude, longitude, accuracy,
       altitude, altitude_accuracy, heading, speed, timestamp
FROM ubicaciones WHERE respuesta_id = $1`, id).Scan(
		&loc.ID, &loc.RespuestaID, &loc.SessionID, &loc.Latitude, &loc.Longitude,
		&loc.Accuracy, &loc.Altitude, &loc.AltitudeAccuracy, &loc.Heading,
		&loc.Speed, &loc.Timestamp,
	)
	switch {
	case err == nil:
		det.Ubicacion = OptionalLocation{Row: &loc}
	case !errors.Is(err, pgx.ErrNoRows):
		return det, fmt.Errorf("query ubicacion: %w", err)
	}

	actRows, err := s.db.Pool.Query(ctx,
		`SELECT actividad FROM actividades_seleccionadas WHERE respuesta_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return det, fmt.Errorf("query actividades: %w", err)
	}
	defer actRows.Close()
	det.Actividades = make([]string, 0, 4)
	for actRows.Next() {
		var a string
		if err := actRows.Scan(&a); err != nil {
			return det, fmt.Errorf("scan actividad: %w", err)
		}
		det.Actividades = append(det.Actividades, a)
	}
	if err := actRows.Err(); err != nil {
		return det, err
	}

	var dev DeviceRow
	err = s.db.Pool.QueryRow(ctx, `
SELECT id, respuesta_id, session_id, user_agent, platform, language,
       screen_width, screen_height, viewport_width, viewport_height,
       touch_support, device_memory, hardware_concurrency, timezone
FROM dispositivos WHERE respuesta_id = $1`, id).Scan(
		&dev.ID, &dev.RespuestaID, &dev.SessionID, &dev.UserAgent, &dev.Platform,
		&dev.Language, &dev.ScreenWidth, &dev.ScreenHeight, &dev.ViewportWidth,
		&dev.ViewportHeight, &dev.TouchSupport, &dev.DeviceMemory,
		&dev.HardwareConcurrency, &dev.Timezone,
	)
	switch {
	case err == nil:
		det.Dispositivo = OptionalDevice{Row: &dev}
	case !errors.Is(err, pgx.ErrNoRows):
		return det, fmt.Errorf("query dispositivo: %w", err)
	}

	stepRows, err := s.db.Pool.Query(ctx, `
SELECT id, respuesta_id, session_id, step_number, entered_at, completed_at, duration_seconds
FROM step_times WHERE respuesta_id = $1 ORDER BY step_number ASC`, id)
	if err != nil {
		return det, fmt.Errorf("query step times: %w", err)
	}
	defer stepRows.Close()
	det.StepTimes = make([]StepTimeRow, 0, 4)
	for stepRows.Next() {
		var st StepTimeRow
		err := stepRows.Scan(&st.ID, &st.RespuestaID, &st.SessionID, &st.StepNumber,
			&st.EnteredAt, &st.CompletedAt, &st.DurationSeconds)
		if err != nil {
			return det, fmt.Errorf("scan step time: %w", err)
		}
		det.StepTimes = append(det.StepTimes, st)
	}
	if err := stepRows.Err(); err != nil {
		return det, err
	}

	vaRows, err := s.db.Pool.Query(ctx, `
SELECT id, respuesta_id, session_id, step_number, attempts_count
FROM validation_attempts WHERE respuesta_id = $1 ORDER BY step_number ASC`, id)
	if err != nil {
		return det, fmt.Errorf("query validation attempts: %w", err)
	}
	defer vaRows.Close()
	det.ValidationAttempts = make([]ValidationAttemptRow, 0, 4)
	for vaRows.Next() {
		var va ValidationAttemptRow
		err := vaRows.Scan(&va.ID, &va.RespuestaID, &va.SessionID, &va.StepNumber, &va.AttemptsCount)
		if err != nil {
			return det, fmt.Errorf("scan validation attempt: %w", err)
		}
		det.ValidationAttempts = append(det.ValidationAttempts, va)
	}
	return det, vaRows.Err()
}

// VideoForSubmission resolves the stored asset path and MIME type for
// streaming. Returns ErrNotFound when the submission has no video row.
func (s *Store) VideoForSubmission(ctx context.Context, id int64) (VideoRow, error) {
	var video VideoRow
	err := s.db.Pool.QueryRow(ctx, `
SELECT id, respuesta_id, session_id, filename, filepath, file_size,
       mime_type, duracion_segundos, recorded_at, md5_hash, sha256_hash
FROM videos WHERE respuesta_id = $1`, id).Scan(
		&video.ID, &video.RespuestaID, &video.SessionID, &video.Filename,
		&video.Filepath, &video.FileSize, &video.MimeType,
		&video.DuracionSegundos, &video.RecordedAt, &video.MD5Hash, &video.SHA256Hash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return video, fmt.Errorf("video for respuesta %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return video, fmt.Errorf("query video: %w", err)
	}
	return video, nil
}
