package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smookymolina/formulario-doxx/internal/domain"
)

// Store executes the write and read operations of the survey schema.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store { return &Store{db: db} }

// VideoMeta describes the asset already written to the content store,
// recorded alongside the submission in the same transaction.
type VideoMeta struct {
	Filename   string
	Path       string
	Size       int64
	MimeType   string
	Duration   float64
	RecordedAt string
	MD5        string
	SHA256     string
}

// fanOutTx is the transaction surface the fan-out inserts run on.
// pgx.Tx satisfies it.
type fanOutTx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordSubmission writes the submission and all its fan-out rows in one
// transaction. Either every row commits or none does; the returned id is
// only valid on success.
func (s *Store) RecordSubmission(ctx context.Context, sub *domain.Submission, video VideoMeta) (int64, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	// Rollback is a no-op once the transaction committed.
	defer tx.Rollback(ctx)

	id, err := insertFanOut(ctx, tx, sub, video)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// insertFanOut runs the eight ordered inserts. Any error aborts the
// sequence so the caller's transaction rolls back with nothing written.
func insertFanOut(ctx context.Context, tx fanOutTx, sub *domain.Submission, video VideoMeta) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
INSERT INTO respuestas (
    session_id, start_time, end_time,
    nombre, email, telefono, programa,
    tipo_evento, horario, lugar, acompanante, sugerencias,
    intentos_validacion_total, duracion_total_segundos
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id`,
		sub.SessionID, sub.StartTime, sub.EndTime,
		sub.Nombre, sub.Email, sub.Telefono, sub.Programa,
		sub.TipoEvento, sub.Horario, sub.Lugar, sub.Acompanante, sub.Sugerencias,
		sub.TotalValidationAttempts(), sub.DurationSeconds(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert respuesta: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO videos (
    respuesta_id, session_id, filename, filepath,
    file_size, mime_type, duracion_segundos,
    recorded_at, md5_hash, sha256_hash
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, sub.SessionID, video.Filename, video.Path,
		video.Size, video.MimeType, video.Duration,
		nullIfEmpty(video.RecordedAt), video.MD5, video.SHA256,
	)
	if err != nil {
		return 0, fmt.Errorf("insert video: %w", err)
	}

	if loc := sub.Ubicacion; loc != nil {
		_, err = tx.Exec(ctx, `
INSERT INTO ubicaciones (
    respuesta_id, session_id,
    latitude, longitude, accuracy,
    altitude, altitude_accuracy, heading, speed, timestamp
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			id, sub.SessionID,
			loc.Latitude, loc.Longitude, loc.Accuracy,
			loc.Altitude, loc.AltitudeAccuracy, loc.Heading, loc.Speed, loc.Timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("insert ubicacion: %w", err)
		}
	}

	for _, actividad := range sub.Actividades {
		_, err = tx.Exec(ctx,
			`INSERT INTO actividades_seleccionadas (respuesta_id, actividad) VALUES ($1,$2)`,
			id, actividad,
		)
		if err != nil {
			return 0, fmt.Errorf("insert actividad: %w", err)
		}
	}

	if dev := sub.DeviceInfo; dev != nil {
		_, err = tx.Exec(ctx, `
INSERT INTO dispositivos (
    respuesta_id, session_id,
    user_agent, platform, language,
    screen_width, screen_height, viewport_width, viewport_height,
    touch_support, device_memory, hardware_concurrency, timezone
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			id, sub.SessionID,
			dev.UserAgent, dev.Platform, dev.Language,
			dev.ScreenResolution.Width, dev.ScreenResolution.Height,
			dev.Viewport.Width, dev.Viewport.Height,
			dev.TouchSupport, dev.DeviceMemory.Value(), dev.HardwareConcurrency.Value(), dev.Timezone,
		)
		if err != nil {
			return 0, fmt.Errorf("insert dispositivo: %w", err)
		}
	}

	for _, key := range sortedKeys(sub.StepTimes) {
		stepNumber, err := domain.ParseStepNumber(key)
		if err != nil {
			return 0, fmt.Errorf("step times: %w", err)
		}
		times := sub.StepTimes[key]
		_, err = tx.Exec(ctx, `
INSERT INTO step_times (
    respuesta_id, session_id, step_number,
    entered_at, completed_at, duration_seconds
) VALUES ($1,$2,$3,$4,$5,$6)`,
			id, sub.SessionID, stepNumber,
			nullIfEmpty(times.Entered), nullIfEmpty(times.Completed), times.Duration,
		)
		if err != nil {
			return 0, fmt.Errorf("insert step time: %w", err)
		}
	}

	for _, key := range sortedKeys(sub.ValidationAttempts) {
		stepNumber, err := domain.ParseStepNumber(key)
		if err != nil {
			return 0, fmt.Errorf("validation attempts: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO validation_attempts (respuesta_id, session_id, step_number, attempts_count)
VALUES ($1,$2,$3,$4)`,
			id, sub.SessionID, stepNumber, sub.ValidationAttempts[key],
		)
		if err != nil {
			return 0, fmt.Errorf("insert validation attempt: %w", err)
		}
	}

	return id, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
