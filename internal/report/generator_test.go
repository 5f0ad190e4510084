package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

// memSource serves a fixed submission set, newest first, the way the
// store orders it.
type memSource struct {
	rows    []postgres.ListingRow
	details map[int64]postgres.Detail
}

func (m *memSource) Dashboard(context.Context) (postgres.Dashboard, error) {
	d := postgres.Dashboard{
		TotalRespuestas:   int64(len(m.rows)),
		PorPrograma:       []postgres.GroupCount{},
		Horarios:          []postgres.GroupCount{},
		ActividadesTop:    []postgres.GroupCount{},
		UltimasRespuestas: []postgres.RecentSubmission{},
	}
	if len(m.rows) > 0 {
		d.EventoPopular = postgres.GroupCount{Key: "tipo_evento", Label: "Conferencia", Count: int64(len(m.rows))}
		d.PorPrograma = []postgres.GroupCount{{Key: "programa", Label: "Ingeniería", Count: int64(len(m.rows))}}
	}
	return d, nil
}

func (m *memSource) DetailedStats(context.Context) (postgres.DetailedStats, error) {
	empty := []postgres.GroupCount{}
	return postgres.DetailedStats{
		PorPrograma: empty, PorTipoEvento: empty, PorHorario: empty,
		PorLugar: empty, PorAcompanante: empty, PorActividad: empty,
	}, nil
}

func (m *memSource) ListSubmissions(_ context.Context, page, perPage int) (postgres.ListingPage, error) {
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(m.rows) {
		start = len(m.rows)
	}
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return postgres.ListingPage{
		Respuestas: m.rows[start:end],
		Total:      int64(len(m.rows)),
		Page:       page,
		PerPage:    perPage,
		TotalPages: postgres.TotalPages(int64(len(m.rows)), perPage),
	}, nil
}

func (m *memSource) SubmissionIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.details))
	for _, r := range m.rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memSource) SubmissionDetail(_ context.Context, id int64) (postgres.Detail, error) {
	return m.details[id], nil
}

func sourceWith(n int) *memSource {
	src := &memSource{details: map[int64]postgres.Detail{}}
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := n; i >= 1; i-- {
		id := int64(i)
		src.rows = append(src.rows, postgres.ListingRow{
			ID:        id,
			SessionID: "sess",
			Nombre:    "Ana",
			Programa:  "Ingeniería",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		})
		src.details[id] = postgres.Detail{
			Respuesta:          postgres.SubmissionRow{ID: id, Nombre: "Ana"},
			Actividades:        []string{},
			StepTimes:          []postgres.StepTimeRow{},
			ValidationAttempts: []postgres.ValidationAttemptRow{},
		}
	}
	return src
}

func TestRunGeneratesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(sourceWith(25), dir, 10, time.Second, zerolog.Nop())
	require.NoError(t, g.Run(context.Background()))

	for _, name := range []string{
		"dashboard.json", "statistics.json",
		"respuestas_page_1.json", "respuestas_page_2.json", "respuestas_page_3.json",
		"respuestas/1.json", "respuestas/25.json",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, "respuestas_page_4.json"))
	assert.True(t, os.IsNotExist(err))

	// Page envelope self-description.
	var page postgres.ListingPage
	raw, err := os.ReadFile(filepath.Join(dir, "respuestas_page_3.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 10, page.PerPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Respuestas, 5)
}

func TestRunPaginationCoversAllRowsOnce(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(sourceWith(21), dir, 10, time.Second, zerolog.Nop())
	require.NoError(t, g.Run(context.Background()))

	seen := map[int64]int{}
	var order []int64
	for p := 1; p <= 3; p++ {
		var page postgres.ListingPage
		raw, err := os.ReadFile(filepath.Join(dir, "respuestas_page_"+string(rune('0'+p))+".json"))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &page))
		for _, r := range page.Respuestas {
			seen[r.ID]++
			order = append(order, r.ID)
		}
	}

	require.Len(t, seen, 21)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %d appears once", id)
	}
	// Newest first across the concatenated pages.
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1], order[i])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(sourceWith(12), dir, 10, time.Second, zerolog.Nop())

	require.NoError(t, g.Run(context.Background()))
	first := snapshot(t, dir)
	require.NoError(t, g.Run(context.Background()))
	second := snapshot(t, dir)

	assert.Equal(t, first, second)
}

func TestRunEmptySchema(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(sourceWith(0), dir, 10, time.Second, zerolog.Nop())
	require.NoError(t, g.Run(context.Background()))

	raw, err := os.ReadFile(filepath.Join(dir, "dashboard.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	// Zero-valued keys are always present, never missing.
	assert.Equal(t, float64(0), doc["total_respuestas"])
	assert.Equal(t, float64(0), doc["tiempo_promedio"])
	assert.Equal(t, map[string]any{}, doc["evento_popular"])
	assert.Equal(t, []any{}, doc["actividades_top"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "respuestas_page_")
	}
}

func TestDetailDocumentShape(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(sourceWith(1), dir, 10, time.Second, zerolog.Nop())
	require.NoError(t, g.Run(context.Background()))

	raw, err := os.ReadFile(filepath.Join(dir, "respuestas", "1.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	// Absent 1:1 relations are {}, absent fan-outs are [].
	assert.Equal(t, map[string]any{}, doc["video"])
	assert.Equal(t, map[string]any{}, doc["ubicacion"])
	assert.Equal(t, map[string]any{}, doc["dispositivo"])
	assert.Equal(t, []any{}, doc["actividades"])
	assert.Equal(t, []any{}, doc["step_times"])
	assert.Equal(t, []any{}, doc["validation_attempts"])
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}
