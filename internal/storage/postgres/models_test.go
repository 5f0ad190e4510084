package postgres

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCountMarshal(t *testing.T) {
	b, err := json.Marshal(GroupCount{Key: "programa", Label: "Ingeniería", Count: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"programa":"Ingeniería","count":3}`, string(b))

	// Empty group, e.g. evento_popular over an empty table, is {} not null.
	b, err = json.Marshal(GroupCount{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestOptionalMarshal(t *testing.T) {
	b, err := json.Marshal(OptionalVideo{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	b, err = json.Marshal(OptionalDevice{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	b, err = json.Marshal(OptionalLocation{Row: &LocationRow{ID: 1, Latitude: 10, Longitude: 20}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"latitude":10`)
}

// The empty-object rendering must survive marshaling of the enclosing
// document, not just the wrapper in isolation.
func TestDetailAbsentRelationsMarshal(t *testing.T) {
	det := Detail{
		Respuesta:          SubmissionRow{ID: 3, Nombre: "Ana"},
		Actividades:        []string{},
		StepTimes:          []StepTimeRow{},
		ValidationAttempts: []ValidationAttemptRow{},
	}
	b, err := json.Marshal(det)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, map[string]any{}, doc["video"])
	assert.Equal(t, map[string]any{}, doc["ubicacion"])
	assert.Equal(t, map[string]any{}, doc["dispositivo"])
	assert.NotContains(t, string(b), "null")
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}
