// Package domain defines the submission payload exchanged with the survey
// client and the validation applied to it before anything is persisted.
package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Submission is the decoded "datos" multipart field. JSON field names are
// fixed by the survey client and must not change.
type Submission struct {
	SessionID   string `json:"sessionId" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"required"`
	Nombre      string `json:"nombre" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Telefono    string `json:"telefono" validate:"required"`
	Programa    string `json:"programa" validate:"required"`
	TipoEvento  string `json:"tipoEvento" validate:"required"`
	Horario     string `json:"horario" validate:"required"`
	Lugar       string `json:"lugar" validate:"required"`
	Acompanante string `json:"acompanante" validate:"required"`
	Sugerencias string `json:"sugerencias"`

	Actividades        []string            `json:"actividades"`
	Ubicacion          *Location           `json:"ubicacion"`
	DeviceInfo         *Device             `json:"deviceInfo"`
	VideoMetadata      VideoMetadata       `json:"videoMetadata"`
	StepTimes          map[string]StepTime `json:"stepTimes"`
	ValidationAttempts map[string]int      `json:"validationAttempts"`
}

// Location is reported by the browser geolocation API. Latitude and
// longitude are mandatory whenever a location is present at all; zero is a
// legal coordinate, hence the pointers.
type Location struct {
	Latitude         *float64 `json:"latitude" validate:"required"`
	Longitude        *float64 `json:"longitude" validate:"required"`
	Accuracy         *float64 `json:"accuracy"`
	Altitude         *float64 `json:"altitude"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy"`
	Heading          *float64 `json:"heading"`
	Speed            *float64 `json:"speed"`
	Timestamp        *int64   `json:"timestamp"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Device is the client fingerprint. DeviceMemory and HardwareConcurrency
// arrive as a number, a string, or the literal "unknown"; they are modeled
// as optional values, never a sentinel string.
type Device struct {
	UserAgent           string         `json:"userAgent"`
	Platform            string         `json:"platform"`
	Language            string         `json:"language"`
	ScreenResolution    Dimensions     `json:"screenResolution"`
	Viewport            Dimensions     `json:"viewport"`
	TouchSupport        bool           `json:"touchSupport"`
	DeviceMemory        OptionalScalar `json:"deviceMemory"`
	HardwareConcurrency OptionalScalar `json:"hardwareConcurrency"`
	Timezone            string         `json:"timezone"`
}

type VideoMetadata struct {
	Type       string  `json:"type"`
	Duration   float64 `json:"duration"`
	RecordedAt string  `json:"recordedAt"`
}

type StepTime struct {
	Entered   string  `json:"entered"`
	Completed string  `json:"completed"`
	Duration  float64 `json:"duration"`
}

// OptionalScalar accepts a JSON number, string, or null and normalizes
// "unknown", empty, and null to absent.
type OptionalScalar struct {
	value string
	set   bool
}

func (o *OptionalScalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*o = OptionalScalar{}
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("scalar must be a number or string: %w", err)
		}
		s = n.String()
	}
	if s == "" || strings.EqualFold(s, "unknown") {
		*o = OptionalScalar{}
		return nil
	}
	*o = OptionalScalar{value: s, set: true}
	return nil
}

func (o OptionalScalar) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Value returns the scalar as a nullable string for storage.
func (o OptionalScalar) Value() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

const stepKeyPrefix = "step"

// ParseStepNumber extracts N from a "stepN" key. Anything else is a hard
// error: a malformed key must abort the whole ingestion, never drop a row.
func ParseStepNumber(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, stepKeyPrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("malformed step key %q", key)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed step key %q", key)
	}
	return n, nil
}

// TotalValidationAttempts sums the per-step retry counters. The stored
// total is always this sum, never a client-supplied figure.
func (s *Submission) TotalValidationAttempts() int {
	total := 0
	for _, n := range s.ValidationAttempts {
		total += n
	}
	return total
}

// DurationSeconds derives the total fill time from the start/end
// timestamps. Unparseable or reversed timestamps yield zero so downstream
// averages stay arithmetic-safe.
func (s *Submission) DurationSeconds() float64 {
	start, err1 := time.Parse(time.RFC3339, s.StartTime)
	end, err2 := time.Parse(time.RFC3339, s.EndTime)
	if err1 != nil || err2 != nil || end.Before(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}
