package iot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josuabad/TuGranjita/query"
	"github.com/josuabad/TuGranjita/schema"
	"github.com/josuabad/TuGranjita/store"
	"github.com/josuabad/TuGranjita/types"
)

const sensorsFixture = `[
	{"id": "s1", "nombre": "Temp Norte", "tipo": "temperatura", "ubicacion": "u1", "unidad_medida": "C", "estado": "activo"},
	{"id": "s2", "nombre": "Humedad Norte", "tipo": "humedad", "ubicacion": "u1", "unidad_medida": "%", "estado": "activo"},
	{"id": "s3", "nombre": "Temp Sur", "tipo": "temperatura", "ubicacion": "u2", "unidad_medida": "C", "estado": "mantenimiento"}
]`

const readingsFixture = `[
	{"id_lectura": "l1", "id_sensor": "s1", "valor": 21.5, "unidad": "C", "timestamp": "2026-03-01T08:00:00Z"},
	{"id_lectura": "l2", "id_sensor": "s1", "valor": 22.0, "unidad": "C", "timestamp": "2026-03-01T09:00:00Z", "bateria": 88.5},
	{"id_lectura": "l3", "id_sensor": "s2", "valor": 64.0, "unidad": "%", "timestamp": "2026-03-01T09:30:00Z"},
	{"id_lectura": "l4", "id_sensor": "s3", "valor": 19.1, "unidad": "C", "timestamp": "2026-03-01T10:00:00Z"}
]`

func newTestService(t *testing.T, sensorData, readingData string) *Service {
	t.Helper()

	dir := t.TempDir()
	sensorPath := filepath.Join(dir, "sensores.json")
	readingPath := filepath.Join(dir, "lecturas.json")
	require.NoError(t, os.WriteFile(sensorPath, []byte(sensorData), 0o644))
	require.NoError(t, os.WriteFile(readingPath, []byte(readingData), 0o644))

	validator, err := schema.Load("../schemas", schema.KindSensor, schema.KindReading)
	require.NoError(t, err)

	sensors := store.NewJSONFile[types.Sensor]("sensors", sensorPath, nil)
	readings := store.NewJSONFile[types.Reading]("readings", readingPath, nil)
	return NewService(sensors, readings, validator, nil, nil)
}

func get(t *testing.T, s *Service, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestListSensors(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"no filters", "/sensors", 3},
		{"by type", "/sensors?type=temperatura", 2},
		{"by location", "/sensors?locationId=u1", 2},
		{"type and location", "/sensors?type=temperatura&locationId=u1", 1},
		{"empty filters mean unfiltered", "/sensors?type=&locationId=", 3},
		{"unknown type matches nothing", "/sensors?type=presion", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.url)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp sensorsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "success", resp.Status)
			assert.Equal(t, tt.want, resp.Total)
			assert.Len(t, resp.Sensors, tt.want)
		})
	}
}

func TestListSensors_ParamsEcho(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	rec := get(t, s, "/sensors?type=temperatura")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sensorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Params.Type)
	assert.Equal(t, "temperatura", *resp.Params.Type)
	assert.Nil(t, resp.Params.LocationID)
}

func TestListReadings(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	tests := []struct {
		name string
		url  string
		want []string
	}{
		{"no filters", "/readings", []string{"l1", "l2", "l3", "l4"}},
		{"by sensor", "/readings?sensorId=s1", []string{"l1", "l2"}},
		{"by location joins through sensors", "/readings?locationId=u1", []string{"l1", "l2", "l3"}},
		{"from is inclusive", "/readings?from=2026-03-01T09:00:00Z", []string{"l2", "l3", "l4"}},
		{"to is inclusive", "/readings?to=2026-03-01T09:00:00Z", []string{"l1", "l2"}},
		{"all filters compose", "/readings?sensorId=s1&locationId=u1&from=2026-03-01T08:30:00Z&to=2026-03-01T09:30:00Z", []string{"l2"}},
		{"limit truncates", "/readings?limit=2", []string{"l1", "l2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.url)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp readingsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			var ids []string
			for _, raw := range resp.Readings {
				var reading types.Reading
				require.NoError(t, json.Unmarshal(raw, &reading))
				ids = append(ids, reading.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListReadings_TotalIsPreLimit(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	rec := get(t, s, "/readings?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp readingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Total)
	assert.Len(t, resp.Readings, 2)
	assert.Equal(t, 2, resp.Params.Limit)
}

func TestListReadings_ParamValidation(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"limit at ceiling", "/readings?limit=1000", http.StatusOK},
		{"limit over ceiling", "/readings?limit=1001", http.StatusBadRequest},
		{"limit zero", "/readings?limit=0", http.StatusBadRequest},
		{"limit non-integer", "/readings?limit=many", http.StatusBadRequest},
		{"limit empty but present", "/readings?limit=", http.StatusBadRequest},
		{"from empty but present", "/readings?from=", http.StatusBadRequest},
		{"to empty but present", "/readings?to=", http.StatusBadRequest},
		{"from not a timestamp", "/readings?from=yesterday", http.StatusBadRequest},
		{"to not a timestamp", "/readings?to=2026-03-99T00:00:00Z", http.StatusBadRequest},
		{"inverted range", "/readings?from=2026-03-02T00:00:00Z&to=2026-03-01T00:00:00Z", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.url)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusBadRequest {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestListReadings_CorruptTimestamp(t *testing.T) {
	corrupt := `[
		{"id_lectura": "l1", "id_sensor": "s1", "valor": 1.0, "unidad": "C", "timestamp": "2026-03-01T08:00:00Z"},
		{"id_lectura": "l9", "id_sensor": "s2", "valor": 2.0, "unidad": "C", "timestamp": "not-a-time"}
	]`
	s := newTestService(t, sensorsFixture, corrupt)

	// The temporal stage trips over the corrupt record.
	rec := get(t, s, "/readings?from=2026-03-01T00:00:00Z")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], `"l9"`)

	// A sensor filter that drops the corrupt record first keeps the
	// same temporal query servable.
	ok := get(t, s, "/readings?sensorId=s1&from=2026-03-01T00:00:00Z")
	assert.Equal(t, http.StatusOK, ok.Code)
}

// The staged filter chain must produce the same survivors as evaluating
// all conditions in a single pass over the unfiltered collection.
func TestReadingFilterOrderEquivalence(t *testing.T) {
	var readings []types.Reading
	require.NoError(t, json.Unmarshal([]byte(readingsFixture), &readings))

	records := make([]store.Record[types.Reading], len(readings))
	for i, r := range readings {
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		records[i] = store.Record[types.Reading]{Value: r, Raw: raw}
	}

	locations := map[string]string{"s1": "u1", "s2": "u1", "s3": "u2"}
	from := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	staged, err := query.Apply(records,
		matchesReadingSensor("s1"),
		matchesReadingLocation("u1", locations),
		afterInstant(&from),
		beforeInstant(&to),
	)
	require.NoError(t, err)

	combined, err := query.Apply(records, func(record store.Record[types.Reading]) (bool, error) {
		if record.Value.SensorID != "s1" || locations[record.Value.SensorID] != "u1" {
			return false, nil
		}
		ts, err := readingInstant(record)
		if err != nil {
			return false, err
		}
		return !ts.Before(from) && !ts.After(to), nil
	})
	require.NoError(t, err)

	assert.Equal(t, combined, staged)
}

func TestListReadings_Idempotence(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)

	first := get(t, s, "/readings?sensorId=s1&limit=5")
	second := get(t, s, "/readings?sensorId=s1&limit=5")
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestValidateAll(t *testing.T) {
	s := newTestService(t, sensorsFixture, readingsFixture)
	count, err := s.ValidateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	broken := newTestService(t, `[{"id": "s9", "tipo": "temperatura"}]`, readingsFixture)
	_, err = broken.ValidateAll(context.Background())
	assert.Error(t, err)
}
