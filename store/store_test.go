package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestJSONFile_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clientes.json")
	writeFile(t, path, `[
		{"id": "c1", "nombre": "Acme S.L.", "nif": "B1", "tipo": "cliente"},
		{"id": "p1", "nombre": "Sensores del Sur", "nif": "B2", "tipo": "proveedor"}
	]`)

	src := NewJSONFile[types.Party]("parties", path, nil)
	records, err := src.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// File order is preserved and both views stay in sync
	assert.Equal(t, "c1", records[0].Value.ID)
	assert.Equal(t, types.PartySupplier, records[1].Value.Kind)
	assert.JSONEq(t, `{"id": "c1", "nombre": "Acme S.L.", "nif": "B1", "tipo": "cliente"}`,
		string(records[0].Raw))
}

func TestJSONFile_Reload_Freshness(t *testing.T) {
	// A mutation to the backing file is visible on the next call. This is
	// a documented property of the reload-per-request design, not an
	// accident of caching.
	dir := t.TempDir()
	path := filepath.Join(dir, "sensores.json")
	writeFile(t, path, `[{"id": "s1", "nombre": "t", "tipo": "temperatura", "ubicacion": "u1", "estado": "activo"}]`)

	src := NewJSONFile[types.Sensor]("sensors", path, nil)

	first, err := src.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	writeFile(t, path, `[
		{"id": "s1", "nombre": "t", "tipo": "temperatura", "ubicacion": "u1", "estado": "activo"},
		{"id": "s2", "nombre": "h", "tipo": "humedad", "ubicacion": "u2", "estado": "inactivo"}
	]`)

	second, err := src.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestJSONFile_Reload_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		setup   func() string
		wantErr error
	}{
		{
			name:    "missing file",
			setup:   func() string { return filepath.Join(dir, "nope.json") },
			wantErr: errors.ErrStoreUnreadable,
		},
		{
			name: "malformed json",
			setup: func() string {
				path := filepath.Join(dir, "bad.json")
				writeFile(t, path, `{"not": "an array"`)
				return path
			},
			wantErr: errors.ErrStoreMalformed,
		},
		{
			name: "non-array document",
			setup: func() string {
				path := filepath.Join(dir, "object.json")
				writeFile(t, path, `{"id": "x"}`)
				return path
			},
			wantErr: errors.ErrStoreMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewJSONFile[types.Party]("parties", tt.setup(), nil)
			_, err := src.Reload(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsIntegrity(err))
		})
	}
}

func TestValuesAndRaws(t *testing.T) {
	records := []Record[types.Party]{
		{Value: types.Party{ID: "a"}, Raw: []byte(`{"id":"a"}`)},
		{Value: types.Party{ID: "b"}, Raw: []byte(`{"id":"b"}`)},
	}

	assert.Equal(t, []types.Party{{ID: "a"}, {ID: "b"}}, Values(records))
	require.Len(t, Raws(records), 2)
	assert.JSONEq(t, `{"id":"b"}`, string(Raws(records)[1]))
}
