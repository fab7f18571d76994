package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josuabad/TuGranjita/schema"
	"github.com/josuabad/TuGranjita/store"
	"github.com/josuabad/TuGranjita/types"
)

func newTestService(t *testing.T, data string) *Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clientes.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	validator, err := schema.Load("../schemas", schema.KindParty)
	require.NoError(t, err)

	parties := store.NewJSONFile[types.Party]("parties", path, nil)
	return NewService(parties, validator, nil, nil)
}

func get(t *testing.T, s *Service, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

const partiesFixture = `[
	{"id": "c1", "nombre": "Acme S.L.", "nif": "B111", "direccion": "u1", "correo_electronico": "ventas@acme.es", "tipo": "cliente"},
	{"id": "c2", "nombre": "Granja Sol", "nif": "B222", "direccion": "u2", "correo_electronico": "hola@granjasol.es", "tipo": "cliente"},
	{"id": "p1", "nombre": "Sensores del Sur", "nif": "B333", "direccion": "u1", "correo_electronico": "info@sensur.es", "tipo": "proveedor"},
	{"id": "p2", "nombre": "Acme Solutions S.L.", "nif": "B444", "direccion": "u3", "correo_electronico": "contact@acmesol.es", "tipo": "proveedor"}
]`

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListParties(t *testing.T) {
	s := newTestService(t, partiesFixture)

	t.Run("defaults return everything on one page", func(t *testing.T) {
		rec := get(t, s, "/parties")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeList(t, rec)
		assert.Equal(t, 4, resp.Total)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 25, resp.PageSize)
		assert.Len(t, resp.Data, 4)
	})

	t.Run("free text matches name case-insensitively", func(t *testing.T) {
		resp := decodeList(t, get(t, s, "/parties?q=ACME"))
		assert.Equal(t, 2, resp.Total)
	})

	t.Run("free text matches email too", func(t *testing.T) {
		resp := decodeList(t, get(t, s, "/parties?q=granjasol"))
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("location filter composes after free text", func(t *testing.T) {
		resp := decodeList(t, get(t, s, "/parties?q=acme&locationId=u1"))
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("total is the filtered pre-slice count", func(t *testing.T) {
		rec := get(t, s, "/parties?page=2&pageSize=3")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeList(t, rec)
		assert.Equal(t, 4, resp.Total)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("identical requests are byte-identical", func(t *testing.T) {
		first := get(t, s, "/parties?q=acme&page=1&pageSize=2")
		second := get(t, s, "/parties?q=acme&page=1&pageSize=2")
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	})
}

func TestListParties_ParamValidation(t *testing.T) {
	s := newTestService(t, partiesFixture)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"pageSize at ceiling", "/parties?pageSize=100", http.StatusOK},
		{"pageSize over ceiling", "/parties?pageSize=101", http.StatusBadRequest},
		{"empty page present", "/parties?page=", http.StatusBadRequest},
		{"empty pageSize present", "/parties?pageSize=", http.StatusBadRequest},
		{"zero page", "/parties?page=0", http.StatusBadRequest},
		{"non-integer page", "/parties?page=abc", http.StatusBadRequest},
		{"empty q present", "/parties?q=", http.StatusBadRequest},
		{"empty locationId present", "/parties?locationId=", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.url)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusBadRequest {
				assert.NotEmpty(t, decodeDetail(t, rec)["detail"])
			}
		})
	}
}

func TestListParties_ValidationGate(t *testing.T) {
	// One schema-invalid record among valid ones: the page containing it
	// is denied entirely, other pages stay servable.
	records := `[
		{"id": "c1", "nombre": "Uno", "nif": "B1", "tipo": "cliente"},
		{"id": "c2", "nombre": "Dos", "nif": "B2", "tipo": "cliente"},
		{"id": "c3", "nombre": "Rota", "tipo": "cliente"},
		{"id": "c4", "nombre": "Cuatro", "nif": "B4", "tipo": "cliente"}
	]`
	s := newTestService(t, records)

	bad := get(t, s, "/parties?page=2&pageSize=2")
	require.Equal(t, http.StatusInternalServerError, bad.Code)
	assert.Contains(t, decodeDetail(t, bad)["detail"], `"c3"`)

	good := get(t, s, "/parties?page=1&pageSize=2")
	assert.Equal(t, http.StatusOK, good.Code)
}

func TestGetParty(t *testing.T) {
	s := newTestService(t, partiesFixture)

	t.Run("found returns the stored record", func(t *testing.T) {
		rec := get(t, s, "/parties/p1")
		require.Equal(t, http.StatusOK, rec.Code)

		var party types.Party
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &party))
		assert.Equal(t, "Sensores del Sur", party.Name)
		assert.Equal(t, types.PartySupplier, party.Kind)
	})

	t.Run("missing id is 404 with detail", func(t *testing.T) {
		rec := get(t, s, "/parties/nope")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decodeDetail(t, rec)["detail"], `"nope"`)
	})

	t.Run("invalid single record is 500", func(t *testing.T) {
		broken := newTestService(t, `[{"id": "c9", "nombre": "SinNif", "tipo": "cliente"}]`)
		rec := get(t, broken, "/parties/c9")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestListParties_Freshness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clientes.json")
	require.NoError(t, os.WriteFile(path, []byte(partiesFixture), 0o644))

	validator, err := schema.Load("../schemas", schema.KindParty)
	require.NoError(t, err)
	s := NewService(store.NewJSONFile[types.Party]("parties", path, nil), validator, nil, nil)

	assert.Equal(t, 4, decodeList(t, get(t, s, "/parties")).Total)

	extra := `[{"id": "c1", "nombre": "Solo", "nif": "B1", "tipo": "cliente"}]`
	require.NoError(t, os.WriteFile(path, []byte(extra), 0o644))

	assert.Equal(t, 1, decodeList(t, get(t, s, "/parties")).Total)
}

func TestValidateAll(t *testing.T) {
	s := newTestService(t, partiesFixture)
	count, err := s.ValidateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	broken := newTestService(t, `[{"id": "c9", "nombre": "SinNif", "tipo": "cliente"}]`)
	_, err = broken.ValidateAll(context.Background())
	assert.Error(t, err)
}

func TestLargeCollectionPaging(t *testing.T) {
	var records []string
	for i := 0; i < 57; i++ {
		records = append(records, fmt.Sprintf(
			`{"id": "c%02d", "nombre": "Cliente %02d", "nif": "B%02d", "tipo": "cliente"}`, i, i, i))
	}
	data := "[" + records[0]
	for _, r := range records[1:] {
		data += "," + r
	}
	data += "]"

	s := newTestService(t, data)

	resp := decodeList(t, get(t, s, "/parties?page=3&pageSize=25"))
	assert.Equal(t, 57, resp.Total)
	assert.Len(t, resp.Data, 7)
}
