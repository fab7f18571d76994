// Package schema provides the schema-conformance capability: one compiled
// JSON Schema per entity kind, immutable after construction and safe to
// share across concurrent requests without locking.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	"github.com/josuabad/TuGranjita/errors"
)

// Entity kinds, named after the schema files that define them
const (
	KindParty    = "ClienteProveedor"
	KindSensor   = "SensorIoT"
	KindReading  = "LecturaSensor"
	KindEnvelope = "schemaUnificado"
)

// Violation is one schema-conformance failure, in the order reported
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validator holds the compiled schemas. Construct once at startup and hand
// to request handlers by dependency injection.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles a validator from raw schema documents keyed by kind
func New(sources map[string]json.RawMessage) (*Validator, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(sources))
	for kind, raw := range sources {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, errors.WrapIntegrity(err, "schema", "New",
				fmt.Sprintf("compiling %s schema", kind))
		}
		schemas[kind] = compiled
	}
	return &Validator{schemas: schemas}, nil
}

// Load compiles a validator from `<Kind>.schema.json` files in dir
func Load(dir string, kinds ...string) (*Validator, error) {
	sources := make(map[string]json.RawMessage, len(kinds))
	for _, kind := range kinds {
		path := filepath.Join(dir, kind+".schema.json")
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapIntegrity(err, "schema", "Load",
				fmt.Sprintf("reading %s schema", kind))
		}
		sources[kind] = raw
	}
	return New(sources)
}

// Kinds returns the kinds this validator can check
func (v *Validator) Kinds() []string {
	kinds := make([]string, 0, len(v.schemas))
	for kind := range v.schemas {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Validate checks one record against the compiled schema for its kind.
// A nil violation slice means the record conforms. The error return is for
// validator misuse or engine failure, not for non-conformance.
func (v *Validator) Validate(kind string, record json.RawMessage) ([]Violation, error) {
	compiled, ok := v.schemas[kind]
	if !ok {
		return nil, errors.Integrityf("schema", "Validate", "no schema compiled for kind %q", kind)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(record))
	if err != nil {
		return nil, errors.WrapIntegrity(err, "schema", "Validate",
			fmt.Sprintf("validating %s record", kind))
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, Violation{
			Path:    desc.Field(),
			Message: desc.Description(),
		})
	}
	return violations, nil
}
