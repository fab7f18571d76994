package schema

import (
	"encoding/json"

	"github.com/josuabad/TuGranjita/errors"
	"github.com/josuabad/TuGranjita/store"
)

// CheckPage validates every record about to be placed on the wire - only
// the page or limited slice, not the whole backing collection. The first
// invalid record aborts the entire response with an error embedding the
// first reported violation; no partial page is ever served.
func CheckPage[T any](v *Validator, component, kind string, records []store.Record[T], id func(T) string) error {
	for _, record := range records {
		violations, err := v.Validate(kind, record.Raw)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			return errors.Integrityf(component, "CheckPage",
				"record %q does not conform to %s schema: %s",
				id(record.Value), kind, violations[0])
		}
	}
	return nil
}

// CheckEnvelope validates a fully assembled response envelope. Used by the
// federation resolver, which promises its callers unified-schema output.
func CheckEnvelope(v *Validator, component string, envelope json.RawMessage) error {
	violations, err := v.Validate(KindEnvelope, envelope)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return errors.Integrityf(component, "CheckEnvelope",
			"response does not conform to unified schema: %s", violations[0])
	}
	return nil
}
