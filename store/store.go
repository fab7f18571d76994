// Package store provides reload-per-request access to the flat JSON files
// backing each catalog collection. Every Reload call re-reads the file, so
// readers always observe the latest on-disk snapshot at the cost of
// re-parsing on every request.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/josuabad/TuGranjita/errors"
)

// Record pairs a decoded value with the raw bytes it was decoded from.
// Filters operate on Value; the validation gate and the response writer use
// Raw, so what gets checked and served is exactly what is stored.
type Record[T any] struct {
	Value T
	Raw   json.RawMessage
}

// Source is the contract the query pipeline consumes: one call, one
// immutable snapshot. Implementations may cache or watch the backing store
// without changing call sites.
type Source[T any] interface {
	Reload(ctx context.Context) ([]Record[T], error)
}

// JSONFile is a Source backed by a single JSON array file
type JSONFile[T any] struct {
	kind   string
	path   string
	logger *slog.Logger
}

// NewJSONFile creates a file-backed source for one collection kind
func NewJSONFile[T any](kind, path string, logger *slog.Logger) *JSONFile[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONFile[T]{
		kind:   kind,
		path:   path,
		logger: logger.With("collection", kind),
	}
}

// Reload reads the backing file and returns its records in file order.
// An unreadable file or malformed JSON is a data-integrity failure.
func (s *JSONFile[T]) Reload(ctx context.Context) ([]Record[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapIntegrity(err, "store", "Reload",
			fmt.Sprintf("loading %s collection", s.kind))
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Error("backing file unreadable", "path", s.path, "error", err)
		return nil, errors.WrapIntegrity(errors.ErrStoreUnreadable, "store", "Reload",
			fmt.Sprintf("reading %s data", s.kind))
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		s.logger.Error("backing file malformed", "path", s.path, "error", err)
		return nil, errors.WrapIntegrity(errors.ErrStoreMalformed, "store", "Reload",
			fmt.Sprintf("parsing %s data", s.kind))
	}

	records := make([]Record[T], 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.logger.Error("record undecodable", "index", i, "error", err)
			return nil, errors.WrapIntegrity(errors.ErrStoreMalformed, "store", "Reload",
				fmt.Sprintf("decoding %s record at index %d", s.kind, i))
		}
		records = append(records, Record[T]{Value: v, Raw: raw})
	}

	return records, nil
}

// Values extracts the decoded values of a record slice
func Values[T any](records []Record[T]) []T {
	out := make([]T, len(records))
	for i, r := range records {
		out[i] = r.Value
	}
	return out
}

// Raws extracts the raw bytes of a record slice
func Raws[T any](records []Record[T]) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		out[i] = r.Raw
	}
	return out
}
