// Package query implements the request-side pipeline every read endpoint
// performs: parameter validation up front, an ordered chain of predicate
// filters, the temporal range filter, and the two pagination modes.
package query

// Predicate decides whether a record survives one filter stage. A predicate
// error aborts the whole pipeline; it is how the temporal stage reports a
// corrupt record timestamp.
type Predicate[T any] func(T) (bool, error)

// Apply runs the predicates over the collection in the order given, which
// is always the fixed declared order of the endpoint, never the order
// parameters appeared in the request. Nil predicates are no-op stages for
// absent parameters. The input slice is never mutated and the relative
// order of surviving records matches the input order.
func Apply[T any](records []T, predicates ...Predicate[T]) ([]T, error) {
	out := records
	for _, predicate := range predicates {
		if predicate == nil {
			continue
		}
		kept := make([]T, 0, len(out))
		for _, record := range out {
			ok, err := predicate(record)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, record)
			}
		}
		out = kept
	}
	if len(out) == len(records) {
		// No stage dropped anything; still return a copy so callers can
		// never alias the snapshot slice.
		out = append([]T(nil), records...)
	}
	return out, nil
}
