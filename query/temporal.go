package query

import (
	"net/url"
	"time"

	"github.com/josuabad/TuGranjita/errors"
)

// ParseInstant parses an ISO-8601 instant with an explicit numeric offset
// or a bare Z (UTC offset zero). Fractional seconds are accepted.
func ParseInstant(component, name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.BadRequestf(component, "parseParams",
			"'%s' is not a valid ISO-8601 instant: %q", name, raw)
	}
	return t, nil
}

// TimeRange is an inclusive temporal filter window. A nil boundary means
// that side is unbounded.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Empty reports whether neither boundary was requested
func (tr TimeRange) Empty() bool {
	return tr.From == nil && tr.To == nil
}

// Contains reports whether t satisfies both inclusive boundaries
func (tr TimeRange) Contains(t time.Time) bool {
	if tr.From != nil && t.Before(*tr.From) {
		return false
	}
	if tr.To != nil && t.After(*tr.To) {
		return false
	}
	return true
}

// ParseTimeRange parses the optional `from` and `to` boundary parameters.
// Either failing to parse is a bad request naming the offending value, and
// so is an inverted range - a from after to is rejected, never silently
// answered with an empty set.
func ParseTimeRange(component string, values url.Values) (TimeRange, error) {
	var tr TimeRange

	if values.Has("from") {
		from, err := ParseInstant(component, "from", values.Get("from"))
		if err != nil {
			return TimeRange{}, err
		}
		tr.From = &from
	}

	if values.Has("to") {
		to, err := ParseInstant(component, "to", values.Get("to"))
		if err != nil {
			return TimeRange{}, err
		}
		tr.To = &to
	}

	if tr.From != nil && tr.To != nil && tr.From.After(*tr.To) {
		return TimeRange{}, errors.WrapBadRequest(errors.ErrRangeInverted,
			component, "parseParams", "'from' must not be after 'to'")
	}

	return tr, nil
}
