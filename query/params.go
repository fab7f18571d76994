package query

import (
	"net/url"
	"strconv"

	"github.com/josuabad/TuGranjita/errors"
)

// Pagination defaults and ceilings
const (
	DefaultPage     = 1
	DefaultPageSize = 25
	MaxPageSize     = 100

	DefaultLimit = 100
	MaxLimit     = 1000
)

// PositiveInt parses a positive-integer query parameter. An absent
// parameter yields the default; a present one, empty string included, must
// be a strictly-positive-integer string within the ceiling (0 = unbounded).
// Violations reject early with a bad-request error naming the parameter -
// callers never get silently clamped values that would mask their mistakes.
func PositiveInt(component, name string, values url.Values, def, ceiling int) (int, error) {
	if !values.Has(name) {
		return def, nil
	}

	raw := values.Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.BadRequestf(component, "parseParams",
			"'%s' must be a positive integer, got %q", name, raw)
	}
	if ceiling > 0 && n > ceiling {
		return 0, errors.BadRequestf(component, "parseParams",
			"'%s' must be between 1 and %d, got %d", name, ceiling, n)
	}
	return n, nil
}

// PageParams holds page-mode pagination parameters
type PageParams struct {
	Page     int
	PageSize int
}

// ParsePageParams validates page-mode parameters: page positive (default 1),
// pageSize 1..100 (default 25)
func ParsePageParams(component string, values url.Values) (PageParams, error) {
	page, err := PositiveInt(component, "page", values, DefaultPage, 0)
	if err != nil {
		return PageParams{}, err
	}
	pageSize, err := PositiveInt(component, "pageSize", values, DefaultPageSize, MaxPageSize)
	if err != nil {
		return PageParams{}, err
	}
	return PageParams{Page: page, PageSize: pageSize}, nil
}

// ParseLimit validates the limit-mode parameter: 1..1000, default 100
func ParseLimit(component string, values url.Values) (int, error) {
	return PositiveInt(component, "limit", values, DefaultLimit, MaxLimit)
}

// OptionalString returns a present, non-empty string parameter. A parameter
// that is present but empty is malformed, not absent.
func OptionalString(component string, values url.Values, name string) (string, error) {
	if !values.Has(name) {
		return "", nil
	}
	raw := values.Get(name)
	if raw == "" {
		return "", errors.BadRequestf(component, "parseParams",
			"'%s' must not be empty when present", name)
	}
	return raw, nil
}
