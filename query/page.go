package query

// Paginate returns the requested page of the filtered collection plus the
// pre-slice total, so callers can compute whether further pages exist.
// Pages past the end are empty, not errors.
func Paginate[T any](records []T, p PageParams) ([]T, int) {
	total := len(records)

	start := (p.Page - 1) * p.PageSize
	if start >= total {
		return []T{}, total
	}

	end := start + p.PageSize
	if end > total {
		end = total
	}
	return records[start:end], total
}

// Limit returns the first n filtered records plus the pre-slice total. The
// engine does not sort; readings arrive already time-ordered from upstream
// filtering.
func Limit[T any](records []T, n int) ([]T, int) {
	total := len(records)
	if n >= total {
		return records, total
	}
	return records[:n], total
}
