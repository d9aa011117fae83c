package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage clamps page to at least 1 and limit to 1..maxPageSize
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	return page, min(limit, maxPageSize)
}
