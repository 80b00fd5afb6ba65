package repository

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// normalizePage clamps caller-supplied paging into a usable offset and limit.
func normalizePage(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return (page - 1) * size, size
}
