package store

// Page-based listing defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 50
)

// PageParams are the page and limit of an offset-paginated listing.
type PageParams struct {
	Page  int
	Limit int
}

// Normalize applies defaults to values below 1 and caps the limit.
func (p *PageParams) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// Offset returns how many records precede the page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func (p PageParams) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
