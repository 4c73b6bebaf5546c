package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params represents offset-based pagination
type Params struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Validate clamps the parameters into range
func (p *Params) Validate() error {
	if p.Page < 1 {
		p.Page = 1
	}

	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}

	return nil
}

// GetOffset returns the offset of the first item on the page
func (p *Params) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit returns the page size
func (p *Params) GetLimit() int {
	return p.PageSize
}

// PageInfo represents page information
type PageInfo struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// CreatePageInfo creates page info
func CreatePageInfo(currentPage, pageSize, totalRecords int) *PageInfo {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalRecords + pageSize - 1) / pageSize
	}

	return &PageInfo{
		CurrentPage:  currentPage,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalRecords: totalRecords,
		HasNext:      currentPage < totalPages,
		HasPrevious:  currentPage > 1,
	}
}

// Slice returns the page of items described by p together with its page info.
// p is validated first.
func Slice[T any](items []T, p Params) ([]T, *PageInfo) {
	p.Validate()

	info := CreatePageInfo(p.Page, p.PageSize, len(items))
	start := p.GetOffset()
	if start >= len(items) {
		return make([]T, 0), info
	}
	end := start + p.GetLimit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], info
}
