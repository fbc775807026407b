package database

import "gorm.io/gorm"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pagination struct {
	Page     int
	PageSize int
}

func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page is one slice of a listing plus the total row count.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// Paginate counts query, then loads the requested page into a Page ordered by order.
func Paginate[T any](query *gorm.DB, p Pagination, order string) (*Page[T], error) {
	p.Normalize()

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]T, 0, p.PageSize)
	if err := query.Session(&gorm.Session{}).Order(order).Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	return &Page[T]{
		Data:       items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
	}, nil
}
