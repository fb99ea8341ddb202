package document

import "context"

// Filter represents field-based filtering criteria for document stores.
type Filter map[string]interface{}

// Sort specifies field and direction for sorting results.
type Sort struct {
	Field string
	Order SortOrder
}

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Direction returns the MongoDB sort direction: 1 ascending, -1 descending.
func (o SortOrder) Direction() int {
	if o == SortDesc {
		return -1
	}
	return 1
}

// Pagination specifies page-based pagination. A zero PageSize means no limit.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns how many documents to skip.
func (p Pagination) Offset() int {
	if p.Page <= 0 || p.PageSize <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size.
func (p Pagination) Limit() int {
	if p.PageSize < 0 {
		return 0
	}
	return p.PageSize
}

// QueryOptions encapsulates filtering, sorting, and pagination options for document queries.
type QueryOptions struct {
	Filter     Filter
	Sort       Sort
	Pagination Pagination
}

// Reader provides read operations for document entities.
type Reader[T any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) (*T, error)
	FindAll(ctx context.Context, opts QueryOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer provides write operations for document entities.
type Writer[T any, ID comparable] interface {
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id ID) error
}

// Repository combines Reader and Writer interfaces for document stores.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}
