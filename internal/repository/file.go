package repository

import (
	"context"
	"errors"

	"filemeta/internal/model"
)

// DefaultPageSize applies when a caller passes a non-positive page size.
const DefaultPageSize = 20

// ErrNotFound is returned by lookups of an id that has no record.
var ErrNotFound = errors.New("file record not found")

// FileRepository defines data access for file records using SQL queries only.
// No business logic here, strictly persistence operations.
type FileRepository interface {
	// Upsert inserts the record or, when the id exists, replaces every mutable column
	// in one statement. created_at keeps the value of the first insert.
	Upsert(ctx context.Context, rec *model.FileRecord) error

	// FindByID returns the record for id or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)

	// List returns one page of records, most recent first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.FileRecord], error)

	// DeleteByID removes the record and reports whether a row was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// PageQuery holds 1-based page pagination parameters.
type PageQuery struct {
	Page     int
	PageSize int
}

// Normalize returns pq with non-positive values replaced by page 1 and DefaultPageSize.
// No upper bound is applied.
func (pq PageQuery) Normalize() PageQuery {
	if pq.Page <= 0 {
		pq.Page = 1
	}
	if pq.PageSize <= 0 {
		pq.PageSize = DefaultPageSize
	}
	return pq
}

// Offset is the number of rows skipped before the page.
func (pq PageQuery) Offset() int {
	return (pq.Page - 1) * pq.PageSize
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
