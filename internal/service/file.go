package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"filemeta/internal/identity"
	"filemeta/internal/model"
	"filemeta/internal/repository"
	"filemeta/internal/storage"
)

// MaxPageSize is the default upper bound on page_size for List.
const MaxPageSize = 100

// FileListResult is the service-level DTO for a page of file records.
type FileListResult struct {
	Items    []model.FileRecord `json:"data"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int                `json:"total"`
}

// FileService defines the read and delete use cases over file records.
type FileService interface {
	// Get returns a single record by its ID.
	Get(ctx context.Context, id string) (*model.FileRecord, error)

	// List returns one page of records, most recent first, with the total count.
	// Non-positive page and pageSize fall back to defaults; pageSize is capped.
	List(ctx context.Context, page, pageSize int) (*FileListResult, error)

	// Delete removes the record, then the stored bytes on a best-effort basis.
	Delete(ctx context.Context, id string) error
}

// fileService is a concrete implementation of FileService.
type fileService struct {
	store       storage.Storage
	repo        repository.FileRepository
	logger      *slog.Logger
	maxPageSize int
}

// NewFileService constructs a new FileService. A non-positive maxPageSize selects MaxPageSize.
func NewFileService(store storage.Storage, repo repository.FileRepository, logger *slog.Logger, maxPageSize int) FileService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &fileService{
		store:       store,
		repo:        repo,
		logger:      logger.With(slog.String("component", "file_service")),
		maxPageSize: maxPageSize,
	}
}

func (s *fileService) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	if !identity.Valid(id) {
		return nil, ErrInvalidID
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find file record: %w", ErrPersistence, err)
	}
	return rec, nil
}

func (s *fileService) List(ctx context.Context, page, pageSize int) (*FileListResult, error) {
	pq := repository.PageQuery{Page: page, PageSize: pageSize}.Normalize()
	if pq.PageSize > s.maxPageSize {
		pq.PageSize = s.maxPageSize
	}

	res, err := s.repo.List(ctx, pq)
	if err != nil {
		return nil, fmt.Errorf("%w: list file records: %w", ErrPersistence, err)
	}
	return &FileListResult{
		Items:    res.Items,
		Page:     pq.Page,
		PageSize: pq.PageSize,
		Total:    res.Total,
	}, nil
}

// Delete removes the row first. Artifact removal failures are logged, not returned.
func (s *fileService) Delete(ctx context.Context, id string) error {
	if !identity.Valid(id) {
		return ErrInvalidID
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: delete file record: %w", ErrPersistence, err)
	}
	if !removed {
		// Deleted concurrently between lookup and delete.
		return ErrNotFound
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Warn("artifact_delete_failed",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
