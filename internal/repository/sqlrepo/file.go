package sqlrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"filemeta/internal/model"
	"filemeta/internal/repository"
)

// FileRepository is a SQL implementation of repository.FileRepository.
// The statements are valid for both PostgreSQL and SQLite.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

var _ repository.FileRepository = (*FileRepository)(nil)

const fileColumns = `id, filename, size, created_at, mime_type, is_image, width, height, color_space, channels`

// Upsert writes rec in a single INSERT ... ON CONFLICT statement.
// On conflict every column except id and created_at is replaced.
func (r *FileRepository) Upsert(ctx context.Context, rec *model.FileRecord) error {
	const q = `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			filename    = excluded.filename,
			size        = excluded.size,
			mime_type   = excluded.mime_type,
			is_image    = excluded.is_image,
			width       = excluded.width,
			height      = excluded.height,
			color_space = excluded.color_space,
			channels    = excluded.channels
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Filename,
		rec.Size,
		rec.CreatedAt,
		rec.MimeType,
		rec.IsImage,
		rec.Width,
		rec.Height,
		rec.ColorSpace,
		rec.Channels,
	)
	return err
}

// FindByID fetches a single record by its ID.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	var rec model.FileRecord
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// List returns records using page/size pagination and a total count.
func (r *FileRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.FileRecord], error) {
	pq = pq.Normalize()

	// Count total rows
	const qCount = `SELECT COUNT(*) FROM files`
	var total int
	if err := r.db.GetContext(ctx, &total, qCount); err != nil {
		return nil, err
	}

	// Fetch page
	const qList = `
		SELECT ` + fileColumns + `
		FROM files
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	items := make([]model.FileRecord, 0)
	if err := r.db.SelectContext(ctx, &items, qList, pq.PageSize, pq.Offset()); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.FileRecord]{
		Items: items,
		Total: total,
	}, nil
}

// DeleteByID removes a record by ID and reports whether a row was removed.
// A missing row is not an error.
func (r *FileRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	const q = `DELETE FROM files WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
