package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"filemeta/internal/database/migration"
	"filemeta/internal/model"
	"filemeta/internal/repository"
)

var recordColumns = []string{"id", "filename", "size", "created_at", "mime_type", "is_image", "width", "height", "color_space", "channels"}

func newMockRepo(t *testing.T) (*FileRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFileRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestFileRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &model.FileRecord{
		ID:         "0123456789abcdef0123456789abcdef.png",
		Filename:   "photo.png",
		Size:       2048,
		CreatedAt:  now,
		MimeType:   "image/png",
		IsImage:    true,
		Width:      intPtr(640),
		Height:     intPtr(480),
		ColorSpace: strPtr("srgb"),
		Channels:   intPtr(4),
	}

	mock.ExpectExec("INSERT INTO files (.+) ON CONFLICT \\(id\\) DO UPDATE SET").
		WithArgs(rec.ID, rec.Filename, rec.Size, rec.CreatedAt, rec.MimeType, rec.IsImage,
			rec.Width, rec.Height, rec.ColorSpace, rec.Channels).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(ctx, rec)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_Upsert_Error(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO files").WillReturnError(errors.New("connection reset"))

	err := repo.Upsert(context.Background(), &model.FileRecord{ID: "x", CreatedAt: time.Now()})

	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(recordColumns).
			AddRow("abc", "data.bin", 10, time.Now(), model.MimeOctetStream, false, nil, nil, nil, nil)

		mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE id = $1")).
			WithArgs("abc").
			WillReturnRows(rows)

		rec, err := repo.FindByID(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, "abc", rec.ID)
		assert.Equal(t, int64(10), rec.Size)
		assert.False(t, rec.IsImage)
		assert.Nil(t, rec.Width)
		assert.Nil(t, rec.ColorSpace)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE id = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		rec, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, rec)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))

	rows := sqlmock.NewRows(recordColumns).
		AddRow("b", "b.txt", 2, time.Now(), "text/plain", false, nil, nil, nil, nil).
		AddRow("a", "a.txt", 1, time.Now().Add(-time.Minute), "text/plain", false, nil, nil, nil, nil)
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(20, 20).
		WillReturnRows(rows)

	res, err := repo.List(ctx, repository.PageQuery{Page: 2, PageSize: 20})

	require.NoError(t, err)
	assert.Equal(t, 45, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "b", res.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_List_Normalizes(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(repository.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	res, err := repo.List(context.Background(), repository.PageQuery{Page: 0, PageSize: -3})

	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_List_CountError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files")).
		WillReturnError(errors.New("boom"))

	res, err := repo.List(context.Background(), repository.PageQuery{Page: 1, PageSize: 5})

	assert.Error(t, err)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_DeleteByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = $1")).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	removed, err := repo.DeleteByID(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, removed)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = $1")).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 0))
	removed, err = repo.DeleteByID(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// newSQLiteRepo returns a repository over a migrated in-memory SQLite database.
func newSQLiteRepo(t *testing.T) *FileRepository {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.EnsureMigrated(context.Background(), db.DB, "sqlite", logger))
	return NewFileRepository(db)
}

func TestFileRepository_SQLite_UpsertKeepsCreatedAt(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := &model.FileRecord{ID: "aa.txt", Filename: "a.txt", Size: 1, CreatedAt: first, MimeType: "text/plain"}
	require.NoError(t, repo.Upsert(ctx, rec))

	again := *rec
	again.Size = 99
	again.CreatedAt = first.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, &again))

	res, err := repo.List(ctx, repository.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	got, err := repo.FindByID(ctx, "aa.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.Size)
	assert.True(t, first.Equal(got.CreatedAt), "created_at changed to %s", got.CreatedAt)
}

func TestFileRepository_SQLite_ImageFieldsRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	rec := &model.FileRecord{
		ID:         "bb.png",
		Filename:   "photo.png",
		Size:       2048,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		MimeType:   "image/png",
		IsImage:    true,
		Width:      intPtr(640),
		Height:     intPtr(480),
		ColorSpace: strPtr("srgb"),
		Channels:   intPtr(4),
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.FindByID(ctx, "bb.png")
	require.NoError(t, err)
	assert.True(t, got.IsImage)
	require.NotNil(t, got.Width)
	assert.Equal(t, 640, *got.Width)
	assert.Equal(t, 480, *got.Height)
	assert.Equal(t, "srgb", *got.ColorSpace)
	assert.Equal(t, 4, *got.Channels)
}

func TestFileRepository_SQLite_ListOrder(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.Upsert(ctx, &model.FileRecord{
			ID:        id,
			Filename:  id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			MimeType:  model.MimeOctetStream,
		}))
	}

	res, err := repo.List(ctx, repository.PageQuery{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "r2", res.Items[0].ID)

	res, err = repo.List(ctx, repository.PageQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"r3", "r2", "r1"}, ids)

	res, err = repo.List(ctx, repository.PageQuery{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 3, res.Total)
}

func TestFileRepository_SQLite_Delete(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	removed, err := repo.DeleteByID(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, repo.Upsert(ctx, &model.FileRecord{ID: "cc", Filename: "c", CreatedAt: time.Now(), MimeType: model.MimeOctetStream}))
	removed, err = repo.DeleteByID(ctx, "cc")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = repo.FindByID(ctx, "cc")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
