package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hypergopher/postcache"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements postcache.DataAccess on a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	dbPath  string
	timeNow func() time.Time
}

// NewSQLiteStore wraps an open database. Call Init before using it.
func NewSQLiteStore(db *sql.DB, dbPath string) *SQLiteStore {
	return &SQLiteStore{db: db, dbPath: dbPath, timeNow: time.Now}
}

// Open opens or creates the database at dbPath and initializes its schema.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}

	store := NewSQLiteStore(db, dbPath)
	if err := store.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// SetClock replaces the clock used to stamp created and last-updated dates.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.timeNow = now
}

// DBPath returns the path the database was opened from.
func (s *SQLiteStore) DBPath() string {
	return s.dbPath
}

// Init initializes the SQLiteStore, creating the necessary tables or indexes if they do not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	query := `
		-- Table for holding posts
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			short_title TEXT NOT NULL COLLATE NOCASE UNIQUE,
			created TEXT NOT NULL,
			updated TEXT NOT NULL,
			link TEXT NOT NULL DEFAULT '',
			link_title TEXT NOT NULL DEFAULT '',
			contents TEXT NOT NULL,
			archived BOOL NOT NULL DEFAULT 0
		);

		-- Index on archived flag
		CREATE INDEX IF NOT EXISTS posts_archived_idx ON posts(archived);

		-- Table for tags
		CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL COLLATE NOCASE UNIQUE
		);

		-- Table for post tags
		CREATE TABLE IF NOT EXISTS post_tags (
			post_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY(post_id, tag_id),
			FOREIGN KEY(post_id) REFERENCES posts(id) ON DELETE CASCADE,
			FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS post_tags_tag_id_idx ON post_tags(tag_id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return postcache.NewStorageError("init schema", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadAllActivePosts returns every post that is not archived, with its tags.
func (s *SQLiteStore) LoadAllActivePosts(ctx context.Context) ([]*postcache.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, short_title, created, updated, link, link_title, contents, archived
		FROM posts
		WHERE archived = 0
	`)
	if err != nil {
		return nil, postcache.NewStorageError("load posts", err)
	}
	defer rows.Close()

	var posts []*postcache.Post
	byID := make(map[string]*postcache.Post)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, postcache.NewStorageError("load posts", err)
		}
		posts = append(posts, post)
		byID[post.ID] = post
	}
	if err := rows.Err(); err != nil {
		return nil, postcache.NewStorageError("load posts", err)
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT pt.post_id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		JOIN posts p ON p.id = pt.post_id
		WHERE p.archived = 0
		ORDER BY t.name
	`)
	if err != nil {
		return nil, postcache.NewStorageError("load tags", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var postID, name string
		if err := tagRows.Scan(&postID, &name); err != nil {
			return nil, postcache.NewStorageError("load tags", err)
		}
		if post, ok := byID[postID]; ok {
			post.Tags = append(post.Tags, name)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, postcache.NewStorageError("load tags", err)
	}

	return posts, nil
}

// CreatePost inserts a new post and links its tags, creating tags that do not exist yet.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *postcache.Post, tagNames []string) (bool, error) {
	p, err := postcache.PrepareNewPost(post, tagNames, s.timeNow())
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, postcache.NewStorageError("create post", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE short_title = ?`, p.ShortTitle).Scan(&exists)
	switch {
	case err == nil:
		return false, fmt.Errorf("%w: %s", postcache.ErrDuplicateShortTitle, p.ShortTitle)
	case !errors.Is(err, sql.ErrNoRows):
		return false, postcache.NewStorageError("create post", err)
	}

	query := `
		INSERT INTO posts (
			id, title, short_title, created, updated,
			link, link_title, contents, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		p.ID, p.Title, p.ShortTitle, formatTime(p.CreatedDate), formatTime(p.LastUpdatedDate),
		p.Link, p.LinkTitle, p.Contents, p.IsArchived); err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%w: %s", postcache.ErrDuplicateShortTitle, p.ShortTitle)
		}
		return false, postcache.NewStorageError("create post", err)
	}

	if err := s.insertTags(ctx, tx, p.ID, p.Tags); err != nil {
		return false, postcache.NewStorageError("create post", err)
	}

	if err := tx.Commit(); err != nil {
		return false, postcache.NewStorageError("create post", err)
	}

	return true, nil
}

// UpdatePost overwrites the mutable fields of a post and replaces its tags.
func (s *SQLiteStore) UpdatePost(ctx context.Context, id string, post *postcache.Post, tagNames []string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	row := tx.QueryRowContext(ctx, `
		SELECT id, title, short_title, created, updated, link, link_title, contents, archived
		FROM posts
		WHERE id = ?
	`, id)
	existing, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	p := postcache.ApplyUpdate(existing, post, tagNames, s.timeNow())

	query := `
		UPDATE posts SET
			title = ?, link = ?, link_title = ?, contents = ?, updated = ?
		WHERE id = ?
	`
	if _, err = tx.ExecContext(ctx, query,
		p.Title, p.Link, p.LinkTitle, p.Contents, formatTime(p.LastUpdatedDate),
		p.ID); err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	// Delete existing tags
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, p.ID); err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	if err := s.insertTags(ctx, tx, p.ID, p.Tags); err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	if err := tx.Commit(); err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	return true, nil
}

// ArchivePost sets the archived flag of a post.
func (s *SQLiteStore) ArchivePost(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET archived = 1, updated = ? WHERE id = ?`,
		formatTime(s.timeNow()), id)
	if err != nil {
		return false, postcache.NewStorageError("archive post", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, postcache.NewStorageError("archive post", err)
	}

	return n > 0, nil
}

// insertTags links a post to each tag, resolving names case-insensitively to existing tags.
func (s *SQLiteStore) insertTags(ctx context.Context, tx *sql.Tx, postID string, tagNames []string) error {
	for _, name := range tagNames {
		var tagID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			tagID = uuid.NewString()
			if _, err := tx.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, tagID, name); err != nil {
				return fmt.Errorf("failed to create tag %s: %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to resolve tag %s: %w", name, err)
		}

		query := `INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`
		if _, err := tx.ExecContext(ctx, query, postID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %s: %w", name, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*postcache.Post, error) {
	var (
		post             postcache.Post
		created, updated string
	)

	if err := row.Scan(&post.ID, &post.Title, &post.ShortTitle, &created, &updated,
		&post.Link, &post.LinkTitle, &post.Contents, &post.IsArchived); err != nil {
		return nil, err
	}

	var err error
	if post.CreatedDate, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("invalid created date for post %s: %w", post.ID, err)
	}
	if post.LastUpdatedDate, err = time.Parse(timeFormat, updated); err != nil {
		return nil, fmt.Errorf("invalid updated date for post %s: %w", post.ID, err)
	}

	return &post, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
