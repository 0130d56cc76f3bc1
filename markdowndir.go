package postcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// MarkdownDir reads and writes posts as markdown files under a root directory.
// Files are laid out as <root>/<year>/<yyyy-mm-dd>-<short-title>.md.
type MarkdownDir struct {
	rootDir string
	parser  MarkdownParserFunc
	format  FrontmatterFormat
}

// NewMarkdownDir creates a MarkdownDir. A nil parser uses DefaultMarkdownParser and an empty format TOML.
func NewMarkdownDir(rootDir string, parser MarkdownParserFunc, format FrontmatterFormat) *MarkdownDir {
	if parser == nil {
		parser = DefaultMarkdownParser()
	}

	if format == "" {
		format = FrontmatterTOML
	}

	return &MarkdownDir{rootDir: rootDir, parser: parser, format: format}
}

// Walk parses every .md file under the root directory. The error channel receives at most one error and
// both channels are closed when the walk ends.
func (d *MarkdownDir) Walk(ctx context.Context) (<-chan *Post, <-chan error) {
	posts := make(chan *Post)
	errs := make(chan error, 1)

	go func() {
		defer close(posts)
		defer close(errs)

		err := filepath.WalkDir(d.rootDir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || filepath.Ext(path) != ".md" {
				return nil
			}

			post, err := ReadFile(d.parser, path)
			if err != nil {
				return fmt.Errorf("error processing markdown file %s: %w", path, err)
			}

			select {
			case posts <- post:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil {
			errs <- err
		}
	}()

	return posts, errs
}

// Path returns the file a post is written to.
func (d *MarkdownDir) Path(post *Post) string {
	created := post.CreatedDate.UTC()
	name := fmt.Sprintf("%s-%s.md", created.Format("2006-01-02"), post.ShortTitle)
	return filepath.Join(d.rootDir, created.Format("2006"), name)
}

// Write writes a post to its file, replacing any previous version.
func (d *MarkdownDir) Write(ctx context.Context, post *Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if post.ShortTitle == "" {
		return fmt.Errorf("%w: short title is required", ErrInvalidPost)
	}

	path := d.Path(post)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	content, err := MarshalMarkdownPost(post, d.format)
	if err != nil {
		return fmt.Errorf("failed to generate markdown: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// PostWriter is the write side of CachedPostStore (or of any DataAccess) used by SyncMarkdown.
type PostWriter interface {
	CreatePost(ctx context.Context, post *Post, tagNames []string) (bool, error)
	UpdatePost(ctx context.Context, id string, post *Post, tagNames []string) (bool, error)
}

// SyncResult counts what SyncMarkdown did.
type SyncResult struct {
	Created int
	Updated int
	Skipped int
}

// SyncMarkdown imports every post of a markdown directory. A post whose frontmatter carries the ID of an
// existing post updates it; any other post is created. Posts that fail validation or clash with an
// existing short title are logged and skipped. Any other error stops the import.
func SyncMarkdown(ctx context.Context, dir *MarkdownDir, store PostWriter, logger *slog.Logger) (SyncResult, error) {
	if logger == nil {
		logger = defaultLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result SyncResult
	posts, errs := dir.Walk(ctx)

	for post := range posts {
		if post.ID != "" {
			ok, err := store.UpdatePost(ctx, post.ID, post, post.Tags)
			if err != nil {
				return result, fmt.Errorf("error updating existing post %s: %w", post.ID, err)
			}
			if ok {
				result.Updated++
				continue
			}
		}

		_, err := store.CreatePost(ctx, post, post.Tags)
		switch {
		case errors.Is(err, ErrDuplicateShortTitle), errors.Is(err, ErrInvalidPost):
			logger.Warn("skipping markdown post",
				slog.String("shortTitle", post.ShortTitle),
				slog.String("error", err.Error()))
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("error creating post %s: %w", post.ShortTitle, err)
		default:
			result.Created++
		}
	}

	// Check for any errors from Walk
	for err := range errs {
		return result, fmt.Errorf("error walking filesystem: %w", err)
	}

	return result, nil
}

// ExportMarkdown writes posts to dir and returns how many were written.
func ExportMarkdown(ctx context.Context, dir *MarkdownDir, posts []*Post) (int, error) {
	for i, post := range posts {
		if err := dir.Write(ctx, post); err != nil {
			return i, fmt.Errorf("error exporting post %s: %w", post.ShortTitle, err)
		}
	}
	return len(posts), nil
}
