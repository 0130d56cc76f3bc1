package postcache

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

// PostMeta is the frontmatter of a markdown post file.
type PostMeta struct {
	ID         string    `yaml:"id,omitempty" toml:"id,omitempty"`
	Title      string    `yaml:"title" toml:"title"`
	ShortTitle string    `yaml:"shortTitle,omitempty" toml:"shortTitle,omitempty"`
	Created    time.Time `yaml:"created,omitempty" toml:"created,omitempty"`
	Updated    time.Time `yaml:"updated,omitempty" toml:"updated,omitempty"`
	Link       string    `yaml:"link,omitempty" toml:"link,omitempty"`
	LinkTitle  string    `yaml:"linkTitle,omitempty" toml:"linkTitle,omitempty"`
	Tags       []string  `yaml:"tags,omitempty" toml:"tags,omitempty"`
	Archived   bool      `yaml:"archived,omitempty" toml:"archived,omitempty"`
}

// Meta returns the frontmatter describing the post.
func (p *Post) Meta() PostMeta {
	return PostMeta{
		ID:         p.ID,
		Title:      p.Title,
		ShortTitle: p.ShortTitle,
		Created:    p.CreatedDate,
		Updated:    p.LastUpdatedDate,
		Link:       p.Link,
		LinkTitle:  p.LinkTitle,
		Tags:       p.Tags,
		Archived:   p.IsArchived,
	}
}

// MarkdownParserFunc converts a markdown file, frontmatter included, to a Post.
type MarkdownParserFunc func(input []byte) (*Post, error)

// DefaultMarkdownParser returns a MarkdownParserFunc that uses the default goldmark parser with the following extensions:
// - GFM
// - Typographer
// - Footnote
// - Frontmatter
// It also enables the following parser options:
// - AutoHeadingID
// - Attribute
//
// Raw HTML is passed through so exported posts, whose contents are already HTML, import unchanged.
func DefaultMarkdownParser() MarkdownParserFunc {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			extension.Footnote,
			&frontmatter.Extender{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	return func(input []byte) (*Post, error) {
		return MarkdownToPost(md, input)
	}
}

// MarkdownToPost converts markdown content to a Post. The body is rendered to HTML into Contents and the
// frontmatter, when present, fills in the other fields.
func MarkdownToPost(md goldmark.Markdown, content []byte) (*Post, error) {
	var buf bytes.Buffer
	ctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}

	html := strings.TrimSpace(buf.String())
	data := frontmatter.Get(ctx)
	if data == nil {
		return &Post{Contents: html}, nil
	}

	var meta PostMeta
	if err := data.Decode(&meta); err != nil {
		return &Post{Contents: html}, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}

	return &Post{
		ID:              meta.ID,
		Title:           meta.Title,
		ShortTitle:      meta.ShortTitle,
		CreatedDate:     meta.Created,
		LastUpdatedDate: meta.Updated,
		Link:            meta.Link,
		LinkTitle:       meta.LinkTitle,
		Contents:        html,
		Tags:            NormalizeTagNames(meta.Tags),
		IsArchived:      meta.Archived,
	}, nil
}

// ReadFile reads a markdown file from the filesystem and converts it to a Post.
// When the frontmatter leaves them out, the short title is derived from the file name, the created
// date from a 2006-01-02- file name prefix and the last-updated date from the file's modification time.
func ReadFile(markdownParser MarkdownParserFunc, path string) (*Post, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	post, err := markdownParser(file)
	if err != nil {
		return nil, fmt.Errorf("failed to convert markdown to post: %w", err)
	}

	if strings.TrimSpace(post.Contents) == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingPostContent, path)
	}

	slugPath := SlugifyPath(path)
	if post.ShortTitle == "" {
		post.ShortTitle = slugPath.ShortTitle
	}

	if slugPath.FileTime != nil && post.CreatedDate.IsZero() {
		post.CreatedDate = *slugPath.FileTime
	}

	if post.LastUpdatedDate.IsZero() {
		post.LastUpdatedDate = stat.ModTime()
	}

	return post, nil
}
