// Package feed renders the newest cached posts as an Atom feed.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/hypergopher/postcache"
)

const (
	atomNamespace = "http://www.w3.org/2005/Atom"

	// DefaultMaxPostCount is how many posts a feed carries when FeedOptions leaves it unset.
	DefaultMaxPostCount = 20
)

// FeedOptions describes the blog the feed is generated for.
type FeedOptions struct {
	BlogTitle    string         // BlogTitle is the feed title.
	BlogURL      string         // BlogURL is the absolute base URL of the blog, without a trailing slash.
	AuthorName   string         // AuthorName is the feed author.
	MaxPostCount int            // MaxPostCount is the number of newest posts in the feed. Default is 20.
	Location     *time.Location // Location is the blog time zone used for post URLs. Default is UTC.
}

// PostSource supplies the newest posts. CachedPostStore implements it.
type PostSource interface {
	GetPosts(ctx context.Context, topN int) ([]*postcache.Post, error)
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	XMLNS   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	Link    atomLink    `xml:"link"`
	ID      string      `xml:"id"`
	Author  atomAuthor  `xml:"author"`
	Updated string      `xml:"updated"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Updated    string         `xml:"updated"`
	Content    atomContent    `xml:"content"`
	Link       atomLink       `xml:"link"`
	Published  string         `xml:"published"`
	Categories []atomCategory `xml:"category"`
}

// Atom builds Atom feed documents.
type Atom struct {
	opts FeedOptions
}

// NewAtom creates an Atom feed generator.
func NewAtom(opts FeedOptions) *Atom {
	if opts.MaxPostCount < 1 {
		opts.MaxPostCount = DefaultMaxPostCount
	}

	if opts.Location == nil {
		opts.Location = time.UTC
	}

	opts.BlogURL = strings.TrimSuffix(opts.BlogURL, "/")
	return &Atom{opts: opts}
}

// Generate renders the newest MaxPostCount posts of source.
func (a *Atom) Generate(ctx context.Context, source PostSource) ([]byte, error) {
	posts, err := source.GetPosts(ctx, a.opts.MaxPostCount)
	if err != nil {
		return nil, fmt.Errorf("error loading posts for feed: %w", err)
	}
	return a.XMLForPosts(posts)
}

// XMLForPosts renders posts, which must be sorted newest first, as an Atom document. The feed's updated
// date is the created date of the first post, or the zero time for an empty feed.
func (a *Atom) XMLForPosts(posts []*postcache.Post) ([]byte, error) {
	feed := atomFeed{
		XMLNS:   atomNamespace,
		Title:   a.opts.BlogTitle,
		Link:    atomLink{Href: a.opts.BlogURL + "/", Rel: "alternate"},
		ID:      a.opts.BlogURL + "/",
		Author:  atomAuthor{Name: a.opts.AuthorName},
		Updated: formatTime(time.Time{}),
		Entries: make([]atomEntry, 0, len(posts)),
	}

	if len(posts) > 0 {
		feed.Updated = formatTime(posts[0].CreatedDate)
	}

	for _, post := range posts {
		feed.Entries = append(feed.Entries, a.entryForPost(post))
	}

	out, err := xml.Marshal(feed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal atom feed: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}

func (a *Atom) entryForPost(post *postcache.Post) atomEntry {
	postURL := a.opts.BlogURL + post.URLPath(a.opts.Location)

	entry := atomEntry{
		ID:        postURL,
		Title:     post.Title,
		Updated:   formatTime(post.LastUpdatedDate),
		Content:   atomContent{Type: "html", Body: post.Contents},
		Link:      atomLink{Href: postURL, Rel: "alternate"},
		Published: formatTime(post.CreatedDate),
	}

	for _, tag := range post.Tags {
		entry.Categories = append(entry.Categories, atomCategory{Term: tag})
	}

	return entry
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
