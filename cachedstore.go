package postcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultSearchResults is the number of results SearchPosts and FullTextSearch return when the caller
// asks for fewer than one.
const DefaultSearchResults = 50

// Options configures a CachedPostStore.
type Options struct {
	FullText bool             // FullText builds a bleve index with every snapshot for FullTextSearch.
	Logger   *slog.Logger     // Logger is the logger used by the store. Default is a debug logger to stderr.
	Now      func() time.Time // Now stamps snapshot load times. Default is time.Now.
}

// CachedPostStore is a read-through cache of every active post. All reads are served from one
// in-memory snapshot which is loaded on the first read, replaced by RefreshCache and removed by every
// successful write. The snapshot is never evicted any other way.
type CachedPostStore struct {
	data       DataAccess
	current    atomic.Pointer[snapshot]
	generation atomic.Uint64 // bumped by every invalidation
	refreshSem chan struct{} // capacity 1, held while a refresh loads and swaps
	fullText   bool
	logger     *slog.Logger
	timeNow    func() time.Time
}

// NewCachedPostStore creates a cache in front of data. The cache starts empty.
func NewCachedPostStore(data DataAccess, opts Options) *CachedPostStore {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &CachedPostStore{
		data:       data,
		refreshSem: make(chan struct{}, 1),
		fullText:   opts.FullText,
		logger:     opts.Logger,
		timeNow:    opts.Now,
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{
			AddSource: false,
			Level:     slog.LevelDebug,
		}))
}

// RefreshCache loads every active post and replaces the snapshot. Only one refresh runs at a time; others
// wait for it or for ctx. On failure the current snapshot, if any, is kept and the error is returned.
func (c *CachedPostStore) RefreshCache(ctx context.Context) error {
	_, err := c.refresh(ctx, true)
	return err
}

// EnsureLoaded returns every cached post, newest first, loading the snapshot first if it is absent.
// A failed load is returned to the caller.
func (c *CachedPostStore) EnsureLoaded(ctx context.Context) ([]*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return clonePosts(snap.posts), nil
}

// Invalidate removes the snapshot so the next read reloads it.
func (c *CachedPostStore) Invalidate() {
	c.generation.Add(1)
	c.current.Store(nil)
}

// LastRefreshed returns when the current snapshot was loaded, or false if there is none.
func (c *CachedPostStore) LastRefreshed() (time.Time, bool) {
	snap := c.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.loadedAt, true
}

func (c *CachedPostStore) load(ctx context.Context) (*snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	return c.refresh(ctx, false)
}

// refresh loads and installs a new snapshot. When force is false a snapshot installed by a refresh that
// finished while this one waited is returned instead of loading again.
func (c *CachedPostStore) refresh(ctx context.Context, force bool) (*snapshot, error) {
	select {
	case c.refreshSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.refreshSem }()

	if !force {
		if snap := c.current.Load(); snap != nil {
			return snap, nil
		}
	}

	generation := c.generation.Load()
	started := c.timeNow()

	posts, err := c.data.LoadAllActivePosts(ctx)
	if err != nil {
		c.logger.Error("failed to refresh post cache", slog.String("error", err.Error()))
		return nil, fmt.Errorf("error refreshing post cache: %w", err)
	}

	snap := newSnapshot(posts, started)
	if c.fullText {
		index, err := newFullTextIndex(snap.posts)
		if err != nil {
			c.logger.Warn("full-text index unavailable, falling back to relevance search",
				slog.String("error", err.Error()))
		}
		snap.index = index
	}

	// A write that completed during the load may not be reflected in it. Leave the entry empty so the
	// next read loads again.
	if c.generation.Load() != generation {
		c.logger.Debug("post cache invalidated during refresh, discarding load")
		return snap, nil
	}

	c.current.Store(snap)
	if c.generation.Load() != generation {
		c.current.CompareAndSwap(snap, nil)
	}

	c.logger.Info("post cache refreshed", slog.Int("posts", snap.len()))
	return snap, nil
}

// GetPosts returns the topN newest posts.
func (c *CachedPostStore) GetPosts(ctx context.Context, topN int) ([]*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return clonePosts(snap.top(topN)), nil
}

// GetPostsPaged returns a 1-based page of posts, newest first. A page below 1 is treated as 1 and a page
// size below 1 as DefaultPageSize.
func (c *CachedPostStore) GetPostsPaged(ctx context.Context, page, pageSize int) (Paginator, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return Paginator{}, err
	}

	if err := ctx.Err(); err != nil {
		return Paginator{}, err
	}

	page, pageSize = normalizePage(page, pageSize)
	return NewPaginator(clonePosts(snap.page(page, pageSize)), snap.len(), page, pageSize), nil
}

// GetPostByID returns the post with the given ID, or nil if there is no active post with that ID.
func (c *CachedPostStore) GetPostByID(ctx context.Context, id string) (*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return snap.byID[id].Clone(), nil
}

// GetPostsForTag returns the posts carrying tagName, compared case-insensitively, newest first.
func (c *CachedPostStore) GetPostsForTag(ctx context.Context, tagName string) ([]*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return clonePosts(snap.byTag[strings.ToLower(strings.TrimSpace(tagName))]), nil
}

// GetPostsForDateRange returns the posts created at or after start and before end, newest first.
func (c *CachedPostStore) GetPostsForDateRange(ctx context.Context, start, end time.Time) ([]*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return clonePosts(snap.forDateRange(start, end)), nil
}

// GetPostForShortTitle returns the post whose short title matches case-insensitively, or nil.
func (c *CachedPostStore) GetPostForShortTitle(ctx context.Context, shortTitle string) (*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return snap.byShortTitle[strings.ToLower(shortTitle)].Clone(), nil
}

// GetPostForDateRangeAndShortTitle resolves an archive URL: the post created in [start, end) whose short
// title matches case-insensitively, or nil.
func (c *CachedPostStore) GetPostForDateRangeAndShortTitle(ctx context.Context, start, end time.Time, shortTitle string) (*Post, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, post := range snap.forDateRange(start, end) {
		if strings.EqualFold(post.ShortTitle, shortTitle) {
			return post.Clone(), nil
		}
	}
	return nil, nil
}

// GetTags returns every tag of an active post with its post count, sorted by name.
func (c *CachedPostStore) GetTags(ctx context.Context) ([]TagCount, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tags := make([]TagCount, len(snap.tags))
	copy(tags, snap.tags)
	return tags, nil
}

// SearchPosts ranks every post against the whitespace-separated terms of query with Score and returns at
// most maxResults matches, best first. A blank query returns no posts without loading the cache.
func (c *CachedPostStore) SearchPosts(ctx context.Context, query string, maxResults int) ([]*Post, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return []*Post{}, nil
	}

	if maxResults < 1 {
		maxResults = DefaultSearchResults
	}

	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return clonePosts(snap.search(terms, maxResults)), nil
}

// FullTextSearch runs query as a bleve query string against the snapshot's full-text index. When the
// index is disabled, or the query fails, it falls back to SearchPosts.
func (c *CachedPostStore) FullTextSearch(ctx context.Context, query string, maxResults int) ([]*Post, error) {
	if strings.TrimSpace(query) == "" {
		return []*Post{}, nil
	}

	if maxResults < 1 {
		maxResults = DefaultSearchResults
	}

	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if snap.index == nil {
		return clonePosts(snap.search(SearchTerms(query), maxResults)), nil
	}

	ids, err := snap.index.search(query, maxResults)
	if err != nil {
		c.logger.Warn("full-text search failed, falling back to relevance search",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return clonePosts(snap.search(SearchTerms(query), maxResults)), nil
	}

	posts := make([]*Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := snap.byID[id]; ok {
			posts = append(posts, post.Clone())
		}
	}
	return posts, nil
}

// CreatePost creates a post through the data access layer and invalidates the cache when it succeeds.
// Errors are returned unchanged.
func (c *CachedPostStore) CreatePost(ctx context.Context, post *Post, tagNames []string) (bool, error) {
	ok, err := c.data.CreatePost(ctx, post, tagNames)
	if err != nil {
		return ok, err
	}

	if ok {
		c.invalidateAfter("create")
	}
	return ok, nil
}

// UpdatePost updates a post through the data access layer and invalidates the cache when it succeeds.
// It returns false if the post does not exist.
func (c *CachedPostStore) UpdatePost(ctx context.Context, id string, post *Post, tagNames []string) (bool, error) {
	ok, err := c.data.UpdatePost(ctx, id, post, tagNames)
	if err != nil {
		return ok, err
	}

	if ok {
		c.invalidateAfter("update", slog.String("id", id))
	}
	return ok, nil
}

// ArchivePost archives a post through the data access layer and invalidates the cache when it succeeds.
// It returns false if the post does not exist.
func (c *CachedPostStore) ArchivePost(ctx context.Context, id string) (bool, error) {
	ok, err := c.data.ArchivePost(ctx, id)
	if err != nil {
		return ok, err
	}

	if ok {
		c.invalidateAfter("archive", slog.String("id", id))
	}
	return ok, nil
}

func (c *CachedPostStore) invalidateAfter(op string, attrs ...any) {
	c.Invalidate()
	c.logger.Info("post cache invalidated", append([]any{slog.String("op", op)}, attrs...)...)
}
