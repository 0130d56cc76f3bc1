package postcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements DataAccess using in-memory storage.
// It is the reference backend for tests and for running without a database.
type MemoryStore struct {
	posts       map[string]*Post
	shortTitles map[string]string // lowercased short title -> post ID
	tags        map[string]string // lowercased tag name -> canonical tag name
	mu          sync.RWMutex
	timeNow     func() time.Time
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:       make(map[string]*Post),
		shortTitles: make(map[string]string),
		tags:        make(map[string]string),
		timeNow:     time.Now,
	}
}

// SetClock replaces the clock used to stamp created and last-updated dates.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeNow = now
}

// LoadAllActivePosts returns a copy of every non-archived post
func (m *MemoryStore) LoadAllActivePosts(ctx context.Context) ([]*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("load posts", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]*Post, 0, len(m.posts))
	for _, post := range m.posts {
		if post.IsArchived {
			continue
		}
		posts = append(posts, post.Clone())
	}
	return posts, nil
}

// CreatePost adds a new post to the store
func (m *MemoryStore) CreatePost(ctx context.Context, post *Post, tagNames []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, NewStorageError("create post", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := PrepareNewPost(post, tagNames, m.timeNow())
	if err != nil {
		return false, err
	}

	if _, exists := m.posts[p.ID]; exists {
		return false, NewStorageError("create post", fmt.Errorf("post already exists: %s", p.ID))
	}

	key := strings.ToLower(p.ShortTitle)
	if _, exists := m.shortTitles[key]; exists {
		return false, fmt.Errorf("%w: %s", ErrDuplicateShortTitle, p.ShortTitle)
	}

	p.Tags = m.resolveTags(p.Tags)
	m.posts[p.ID] = p
	m.shortTitles[key] = p.ID
	return true, nil
}

// UpdatePost updates an existing post in the store
func (m *MemoryStore) UpdatePost(ctx context.Context, id string, post *Post, tagNames []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, NewStorageError("update post", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.posts[id]
	if !ok {
		return false, nil
	}

	updated := ApplyUpdate(existing, post, tagNames, m.timeNow())
	updated.Tags = m.resolveTags(updated.Tags)
	m.posts[id] = updated
	return true, nil
}

// ArchivePost marks a post in the store as archived
func (m *MemoryStore) ArchivePost(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, NewStorageError("archive post", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.posts[id]
	if !ok {
		return false, nil
	}

	archived := existing.Clone()
	archived.IsArchived = true
	archived.LastUpdatedDate = m.timeNow()
	m.posts[id] = archived
	return true, nil
}

// Get returns a copy of any post, archived or not. It is meant for tests and tooling.
func (m *MemoryStore) Get(id string) (*Post, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.posts[id]
	if !ok {
		return nil, false
	}
	return post.Clone(), true
}

// resolveTags maps each tag name to the spelling of an existing tag, registering new tags.
// The caller must hold the write lock.
func (m *MemoryStore) resolveTags(names []string) []string {
	resolved := make([]string, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		canonical, ok := m.tags[key]
		if !ok {
			m.tags[key] = name
			canonical = name
		}
		resolved = append(resolved, canonical)
	}
	return resolved
}
