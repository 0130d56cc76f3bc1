package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/postcache"
	"github.com/hypergopher/postcache/sqlitestore"
)

func setupTestEnvironment(t *testing.T) *sqlitestore.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlitestore.Open(context.Background(), dbPath)
	require.NoError(t, err, "Failed to open store")

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestSQLiteStore_CreateAndLoad(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	created := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	ok, err := store.CreatePost(ctx, &postcache.Post{
		ID:          "post-1",
		Title:       "Intro to Caching",
		ShortTitle:  "intro-to-caching",
		CreatedDate: created,
		Link:        "https://example.com",
		LinkTitle:   "Example",
		Contents:    "<p>Body</p>",
	}, []string{"infra", "Go", "  "})
	require.NoError(t, err)
	assert.True(t, ok)

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, "post-1", post.ID)
	assert.Equal(t, "Intro to Caching", post.Title)
	assert.Equal(t, "intro-to-caching", post.ShortTitle)
	assert.True(t, created.Equal(post.CreatedDate))
	assert.True(t, created.Equal(post.LastUpdatedDate))
	assert.Equal(t, "https://example.com", post.Link)
	assert.Equal(t, "Example", post.LinkTitle)
	assert.Equal(t, "<p>Body</p>", post.Contents)
	assert.ElementsMatch(t, []string{"infra", "Go"}, post.Tags)
	assert.False(t, post.IsArchived)
}

func TestSQLiteStore_CreateGeneratesIDAndShortTitle(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	ok, err := store.CreatePost(ctx, &postcache.Post{Title: "Hello World", Contents: "Body"}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.NotEmpty(t, posts[0].ID)
	assert.Regexp(t, `^hello-world-[0-9a-f]{6}$`, posts[0].ShortTitle)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), posts[0].CreatedDate)
}

func TestSQLiteStore_CreateRejectsInvalidPosts(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	cases := []struct {
		name string
		post *postcache.Post
	}{
		{name: "missing title", post: &postcache.Post{Contents: "Body"}},
		{name: "missing contents", post: &postcache.Post{Title: "Title"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := store.CreatePost(ctx, tc.post, nil)
			assert.ErrorIs(t, err, postcache.ErrInvalidPost)
			assert.False(t, ok)
		})
	}
}

func TestSQLiteStore_DuplicateShortTitle(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	_, err := store.CreatePost(ctx, &postcache.Post{Title: "A", ShortTitle: "same", Contents: "Body"}, nil)
	require.NoError(t, err)

	ok, err := store.CreatePost(ctx, &postcache.Post{Title: "B", ShortTitle: "SAME", Contents: "Body"}, nil)
	assert.ErrorIs(t, err, postcache.ErrDuplicateShortTitle)
	assert.False(t, ok)
}

func TestSQLiteStore_TagsResolveCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	_, err := store.CreatePost(ctx, &postcache.Post{ID: "a", Title: "A", Contents: "Body"}, []string{"Infra"})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &postcache.Post{ID: "b", Title: "B", Contents: "Body"}, []string{"infra"})
	require.NoError(t, err)

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, post := range posts {
		assert.Equal(t, []string{"Infra"}, post.Tags)
	}
}

func TestSQLiteStore_UpdatePost(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	_, err := store.CreatePost(ctx, &postcache.Post{
		ID:          "post-1",
		Title:       "Old",
		ShortTitle:  "old",
		CreatedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Contents:    "Old body",
	}, []string{"keep", "drop"})
	require.NoError(t, err)

	later := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return later })

	ok, err := store.UpdatePost(ctx, "post-1", &postcache.Post{
		Title:     "New",
		Link:      "https://example.com",
		LinkTitle: "Example",
		Contents:  "New body",
	}, []string{"keep", "add"})
	require.NoError(t, err)
	assert.True(t, ok)

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, "New", post.Title)
	assert.Equal(t, "old", post.ShortTitle)
	assert.Equal(t, "https://example.com", post.Link)
	assert.Equal(t, "Example", post.LinkTitle)
	assert.Equal(t, "New body", post.Contents)
	assert.ElementsMatch(t, []string{"keep", "add"}, post.Tags)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), post.CreatedDate)
	assert.Equal(t, later, post.LastUpdatedDate)
}

func TestSQLiteStore_UpdateUnknownPost(t *testing.T) {
	store := setupTestEnvironment(t)

	ok, err := store.UpdatePost(context.Background(), "missing", &postcache.Post{Title: "T", Contents: "C"}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_ArchivePost(t *testing.T) {
	ctx := context.Background()
	store := setupTestEnvironment(t)

	_, err := store.CreatePost(ctx, &postcache.Post{ID: "a", Title: "A", Contents: "Body"}, []string{"tag"})
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &postcache.Post{ID: "b", Title: "B", Contents: "Body"}, []string{"tag"})
	require.NoError(t, err)

	ok, err := store.ArchivePost(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ArchivePost(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "b", posts[0].ID)
	assert.Equal(t, []string{"tag"}, posts[0].Tags)
}

func TestSQLiteStore_CancelledContext(t *testing.T) {
	store := setupTestEnvironment(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.LoadAllActivePosts(ctx)
	require.Error(t, err)
	assert.True(t, postcache.IsStorageError(err))
}

func TestSQLiteStore_ReopenKeepsPosts(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := sqlitestore.Open(ctx, dbPath)
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, &postcache.Post{ID: "a", Title: "A", Contents: "Body"}, []string{"tag"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlitestore.Open(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	posts, err := store.LoadAllActivePosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "a", posts[0].ID)
}
