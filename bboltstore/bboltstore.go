package bboltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hypergopher/postcache"
)

const (
	bboltFile         = "postcache.db"
	bucketPosts       = "posts"
	bucketShortTitles = "short_titles"
	bucketTags        = "tags"
)

// BBoltStore implements postcache.DataAccess on a bbolt database. Posts are stored as JSON by ID, with a
// lowercased short-title index and a lowercased tag-name index holding each tag's canonical spelling.
type BBoltStore struct {
	boltIndex *bbolt.DB
	dataDir   string
	timeNow   func() time.Time
}

// New creates a new BBoltStore that keeps its database in dataDir. Call Init before using it.
func New(dataDir string) *BBoltStore {
	return &BBoltStore{
		dataDir: dataDir,
		timeNow: time.Now,
	}
}

// Open creates and initializes a BBoltStore.
func Open(dataDir string) (*BBoltStore, error) {
	bbs := New(dataDir)
	if err := bbs.Init(); err != nil {
		return nil, err
	}
	return bbs, nil
}

// Init opens the database and creates its buckets.
func (bbs *BBoltStore) Init() error {
	boltIndex, err := bbs.initBolt()
	if err != nil {
		return fmt.Errorf("failed to initialize bbolt: %w", err)
	}
	bbs.boltIndex = boltIndex

	return nil
}

// SetClock replaces the clock used to stamp created and last-updated dates.
func (bbs *BBoltStore) SetClock(now func() time.Time) {
	bbs.timeNow = now
}

// Path returns the database file path.
func (bbs *BBoltStore) Path() string {
	return filepath.Join(bbs.dataDir, bboltFile)
}

func (bbs *BBoltStore) Close() error {
	if bbs.boltIndex != nil {
		return bbs.boltIndex.Close()
	}
	return nil
}

// LoadAllActivePosts returns every post that is not archived.
func (bbs *BBoltStore) LoadAllActivePosts(ctx context.Context) ([]*postcache.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, postcache.NewStorageError("load posts", err)
	}

	var posts []*postcache.Post
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			post, err := postcache.Deserialize(v)
			if err != nil {
				return fmt.Errorf("error deserializing post %s: %w", k, err)
			}
			if !post.IsArchived {
				posts = append(posts, post)
			}
			return nil
		})
	})
	if err != nil {
		return nil, postcache.NewStorageError("load posts", err)
	}

	return posts, nil
}

// CreatePost stores a new post.
func (bbs *BBoltStore) CreatePost(ctx context.Context, post *postcache.Post, tagNames []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, postcache.NewStorageError("create post", err)
	}

	p, err := postcache.PrepareNewPost(post, tagNames, bbs.timeNow())
	if err != nil {
		return false, err
	}

	var duplicate bool
	err = bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		posts := tx.Bucket([]byte(bucketPosts))
		shortTitles := tx.Bucket([]byte(bucketShortTitles))
		if posts == nil || shortTitles == nil {
			return fmt.Errorf("bucket not found")
		}

		if posts.Get([]byte(p.ID)) != nil {
			return fmt.Errorf("post already exists: %s", p.ID)
		}

		key := []byte(strings.ToLower(p.ShortTitle))
		if shortTitles.Get(key) != nil {
			duplicate = true
			return nil
		}

		tags, err := resolveTags(tx, p.Tags)
		if err != nil {
			return err
		}
		p.Tags = tags

		if err := putPost(posts, p); err != nil {
			return err
		}

		return shortTitles.Put(key, []byte(p.ID))
	})
	if err != nil {
		return false, postcache.NewStorageError("create post", err)
	}

	if duplicate {
		return false, fmt.Errorf("%w: %s", postcache.ErrDuplicateShortTitle, p.ShortTitle)
	}

	return true, nil
}

// UpdatePost overwrites the mutable fields of a post and replaces its tags.
func (bbs *BBoltStore) UpdatePost(ctx context.Context, id string, post *postcache.Post, tagNames []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	var found bool
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		posts := tx.Bucket([]byte(bucketPosts))
		if posts == nil {
			return fmt.Errorf("bucket not found")
		}

		existing, err := getPost(posts, id)
		if err != nil || existing == nil {
			return err
		}
		found = true

		p := postcache.ApplyUpdate(existing, post, tagNames, bbs.timeNow())
		if p.Tags, err = resolveTags(tx, p.Tags); err != nil {
			return err
		}

		return putPost(posts, p)
	})
	if err != nil {
		return false, postcache.NewStorageError("update post", err)
	}

	return found, nil
}

// ArchivePost sets the archived flag of a post.
func (bbs *BBoltStore) ArchivePost(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, postcache.NewStorageError("archive post", err)
	}

	var found bool
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		posts := tx.Bucket([]byte(bucketPosts))
		if posts == nil {
			return fmt.Errorf("bucket not found")
		}

		existing, err := getPost(posts, id)
		if err != nil || existing == nil {
			return err
		}
		found = true

		existing.IsArchived = true
		existing.LastUpdatedDate = bbs.timeNow()
		return putPost(posts, existing)
	})
	if err != nil {
		return false, postcache.NewStorageError("archive post", err)
	}

	return found, nil
}

func (bbs *BBoltStore) initBolt() (*bbolt.DB, error) {
	if err := os.MkdirAll(bbs.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	boltIndex, err := bbolt.Open(bbs.Path(), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt index: %w", err)
	}

	err = boltIndex.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketPosts, bucketShortTitles, bucketTags} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})

	if err != nil {
		_ = boltIndex.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return boltIndex, nil
}

// getPost returns the post stored under id, or nil if there is none.
func getPost(b *bbolt.Bucket, id string) (*postcache.Post, error) {
	postBytes := b.Get([]byte(id))
	if postBytes == nil {
		return nil, nil
	}

	post, err := postcache.Deserialize(postBytes)
	if err != nil {
		return nil, fmt.Errorf("error deserializing post %s: %w", id, err)
	}
	return post, nil
}

func putPost(b *bbolt.Bucket, post *postcache.Post) error {
	postBytes, err := post.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize post: %w", err)
	}

	if err := b.Put([]byte(post.ID), postBytes); err != nil {
		return fmt.Errorf("failed to put post in bucket: %w", err)
	}
	return nil
}

// resolveTags maps each tag name to the spelling of an existing tag, registering new tags.
func resolveTags(tx *bbolt.Tx, names []string) ([]string, error) {
	b := tx.Bucket([]byte(bucketTags))
	if b == nil {
		return nil, fmt.Errorf("bucket not found")
	}

	resolved := make([]string, 0, len(names))
	for _, name := range names {
		key := []byte(strings.ToLower(name))
		if canonical := b.Get(key); canonical != nil {
			resolved = append(resolved, string(canonical))
			continue
		}

		if err := b.Put(key, []byte(name)); err != nil {
			return nil, fmt.Errorf("failed to create tag %s: %w", name, err)
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}
