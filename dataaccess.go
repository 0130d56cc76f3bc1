package postcache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DataAccess is the slim contract the cache needs from the durable post store.
// Implementations return a *StorageError (or an error wrapping one) for connectivity and
// query failures. Validation failures such as ErrDuplicateShortTitle are returned wrapped
// so callers can match them with errors.Is.
type DataAccess interface {
	// LoadAllActivePosts returns every post that is not archived, in no particular order.
	LoadAllActivePosts(ctx context.Context) ([]*Post, error)
	// CreatePost persists a new post, resolving each tag name to an existing tag or creating it.
	CreatePost(ctx context.Context, post *Post, tagNames []string) (bool, error)
	// UpdatePost overwrites the mutable fields of an existing post and reconciles its tags.
	// It returns false if the post does not exist.
	UpdatePost(ctx context.Context, id string, post *Post, tagNames []string) (bool, error)
	// ArchivePost marks a post as archived. It returns false if the post does not exist.
	ArchivePost(ctx context.Context, id string) (bool, error)
}

// PrepareNewPost returns a copy of post ready to be persisted by a DataAccess implementation:
// it validates the post, assigns a UUID when the ID is empty, derives the short title from the
// title when it is empty, defaults the created date to now and sets the last-updated date to
// the created date. Tag names are normalized with NormalizeTagNames.
func PrepareNewPost(post *Post, tagNames []string, now time.Time) (*Post, error) {
	if err := post.Validate(); err != nil {
		return nil, err
	}

	p := post.Clone()
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}

	if strings.TrimSpace(p.ShortTitle) == "" {
		p.ShortTitle = ShortTitleFor(p.Title, p.ID)
	}

	if p.CreatedDate.IsZero() {
		p.CreatedDate = now
	}
	p.LastUpdatedDate = p.CreatedDate
	p.Tags = NormalizeTagNames(tagNames)

	return p, nil
}

// ApplyUpdate copies the mutable fields of post onto existing, replaces the tag set and bumps
// the last-updated date. The ID, short title, created date and archived flag are kept.
func ApplyUpdate(existing, post *Post, tagNames []string, now time.Time) *Post {
	p := existing.Clone()
	p.Title = post.Title
	p.Link = post.Link
	p.LinkTitle = post.LinkTitle
	p.Contents = post.Contents
	p.Tags = NormalizeTagNames(tagNames)
	p.LastUpdatedDate = now
	return p
}
