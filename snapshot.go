package postcache

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// TagCount is a tag name with the number of active posts carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// snapshot is the immutable, fully derived view of every active post at the time of a load.
// It is never modified after newSnapshot returns; a refresh builds and swaps in a new one.
type snapshot struct {
	posts        []*Post            // posts sorted by created date, newest first
	byID         map[string]*Post   // post ID -> post
	byShortTitle map[string]*Post   // lowercased short title -> post
	byTag        map[string][]*Post // lowercased tag name -> posts, newest first
	tags         []TagCount         // tag counts sorted by name
	index        *fullTextIndex     // nil when full-text search is disabled or failed to build
	loadedAt     time.Time
}

// newSnapshot builds a snapshot from loaded posts. Archived posts are dropped even if the
// data access layer returned them.
func newSnapshot(loaded []*Post, loadedAt time.Time) *snapshot {
	posts := make([]*Post, 0, len(loaded))
	for _, post := range loaded {
		if post == nil || post.IsArchived {
			continue
		}
		posts = append(posts, post.Clone())
	}

	// Loads arrive in no particular order; ties on created date fall back to ID so that
	// two loads of the same posts produce the same snapshot.
	slices.SortStableFunc(posts, func(a, b *Post) int {
		if c := b.CreatedDate.Compare(a.CreatedDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	s := &snapshot{
		posts:        posts,
		byID:         make(map[string]*Post, len(posts)),
		byShortTitle: make(map[string]*Post, len(posts)),
		byTag:        make(map[string][]*Post),
		loadedAt:     loadedAt,
	}

	tagNames := make(map[string]string)
	for _, post := range posts {
		if _, ok := s.byID[post.ID]; !ok {
			s.byID[post.ID] = post
		}

		key := strings.ToLower(post.ShortTitle)
		if _, ok := s.byShortTitle[key]; !ok {
			s.byShortTitle[key] = post
		}

		for _, tag := range NormalizeTagNames(post.Tags) {
			tagKey := strings.ToLower(tag)
			if _, ok := tagNames[tagKey]; !ok {
				tagNames[tagKey] = tag
			}
			s.byTag[tagKey] = append(s.byTag[tagKey], post)
		}
	}

	s.tags = make([]TagCount, 0, len(s.byTag))
	for key, tagged := range s.byTag {
		s.tags = append(s.tags, TagCount{Name: tagNames[key], Count: len(tagged)})
	}
	slices.SortFunc(s.tags, func(a, b TagCount) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return s
}

func (s *snapshot) len() int {
	return len(s.posts)
}

// top returns at most n posts, newest first.
func (s *snapshot) top(n int) []*Post {
	if n <= 0 {
		return nil
	}
	return s.posts[:min(n, len(s.posts))]
}

// page returns the posts of a 1-based page. Both arguments must be at least 1.
func (s *snapshot) page(page, pageSize int) []*Post {
	start, end := paginationBounds(page, pageSize, len(s.posts))
	return s.posts[start:end]
}

// forDateRange returns posts created in [start, end), newest first.
func (s *snapshot) forDateRange(start, end time.Time) []*Post {
	var result []*Post
	for _, post := range s.posts {
		if !post.CreatedDate.Before(start) && post.CreatedDate.Before(end) {
			result = append(result, post)
		}
	}
	return result
}

// search scores every post against the terms and returns at most maxResults matches,
// best first. Equal scores keep snapshot order.
func (s *snapshot) search(terms []string, maxResults int) []*Post {
	type scored struct {
		post  *Post
		score int
	}

	var matches []scored
	for _, post := range s.posts {
		if score := Score(post, terms); score > 0 {
			matches = append(matches, scored{post: post, score: score})
		}
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	result := make([]*Post, 0, min(len(matches), maxResults))
	for _, m := range matches[:min(len(matches), maxResults)] {
		result = append(result, m.post)
	}
	return result
}

// clonePosts copies posts so callers cannot mutate the snapshot.
func clonePosts(posts []*Post) []*Post {
	result := make([]*Post, len(posts))
	for i, post := range posts {
		result[i] = post.Clone()
	}
	return result
}
