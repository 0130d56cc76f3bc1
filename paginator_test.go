package postcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypergopher/postcache"
)

func TestNewPaginator(t *testing.T) {
	posts := []*postcache.Post{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name        string
		total       int
		currentPage int
		pageSize    int
		expected    postcache.Paginator
	}{
		{
			name:        "first of several pages",
			total:       5,
			currentPage: 1,
			pageSize:    2,
			expected: postcache.Paginator{
				Posts: posts, TotalPages: 3, CurrentPage: 1, NextPage: 2, PrevPage: 1,
				PageSize: 2, HasMore: true, HasPrev: false, HasPosts: true, TotalPosts: 5,
			},
		},
		{
			name:        "middle page",
			total:       5,
			currentPage: 2,
			pageSize:    2,
			expected: postcache.Paginator{
				Posts: posts, TotalPages: 3, CurrentPage: 2, NextPage: 3, PrevPage: 1,
				PageSize: 2, HasMore: true, HasPrev: true, HasPosts: true, TotalPosts: 5,
			},
		},
		{
			name:        "exactly full last page",
			total:       4,
			currentPage: 2,
			pageSize:    2,
			expected: postcache.Paginator{
				Posts: posts, TotalPages: 2, CurrentPage: 2, NextPage: 2, PrevPage: 1,
				PageSize: 2, HasMore: false, HasPrev: true, HasPosts: true, TotalPosts: 4,
			},
		},
		{
			name:        "page and size normalized",
			total:       25,
			currentPage: 0,
			pageSize:    0,
			expected: postcache.Paginator{
				Posts: posts, TotalPages: 3, CurrentPage: 1, NextPage: 2, PrevPage: 1,
				PageSize: postcache.DefaultPageSize, HasMore: true, HasPrev: false, HasPosts: true, TotalPosts: 25,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, postcache.NewPaginator(posts, tt.total, tt.currentPage, tt.pageSize))
		})
	}
}

func TestNewPaginator_Empty(t *testing.T) {
	paginator := postcache.NewPaginator(nil, 0, 1, 10)

	assert.Equal(t, 0, paginator.TotalPages)
	assert.Equal(t, 1, paginator.NextPage)
	assert.False(t, paginator.HasMore)
	assert.False(t, paginator.HasPosts)
}
