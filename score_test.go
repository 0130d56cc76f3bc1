package postcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypergopher/postcache"
)

func TestSearchTerms(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "empty", query: "", expected: []string{}},
		{name: "blank", query: "   \t ", expected: []string{}},
		{name: "lowercases", query: "Caching", expected: []string{"caching"}},
		{name: "splits on any whitespace", query: "go  caching\tstrategies", expected: []string{"go", "caching", "strategies"}},
		{name: "drops repeats keeping first order", query: "go Caching GO caching", expected: []string{"go", "caching"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, postcache.SearchTerms(tc.query))
		})
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		name     string
		post     *postcache.Post
		terms    []string
		expected int
	}{
		{
			name:     "no match",
			post:     &postcache.Post{Title: "Other", Contents: "nothing here"},
			terms:    []string{"caching"},
			expected: 0,
		},
		{
			name:     "title substring",
			post:     &postcache.Post{Title: "Precaching data"},
			terms:    []string{"caching"},
			expected: 10,
		},
		{
			name:     "title whole word",
			post:     &postcache.Post{Title: "Intro to Caching"},
			terms:    []string{"caching"},
			expected: 15,
		},
		{
			name:     "link title",
			post:     &postcache.Post{LinkTitle: "A caching article"},
			terms:    []string{"caching"},
			expected: 5,
		},
		{
			name:     "content once",
			post:     &postcache.Post{Contents: "about caching strategies"},
			terms:    []string{"caching"},
			expected: 1,
		},
		{
			name:     "content three times",
			post:     &postcache.Post{Contents: "caching, caching and more caching"},
			terms:    []string{"caching"},
			expected: 3,
		},
		{
			name:     "content bonus is capped",
			post:     &postcache.Post{Contents: "go go go go go go go go"},
			terms:    []string{"go"},
			expected: 5,
		},
		{
			name:     "tag counts once",
			post:     &postcache.Post{Tags: []string{"Infra", "infrastructure"}},
			terms:    []string{"infra"},
			expected: 8,
		},
		{
			name:     "case-insensitive fields",
			post:     &postcache.Post{Title: "CACHING", LinkTitle: "Caching", Contents: "CaChInG", Tags: []string{"CACHING"}},
			terms:    []string{"caching"},
			expected: 15 + 5 + 1 + 8,
		},
		{
			name:     "terms sum",
			post:     &postcache.Post{Title: "Go caching", Contents: "go"},
			terms:    []string{"go", "caching"},
			expected: (15 + 1) + 15,
		},
		{
			name:     "empty term ignored",
			post:     &postcache.Post{Title: "Go"},
			terms:    []string{""},
			expected: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, postcache.Score(tc.post, tc.terms))
		})
	}

	assert.Equal(t, 0, postcache.Score(nil, []string{"go"}))
}
