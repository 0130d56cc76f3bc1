package postcache

import (
	"slices"
	"strings"
)

// Relevance weights. They are a tuned heuristic, keep them stable.
const (
	titleMatchScore     = 10
	titleWordBonus      = 5
	linkTitleMatchScore = 5
	contentMatchScore   = 1
	contentRepeatMax    = 4
	tagMatchScore       = 8
)

// SearchTerms splits a query into lowercase, whitespace-separated terms.
// Repeated terms are dropped; the order of first occurrence is kept.
func SearchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if !slices.Contains(terms, field) {
			terms = append(terms, field)
		}
	}
	return terms
}

// Score computes the relevance of a post for a set of lowercase search terms.
// Each term scores independently and the results are summed:
//   - +10 if the title contains the term, +5 more if it is a whole title word
//   - +5 if the link title contains the term
//   - +1 if the contents contain the term, plus one per further occurrence, at most +4
//   - +8 if any tag name contains the term
//
// A score of 0 means the post does not match.
func Score(post *Post, terms []string) int {
	if post == nil {
		return 0
	}

	title := strings.ToLower(post.Title)
	titleWords := strings.Fields(title)
	linkTitle := strings.ToLower(post.LinkTitle)
	contents := strings.ToLower(post.Contents)

	tags := make([]string, len(post.Tags))
	for i, tag := range post.Tags {
		tags[i] = strings.ToLower(tag)
	}

	score := 0
	for _, term := range terms {
		if term == "" {
			continue
		}

		if strings.Contains(title, term) {
			score += titleMatchScore
			if slices.Contains(titleWords, term) {
				score += titleWordBonus
			}
		}

		if strings.Contains(linkTitle, term) {
			score += linkTitleMatchScore
		}

		if occurrences := strings.Count(contents, term); occurrences > 0 {
			score += contentMatchScore + min(occurrences-1, contentRepeatMax)
		}

		for _, tag := range tags {
			if strings.Contains(tag, term) {
				score += tagMatchScore
				break
			}
		}
	}

	return score
}
