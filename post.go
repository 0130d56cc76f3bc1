package postcache

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultTimeZone is the zone used to build archive URL paths when none is configured.
const DefaultTimeZone = "America/Los_Angeles"

// Post represents a blog post
type Post struct {
	ID              string    `json:"id"`              // ID is the opaque unique identifier of the post
	Title           string    `json:"title"`           // Title is the display title
	ShortTitle      string    `json:"shortTitle"`      // ShortTitle is the unique, URL-friendly slug of the post
	CreatedDate     time.Time `json:"createdDate"`     // CreatedDate is when the post was first published
	LastUpdatedDate time.Time `json:"lastUpdatedDate"` // LastUpdatedDate is bumped on every update or archive
	Link            string    `json:"link"`            // Link is the optional external link the post points at
	LinkTitle       string    `json:"linkTitle"`       // LinkTitle is the optional title of the external link
	Contents        string    `json:"contents"`        // Contents is the body of the post (HTML or markdown)
	Tags            []string  `json:"tags"`            // Tags is the set of tag names
	IsArchived      bool      `json:"isArchived"`      // IsArchived hides the post from every cache-backed read
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return &c
}

// HasLink returns true if the post points at an external link
func (p *Post) HasLink() bool {
	return p.Link != ""
}

// HasLinkTitle returns true if the post has a title for its external link
func (p *Post) HasLinkTitle() bool {
	return p.LinkTitle != ""
}

// HasTag returns true if the post carries the tag, compared case-insensitively.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// LocalCreatedDate returns the created date in the given location. A nil location uses UTC.
func (p *Post) LocalCreatedDate(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return p.CreatedDate.In(loc)
}

// URLPath returns the archive path of the post, e.g. /archive/2024/01/02/my-post.
// The date parts are taken from the created date in the given location.
func (p *Post) URLPath(loc *time.Location) string {
	local := p.LocalCreatedDate(loc)
	return fmt.Sprintf("/archive/%d/%02d/%02d/%s", local.Year(), local.Month(), local.Day(), p.ShortTitle)
}

// Validate checks the fields a durable store requires before persisting a new post.
func (p *Post) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidPost)
	}

	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPost)
	}

	if strings.TrimSpace(p.Contents) == "" {
		return fmt.Errorf("%w: contents are required", ErrInvalidPost)
	}

	return nil
}

// NormalizeTagNames trims tag names, drops empty ones and removes case-insensitive duplicates.
// The first spelling of each tag wins.
func NormalizeTagNames(names []string) []string {
	result := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		key := strings.ToLower(name)
		if seen[key] {
			continue
		}

		seen[key] = true
		result = append(result, name)
	}
	return result
}

// LoadLocation resolves a time zone name, falling back to UTC when it is unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimeZone
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Serialize serializes the post to a byte slice
func (p *Post) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// Deserialize deserializes the byte slice to a post
func Deserialize(data []byte) (*Post, error) {
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	return &post, nil
}
