package postcache_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/postcache"
)

func TestPost_Clone(t *testing.T) {
	post := &postcache.Post{ID: "a", Title: "Title", Tags: []string{"go"}}
	clone := post.Clone()

	clone.Title = "Changed"
	clone.Tags[0] = "changed"

	assert.Equal(t, "Title", post.Title)
	assert.Equal(t, []string{"go"}, post.Tags)

	var nilPost *postcache.Post
	assert.Nil(t, nilPost.Clone())
}

func TestPost_URLPath(t *testing.T) {
	// 2024-01-02 03:00 UTC is still January 1st in Los Angeles.
	post := &postcache.Post{
		ShortTitle:  "my-post",
		CreatedDate: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, "/archive/2024/01/02/my-post", post.URLPath(time.UTC))
	assert.Equal(t, "/archive/2024/01/01/my-post", post.URLPath(postcache.LoadLocation(postcache.DefaultTimeZone)))
	assert.Equal(t, "/archive/2024/01/02/my-post", post.URLPath(nil))
}

func TestPost_HasTag(t *testing.T) {
	post := &postcache.Post{Tags: []string{"Infra", "go"}}

	assert.True(t, post.HasTag("infra"))
	assert.True(t, post.HasTag("GO"))
	assert.False(t, post.HasTag("rust"))
}

func TestPost_HasLink(t *testing.T) {
	post := &postcache.Post{}
	assert.False(t, post.HasLink())
	assert.False(t, post.HasLinkTitle())

	post.Link = "https://example.com"
	post.LinkTitle = "Example"
	assert.True(t, post.HasLink())
	assert.True(t, post.HasLinkTitle())
}

func TestPost_Validate(t *testing.T) {
	cases := []struct {
		name    string
		post    *postcache.Post
		wantErr bool
	}{
		{name: "valid", post: &postcache.Post{Title: "T", Contents: "C"}},
		{name: "nil", post: nil, wantErr: true},
		{name: "blank title", post: &postcache.Post{Title: "  ", Contents: "C"}, wantErr: true},
		{name: "blank contents", post: &postcache.Post{Title: "T", Contents: "\n"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.post.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, postcache.ErrInvalidPost)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeTagNames(t *testing.T) {
	assert.Equal(t,
		[]string{"Infra", "go"},
		postcache.NormalizeTagNames([]string{" Infra ", "", "go", "INFRA", "  "}))
	assert.Empty(t, postcache.NormalizeTagNames(nil))
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, "America/Los_Angeles", postcache.LoadLocation("").String())
	assert.Equal(t, "Europe/Paris", postcache.LoadLocation("Europe/Paris").String())
	assert.Equal(t, time.UTC, postcache.LoadLocation("Nowhere/Special"))
}

func TestPost_SerializeDeserialize(t *testing.T) {
	post := &postcache.Post{
		ID:          "a",
		Title:       "Title",
		ShortTitle:  "title",
		CreatedDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Tags:        []string{"go"},
		IsArchived:  true,
	}

	data, err := post.Serialize()
	require.NoError(t, err)

	decoded, err := postcache.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, post.ID, decoded.ID)
	assert.Equal(t, post.Tags, decoded.Tags)
	assert.True(t, decoded.IsArchived)
	assert.True(t, post.CreatedDate.Equal(decoded.CreatedDate))

	_, err = postcache.Deserialize([]byte("{"))
	assert.Error(t, err)
}
