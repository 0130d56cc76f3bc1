package postcache

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// shortTitleIDChars is how many leading characters of the post ID are appended to a
// generated short title to keep it unique.
const shortTitleIDChars = 6

// SlugPath is the result of deriving a short title from a markdown file path.
type SlugPath struct {
	ShortTitle string
	FileTime   *time.Time
}

func hasFileTimeInSlug(name string) bool {
	return len(name) > 11 && name[4] == '-' && name[7] == '-' && name[10] == '-'
}

// ShortTitleFor derives a URL slug from a title. When id is not empty its first characters
// are appended, so two posts with the same title still get distinct short titles.
func ShortTitleFor(title, id string) string {
	s := slug.Make(title)
	if id == "" {
		return s
	}

	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > shortTitleIDChars {
		suffix = suffix[:shortTitleIDChars]
	}

	if s == "" {
		return strings.ToLower(suffix)
	}
	return s + "-" + strings.ToLower(suffix)
}

// SlugifyPath derives a short title from a markdown file path.
// - Only the file name is used; directories are ignored.
// - The extension is trimmed.
// - If the file is named index.md, the parent directory name is used instead.
// - If the name starts with a date (2006-01-02-), the date is parsed into FileTime and removed
// from the short title.
// - The remaining name is slugified with the slug package.
func SlugifyPath(path string) SlugPath {
	if strings.TrimSpace(path) == "" {
		return SlugPath{}
	}

	path = filepath.ToSlash(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "index" {
		name = filepath.Base(filepath.Dir(path))
	}

	var fileTime *time.Time
	if hasFileTimeInSlug(name) {
		if parsed, err := time.Parse("2006-01-02", name[:10]); err == nil {
			fileTime = &parsed
			name = name[11:]
		}
	}

	return SlugPath{
		ShortTitle: slug.Make(name),
		FileTime:   fileTime,
	}
}
