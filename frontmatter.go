package postcache

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type FrontmatterFormat string

const (
	FrontmatterTOML FrontmatterFormat = "toml"
	FrontmatterYAML FrontmatterFormat = "yaml"
)

// ParseFrontmatterFormat returns the format named by s. An empty name is TOML.
func ParseFrontmatterFormat(s string) (FrontmatterFormat, error) {
	switch FrontmatterFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FrontmatterTOML:
		return FrontmatterTOML, nil
	case FrontmatterYAML:
		return FrontmatterYAML, nil
	default:
		return "", fmt.Errorf("unsupported frontmatter format: %s", s)
	}
}

// GenerateFrontmatter encodes meta in the given format, without delimiters.
func GenerateFrontmatter(meta PostMeta, format FrontmatterFormat) (string, error) {
	var frontmatter strings.Builder

	switch format {
	case FrontmatterYAML:
		yamlData, err := yaml.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML frontmatter: %w", err)
		}
		frontmatter.Write(yamlData)

	case FrontmatterTOML:
		encoder := toml.NewEncoder(&frontmatter)
		if err := encoder.Encode(meta); err != nil {
			return "", fmt.Errorf("failed to marshal TOML frontmatter: %w", err)
		}

	default:
		return "", fmt.Errorf("unsupported frontmatter format: %s", format)
	}

	return frontmatter.String(), nil
}

// MarshalMarkdownPost renders a post as a markdown file: frontmatter in the given format followed by the
// contents.
func MarshalMarkdownPost(post *Post, format FrontmatterFormat) ([]byte, error) {
	frontmatter, err := GenerateFrontmatter(post.Meta(), format)
	if err != nil {
		return nil, err
	}

	var content string
	switch format {
	case FrontmatterYAML:
		content = fmt.Sprintf("---\n%s---\n\n%s\n", frontmatter, post.Contents)
	case FrontmatterTOML:
		content = fmt.Sprintf("+++\n%s+++\n\n%s\n", frontmatter, post.Contents)
	}

	return []byte(content), nil
}
