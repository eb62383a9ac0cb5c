package background

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps categories to source URLs a fetcher can download from.
//
//	categories:
//	  minecraft:
//	    - https://www.youtube.com/watch?v=...
//	default:
//	  - https://www.youtube.com/watch?v=...
type Catalog struct {
	Categories map[string][]string `yaml:"categories"`
	Default    []string            `yaml:"default"`
}

// LoadCatalog reads a yaml catalog. An empty path returns an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{Categories: map[string][]string{}}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read background catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse background catalog %s: %w", path, err)
	}
	if c.Categories == nil {
		c.Categories = map[string][]string{}
	}
	normalized := make(map[string][]string, len(c.Categories))
	for k, v := range c.Categories {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Categories = normalized
	return c, nil
}

// URLs returns the sources for category, falling back to the default list.
func (c *Catalog) URLs(category string) []string {
	if urls, ok := c.Categories[strings.ToLower(strings.TrimSpace(category))]; ok && len(urls) > 0 {
		return urls
	}
	return c.Default
}
