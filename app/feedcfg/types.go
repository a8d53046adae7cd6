package feedcfg

import (
	"github.com/lysyi3m/feedcomb/app/timeline"
)

// Configuration types

// Config describes one named feed definition loaded from a YAML file. The
// feed name comes from the filename, everything else from the document.
type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Kind     string         `yaml:"kind"` // home, public, tag, account or rss
	Tag      string         `yaml:"tag"`
	Account  string         `yaml:"account"`
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type ConfigSettings struct {
	Enabled        bool `yaml:"enabled"`
	PageSize       int  `yaml:"page_size"`
	MaxPosts       int  `yaml:"max_posts"`
	CacheTTL       int  `yaml:"cache_ttl"` // seconds
	ExtractContent bool `yaml:"extract_content"`
}

// FeedKey returns the feed identity used by the timeline engine and the
// cache: "home", "public", "tag:<name>", "account:<id>" or "rss:<name>".
func (c *Config) FeedKey() string {
	switch c.Kind {
	case "home", "public":
		return c.Kind
	case "tag":
		return "tag:" + c.Tag
	case "account":
		return "account:" + c.Account
	case "rss":
		return "rss:" + c.Name
	}
	return c.Name
}

// FilterRules converts the configured filters into the timeline engine's
// rule form.
func (c *Config) FilterRules() []timeline.FilterRule {
	if len(c.Filters) == 0 {
		return nil
	}

	rules := make([]timeline.FilterRule, 0, len(c.Filters))
	for _, filter := range c.Filters {
		rules = append(rules, timeline.FilterRule{
			Field:    filter.Field,
			Includes: filter.Includes,
			Excludes: filter.Excludes,
		})
	}
	return rules
}
