package timeline

import "strings"

// FilterRule mutes posts by case-insensitive substring match on one field.
// Excludes drop a post on any match; when Includes is non-empty a post must
// match at least one of them to stay.
type FilterRule struct {
	Field    string // content, account or url
	Includes []string
	Excludes []string
}

type Filterer struct {
	rules []FilterRule
}

func NewFilterer(rules []FilterRule) *Filterer {
	return &Filterer{rules: rules}
}

// Run returns the posts that survive all rules, preserving order. Boosts are
// judged by the boosted post's fields, not the wrapper's.
func (f *Filterer) Run(posts []Post) []Post {
	if f == nil || len(f.rules) == 0 {
		return posts
	}

	kept := make([]Post, 0, len(posts))
	for _, post := range posts {
		if !f.muted(&post) {
			kept = append(kept, post)
		}
	}
	return kept
}

func (f *Filterer) muted(post *Post) bool {
	for _, rule := range f.rules {
		value := fieldValue(post.Display(), rule.Field)

		for _, exclude := range rule.Excludes {
			if matchesFilter(value, exclude) {
				return true
			}
		}

		if len(rule.Includes) > 0 {
			matched := false
			for _, include := range rule.Includes {
				if matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true
			}
		}
	}

	return false
}

func matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func fieldValue(post *Post, field string) string {
	switch field {
	case "content":
		return post.Content
	case "account":
		return post.Account.Username + " " + post.Account.DisplayName
	case "url":
		return post.URL
	default:
		return ""
	}
}
