package config

import (
	"slices"
	"strings"
)

// Wildcard matches every value.
const Wildcard = "*"

// AllowList is a set of permitted values, or the wildcard.
type AllowList struct {
	items    []string
	wildcard bool
}

// NewAllowList builds an AllowList. Any "*" entry makes it a wildcard.
func NewAllowList(items ...string) AllowList {
	a := AllowList{}
	for _, it := range items {
		if it == Wildcard {
			a.wildcard = true
			continue
		}
		if !slices.Contains(a.items, it) {
			a.items = append(a.items, it)
		}
	}
	return a
}

// ParseAllowList parses a comma separated list. Entries are trimmed and empties dropped.
func ParseAllowList(s string) AllowList {
	return NewAllowList(ParseList(s)...)
}

// ParseList splits a comma separated list, trimming entries and dropping empties.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Allows reports whether v is permitted.
func (a AllowList) Allows(v string) bool {
	return a.wildcard || slices.Contains(a.items, v)
}

// Wildcard reports whether every value is permitted.
func (a AllowList) Wildcard() bool {
	return a.wildcard
}

// Empty reports whether nothing is permitted.
func (a AllowList) Empty() bool {
	return !a.wildcard && len(a.items) == 0
}

// Items returns the explicit entries, or ["*"] for a wildcard list.
func (a AllowList) Items() []string {
	if a.wildcard {
		return []string{Wildcard}
	}
	return slices.Clone(a.items)
}

func (a AllowList) String() string {
	return strings.Join(a.Items(), ",")
}
