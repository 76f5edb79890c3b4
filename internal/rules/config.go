// Package rules holds the user's blocking configuration and the
// content-equality rules used for change detection and duplicate checks.
package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Category identifiers for the built-in blocking categories.
const (
	CategorySocial        = "social"
	CategoryVideo         = "video"
	CategoryGames         = "games"
	CategoryNews          = "news"
	CategoryShopping      = "shopping"
	CategoryAdult         = "adult"
	CategoryGambling      = "gambling"
	CategoryEntertainment = "entertainment"
)

// Categories lists every known category id.
var Categories = []string{
	CategorySocial, CategoryVideo, CategoryGames, CategoryNews,
	CategoryShopping, CategoryAdult, CategoryGambling, CategoryEntertainment,
}

// Configuration is the user's live, editable rule set.
type Configuration struct {
	FreeText      string          `json:"free_text"`
	CategoryFlags map[string]bool `json:"category_flags"`
	AllowList     []string        `json:"allow_list"`
	BlockList     []string        `json:"block_list"`
}

// Empty returns the canonical empty configuration: no text, all
// categories off, empty lists.
func Empty() Configuration {
	flags := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		flags[c] = false
	}
	return Configuration{
		FreeText:      "",
		CategoryFlags: flags,
		AllowList:     []string{},
		BlockList:     []string{},
	}
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	out := Configuration{
		FreeText:      c.FreeText,
		CategoryFlags: make(map[string]bool, len(c.CategoryFlags)),
		AllowList:     slices.Clone(c.AllowList),
		BlockList:     slices.Clone(c.BlockList),
	}
	for k, v := range c.CategoryFlags {
		out.CategoryFlags[k] = v
	}
	if out.AllowList == nil {
		out.AllowList = []string{}
	}
	if out.BlockList == nil {
		out.BlockList = []string{}
	}
	return out
}

// ContentEqual reports whether two configurations carry the same
// content. FreeText and CategoryFlags compare deeply; the two domain
// lists compare order-insensitively.
func ContentEqual(a, b Configuration) bool {
	if a.FreeText != b.FreeText {
		return false
	}
	if !flagsEqual(a.CategoryFlags, b.CategoryFlags) {
		return false
	}
	return setsEqual(a.AllowList, b.AllowList) && setsEqual(a.BlockList, b.BlockList)
}

// flagsEqual treats an absent flag as false so that a sparse map and a
// fully-populated map with the same truthy entries compare equal.
func flagsEqual(a, b map[string]bool) bool {
	for k, v := range a {
		if v && !b[k] {
			return false
		}
	}
	for k, v := range b {
		if v && !a[k] {
			return false
		}
	}
	return true
}

func setsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// domainPattern accepts bare hostnames like "example.com" or
// "sub.example.co.uk". Scheme prefixes, paths, and ports are rejected.
var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// NormalizeDomain lowercases and trims a domain token, stripping a
// leading "www.".
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "www.")
	return d
}

// ValidateDomain returns a ValidationError if raw is not a plausible
// bare domain name.
func ValidateDomain(raw string) error {
	d := NormalizeDomain(raw)
	if d == "" || !domainPattern.MatchString(d) {
		return &ValidationError{
			Kind:    KindMalformedDomain,
			Message: fmt.Sprintf("%q is not a valid domain", raw),
		}
	}
	return nil
}

// WithBlockDomain returns a copy with domain added to the block list.
// The domain is removed from the allow list if present, preserving the
// invariant that a domain never appears in both lists.
func (c Configuration) WithBlockDomain(raw string) (Configuration, error) {
	if err := ValidateDomain(raw); err != nil {
		return c, err
	}
	d := NormalizeDomain(raw)
	out := c.Clone()
	out.AllowList = remove(out.AllowList, d)
	if !slices.Contains(out.BlockList, d) {
		out.BlockList = append(out.BlockList, d)
	}
	return out, nil
}

// WithAllowDomain returns a copy with domain added to the allow list
// and removed from the block list.
func (c Configuration) WithAllowDomain(raw string) (Configuration, error) {
	if err := ValidateDomain(raw); err != nil {
		return c, err
	}
	d := NormalizeDomain(raw)
	out := c.Clone()
	out.BlockList = remove(out.BlockList, d)
	if !slices.Contains(out.AllowList, d) {
		out.AllowList = append(out.AllowList, d)
	}
	return out, nil
}

// WithoutDomain returns a copy with domain removed from both lists.
func (c Configuration) WithoutDomain(raw string) Configuration {
	d := NormalizeDomain(raw)
	out := c.Clone()
	out.AllowList = remove(out.AllowList, d)
	out.BlockList = remove(out.BlockList, d)
	return out
}

// WithCategory returns a copy with the category flag set. Unknown
// category ids are rejected.
func (c Configuration) WithCategory(id string, enabled bool) (Configuration, error) {
	if !slices.Contains(Categories, id) {
		return c, &ValidationError{
			Kind:    KindUnknownCategory,
			Message: fmt.Sprintf("unknown category %q", id),
		}
	}
	out := c.Clone()
	out.CategoryFlags[id] = enabled
	return out, nil
}

// WithFreeText returns a copy with the free-text instructions replaced.
func (c Configuration) WithFreeText(text string) Configuration {
	out := c.Clone()
	out.FreeText = text
	return out
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
