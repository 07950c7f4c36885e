// Package knowl defines the knowledge-base domain model: the Knowl record,
// identifier validation, and the derived fields (category, keywords) the
// maintenance task recomputes.
package knowl

import (
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Qualities a knowl can be tagged with, used for index filtering.
var Qualities = []string{"beta", "ok", "reviewed"}

// DefaultQuality is assigned to knowls saved without an explicit quality.
const DefaultQuality = "beta"

// ValidQuality reports whether q is one of the known quality tags.
func ValidQuality(q string) bool {
	for _, known := range Qualities {
		if q == known {
			return true
		}
	}
	return false
}

// idPattern is the allowed identifier syntax: lowercase letters, digits,
// dot, underscore, hyphen. The identifier doubles as storage key and URL
// segment, so anything else is rejected.
var idPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Knowl is a single named, versioned piece of transcludable content.
type Knowl struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Quality   string    `json:"quality"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
	Exists    bool      `json:"exists"`
}

// Revision is one entry in a knowl's edit history.
type Revision struct {
	KnowlID string    `json:"knowl_id"`
	Seq     int       `json:"seq"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Quality string    `json:"quality"`
	SavedBy string    `json:"saved_by"`
	SavedAt time.Time `json:"saved_at"`
}

// Lock is the advisory "someone is editing this" marker. It warns
// concurrent editors and is not a mutual-exclusion mechanism.
type Lock struct {
	KnowlID    string    `json:"knowl_id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// ValidateID checks an identifier against the allowed pattern.
func ValidateID(id string) error {
	return validation.Validate(id,
		validation.Required,
		validation.Match(idPattern),
	)
}

// ValidID reports whether id matches the allowed identifier syntax.
func ValidID(id string) bool {
	return ValidateID(id) == nil
}

// Category derives the category tag from an identifier's structural
// prefix: everything before the first dot, or the whole identifier when
// it has no dot.
func Category(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// keywordToken matches search tokens in lowercased text. The optional
// leading '#' keeps hashtags searchable via the %23tag form.
var keywordToken = regexp.MustCompile(`#?[a-z0-9][a-z0-9._-]*`)

// minKeywordLen excludes short tokens from search matching.
const minKeywordLen = 3

// Keywords derives the normalized keyword set for a knowl from its
// identifier, title, and content. Tokens are lowercased, deduplicated,
// sorted, and tokens shorter than three characters are dropped. The
// identifier contributes both itself and its dot-separated segments so
// a knowl is findable by any part of its name.
func Keywords(id, title, content string) []string {
	seen := make(map[string]struct{})

	add := func(tok string) {
		if len(tok) < minKeywordLen {
			return
		}
		seen[tok] = struct{}{}
	}

	add(id)
	for _, seg := range strings.Split(id, ".") {
		add(seg)
	}
	for _, src := range []string{title, content} {
		for _, tok := range keywordToken.FindAllString(strings.ToLower(src), -1) {
			add(strings.Trim(tok, "._-"))
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// QueryTokens splits a raw search string into matchable keywords, applying
// the same lowercasing, punctuation-trimming, and minimum-length rules as
// Keywords. All returned tokens must match for a knowl to be a search hit.
func QueryTokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, "._-")
		if len(tok) >= minKeywordLen {
			out = append(out, tok)
		}
	}
	return out
}
