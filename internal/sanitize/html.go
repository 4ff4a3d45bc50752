package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy allows safe user-generated formatting such as <p>, <b>, <a> and lists.
	UGCPolicy = bluemonday.UGCPolicy()
)

// maxDecodeRounds bounds how many layers of entity encoding Text unwraps.
const maxDecodeRounds = 8

// Text strips all markup and surrounding whitespace and returns plain text
// with entities decoded. Decoding repeats until the text survives the strict
// policy unchanged, so encoded markup cannot come back as tags. Input nested
// deeper than maxDecodeRounds is returned still escaped.
// Use for titles, names, categories and locations.
func Text(input string) string {
	plain := input
	for range maxDecodeRounds {
		next := html.UnescapeString(StrictPolicy.Sanitize(plain))
		if next == plain {
			return strings.TrimSpace(plain)
		}
		plain = next
	}
	return strings.TrimSpace(StrictPolicy.Sanitize(plain))
}

// HTML keeps safe formatting tags. Use for descriptions and announcement
// bodies.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}

// OptionalText applies Text to a pointer field, leaving nil untouched.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	value := Text(*input)
	return &value
}

// OptionalHTML applies HTML to a pointer field, leaving nil untouched.
func OptionalHTML(input *string) *string {
	if input == nil {
		return nil
	}
	value := HTML(*input)
	return &value
}
