package utils

import "github.com/microcosm-cc/bluemonday"

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user generated HTML, keeping the tags UGCPolicy allows.
// Use for post bodies and signatures.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizeText strips all HTML. For fields that are plain text by
// contract such as titles, transfer messages and scrap memos.
func SanitizeText(input string) string {
	return plainPolicy.Sanitize(input)
}
