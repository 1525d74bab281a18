package rag

import (
	"regexp"
	"strings"
)

var (
	fileCitation    = regexp.MustCompile(`【[^】]*】`)
	bracketCitation = regexp.MustCompile(`\[[^\]]*\]`)
)

// StripCitations removes file-search citation markers such as 【4:0†source】
// and bracketed references, then trims the result.
func StripCitations(s string) string {
	s = fileCitation.ReplaceAllString(s, "")
	s = bracketCitation.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
