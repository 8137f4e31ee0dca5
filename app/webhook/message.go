package webhook

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxContentLength is the webhook content limit, in runes.
const MaxContentLength = 2000

// FormatMessage renders the announcement for a new entry:
//
//	**<feed title>**: <entry title>
//	<entry link>
//
// The headline is shortened when needed so the link always survives.
func FormatMessage(feedTitle, entryTitle, link string) string {
	link = strings.TrimSpace(link)
	headline := fmt.Sprintf("**%s**: %s", clean(feedTitle), clean(entryTitle))

	budget := MaxContentLength - utf8.RuneCountInString(link) - 1
	if budget < 1 {
		return truncate(headline+"\n"+link, MaxContentLength)
	}

	return truncate(headline, budget) + "\n" + link
}

// clean normalizes text to NFC and collapses line breaks and control
// characters so a title stays on one line.
func clean(s string) string {
	s = norm.NFC.String(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
