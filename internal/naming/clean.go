// Package naming tidies business names as listed by the places provider and
// can recover the name a business uses on its own website.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	trailingParen = regexp.MustCompile(`\s*[(\[][^()\[\]]*[)\]]\s*$`)
	titleCaser    = cases.Title(language.French)
)

// Clean removes cosmetic noise from a listing name: text after " | ",
// trailing parenthesised notes, emoji and pictographs, repeated whitespace.
// ALL-CAPS names are title-cased. A name that cleans to nothing is returned
// trimmed.
func Clean(name string) string {
	orig := strings.TrimSpace(name)
	s := orig

	if i := strings.Index(s, " | "); i > 0 {
		s = s[:i]
	}
	for {
		next := trailingParen.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Cs, r),
			r == '\u200d', r == '\ufe0f', unicode.Is(unicode.Co, r):
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " -–—|,;:")

	if isShouting(s) {
		s = titleCaser.String(strings.ToLower(s))
	}
	if s == "" {
		return orig
	}
	return s
}

// isShouting reports whether s has at least four letters and none of them
// is lowercase.
func isShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= 4
}
