// Package patternmatch is the single matching primitive shared by category
// match rules and receivable fee match rules: a case-insensitive regular
// expression that must match starting at the first character of the text.
package patternmatch

import (
	"regexp"
)

// Compile wraps pattern so it is evaluated case-insensitively and anchored at
// the start of the input. The match may end anywhere, it only has to begin at
// position 0.
func Compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\A(?i:` + pattern + `)`)
}

// MatchesStart reports whether pattern matches text starting at the first
// character. An invalid pattern returns an error instead of a silent no-match
// so broken rules are caught at evaluation time.
func MatchesStart(pattern, text string) (bool, error) {
	re, err := Compile(pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(text), nil
}
