// Package jptext canonicalizes Japanese chat text before parsing.
//
// Chat clients freely mix full-width and half-width forms of the same
// characters (！ vs !, １０ vs 10, ＠ vs @). Downstream matchers only ever
// see the half-width form, so the rule tables stay small.
package jptext

import "strings"

// Normalize converts full-width ASCII (U+FF01–U+FF5E) to its half-width
// form, converts ideographic spaces (U+3000) to plain spaces, collapses
// whitespace runs, and trims. Kana and kanji are left untouched.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '　':
			b.WriteRune(' ')
		case r >= '！' && r <= '～':
			b.WriteRune(r - 0xFF01 + '!')
		default:
			b.WriteRune(r)
		}
	}
	return CollapseSpace(b.String())
}

// CollapseSpace trims s and squeezes every whitespace run into a single
// space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
