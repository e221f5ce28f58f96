package injection

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// invisibleChars are zero-width and formatting characters with no
// visible rendering, used to hide token-smuggled instructions inside
// otherwise-innocuous text.
var invisibleChars = map[rune]struct{}{
	'​': {}, '‌': {}, '‍': {}, '﻿': {}, '᠎': {},
	'⁠': {}, '­': {},
}

// stripInvisible removes zero-width and formatting characters.
func stripInvisible(text string) string {
	var b strings.Builder
	for _, r := range text {
		if _, ok := invisibleChars[r]; ok {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var cyrillicToLatin = map[rune]rune{
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	'А': 'A', 'Е': 'E', 'О': 'O', 'Р': 'P', 'С': 'C', 'У': 'Y', 'Х': 'X',
}

// foldHomoglyphs normalizes to NFC, widens fullwidth forms to their
// ASCII equivalents, and folds common Cyrillic look-alikes to Latin so
// regex rules matching Latin script can't be evaded by substitution.
func foldHomoglyphs(text string) string {
	text = norm.NFC.String(text)
	text = width.Fold.String(text)

	var b strings.Builder
	for _, r := range text {
		if latin, ok := cyrillicToLatin[r]; ok {
			b.WriteRune(latin)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeForMatching lowercases and applies the Unicode folding
// passes so rule regexes see a canonical form regardless of the
// original casing or script tricks.
func normalizeForMatching(text string) string {
	return strings.ToLower(foldHomoglyphs(text))
}

var delimiterTokens = []string{"```", "---", "###", "<<<", ">>>", "[INST]", "[/INST]"}

// escapeDelimiters neutralizes markdown/XML-style fence tokens that
// could be used to break out of a data section, by inserting a
// zero-width space inside them.
func escapeDelimiters(text string) string {
	for _, tok := range delimiterTokens {
		escaped := tok[:1] + "​" + tok[1:]
		text = strings.ReplaceAll(text, tok, escaped)
	}
	return text
}

func isVisiblyEmpty(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
