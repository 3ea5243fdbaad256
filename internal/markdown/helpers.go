package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for i := range len(mdV2SpecialChars) {
		m[mdV2SpecialChars[i]] = true
	}
	return m
}()

// EscapeV2 escapes text for Telegram MarkdownV2 so provider output and feed
// titles are shown literally.
func EscapeV2(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if mdV2Lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// Truncate shortens s to at most maxRunes runes, appending "..." when cut.
func Truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return s
	}

	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// EscapeLinkURL escapes the URL part of an inline link, where only ")" and
// "\" must be escaped.
func EscapeLinkURL(u string) string {
	return linkURLReplacer.Replace(u)
}

//nolint:gochecknoglobals // Stateless replacer.
var linkURLReplacer = strings.NewReplacer(`\`, `\\`, `)`, `\)`)
