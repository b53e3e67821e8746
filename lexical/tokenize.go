package lexical

import (
	"strings"
	"unicode"
)

// Token is a normalized term with its code-point span in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize splits text into lower-cased tokens.
func Tokenize(text string) []Token {
	var (
		tokens []Token
		b      strings.Builder
		start  = -1
		pos    = 0
	)
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: b.String(), Start: start, End: end})
			b.Reset()
			start = -1
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = pos
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			flush(pos)
		}
		pos++
	}
	flush(pos)
	return tokens
}

// Terms returns only the normalized token texts.
func Terms(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}
