package core

import (
	"unicode"
	"unicode/utf8"
)

// verdictTokens are the answers the model is asked to give
var verdictTokens = []Answer{AnswerYes, AnswerNo, AnswerMaybe}

// ParseVerdict extracts the answer and confidence from raw inference text.
//
// The grammar is: a whole word yes, no or maybe (any case), optional
// whitespace, '=', optional whitespace, then a decimal integer. The first
// match wins. The integer is clamped to [0,100] and scaled to [0,1].
// Text without a match, including a bare answer word, yields unknown/0.
func ParseVerdict(raw string) (Answer, float64) {
	for i := 0; i < len(raw); i++ {
		if !wordStart(raw, i) {
			continue
		}
		for _, token := range verdictTokens {
			end := i + len(token)
			if end > len(raw) || !equalFoldASCII(raw[i:end], string(token)) {
				continue
			}
			if !wordEnd(raw, end) {
				continue
			}
			if value, ok := scanConfidence(raw[end:]); ok {
				return token, float64(value) / 100
			}
		}
	}
	return AnswerUnknown, 0
}

// scanConfidence matches `\s*=\s*\d+` at the start of s and returns the
// number clamped to 100
func scanConfidence(s string) (int, bool) {
	s = skipSpace(s)
	if len(s) == 0 || s[0] != '=' {
		return 0, false
	}
	s = skipSpace(s[1:])

	value, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if value < 100 {
			value = value*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if value > 100 {
		value = 100
	}
	return value, true
}

func skipSpace(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			break
		}
		s = s[size:]
	}
	return s
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordEnd(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
