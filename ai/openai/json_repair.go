package openai

import (
	"strings"
	"unicode"
)

// repairJSON fixes the object-key and comma mistakes models make in short
// structured answers such as {order: [2, 0,]} or {"title":"x", author":"y"}.
// Text inside string literals is never changed.
func repairJSON(s string) string {
	return dropTrailingCommas(quoteKeys(s))
}

// quoteKeys quotes object keys that lack one or both quotes.
func quoteKeys(s string) string {
	in := []rune(s)
	var out strings.Builder
	out.Grow(len(s) + 16)

	inString := false
	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out.WriteRune(ch)
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out.WriteRune(in[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		out.WriteRune(ch)
		switch ch {
		case '"':
			inString = true
			continue
		case '{', ',':
		default:
			continue
		}

		j := skipSpace(in, i+1)
		out.WriteString(string(in[i+1 : j]))
		i = j - 1
		if j >= len(in) || !isIdentStart(in[j]) {
			continue
		}

		end := j
		for end < len(in) && isIdentPart(in[end]) {
			end++
		}
		key := string(in[j:end])

		switch {
		case end < len(in) && in[end] == '"' && colonAt(in, end+1):
			// Missing opening quote: key":
			out.WriteString(`"` + key + `"`)
			i = end
		case colonAt(in, end):
			// Bare key: key:
			out.WriteString(`"` + key + `"`)
			i = end - 1
		default:
			// A literal such as true or null.
			out.WriteString(key)
			i = end - 1
		}
	}
	return out.String()
}

// dropTrailingCommas removes commas directly before a closing bracket.
func dropTrailingCommas(s string) string {
	in := []rune(s)
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out.WriteRune(ch)
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out.WriteRune(in[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		if ch == ',' {
			if j := skipSpace(in, i+1); j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
		}
		if ch == '"' {
			inString = true
		}
		out.WriteRune(ch)
	}
	return out.String()
}

func skipSpace(in []rune, i int) int {
	for i < len(in) && unicode.IsSpace(in[i]) {
		i++
	}
	return i
}

// colonAt reports whether the first non-space rune at or after i is a colon.
func colonAt(in []rune, i int) bool {
	i = skipSpace(in, i)
	return i < len(in) && in[i] == ':'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
