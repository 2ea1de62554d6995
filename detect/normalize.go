package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	directiveOpen  = "%%{"
	directiveClose = "}%%"
	commentMarker  = "%%"
)

// Normalize strips init directives and then comment lines from text.
// The result is stable: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	return StripComments(StripDirectives(text))
}

// StripDirectives removes every %%{ ... }%% block.
//
// A block is %%{, optional whitespace, a word, an optional ':' and then
// either a single word or everything up to the closing }%%. A missing close
// consumes the rest of the input. %%{ without a word after it is kept.
// Stripping repeats until no block remains, so a removal that splices a new
// opener together is handled too.
func StripDirectives(text string) string {
	for {
		out := stripDirectivesOnce(text)
		if out == text {
			return out
		}
		text = out
	}
}

func stripDirectivesOnce(text string) string {
	if !strings.Contains(text, directiveOpen) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		j := strings.Index(text[i:], directiveOpen)
		if j < 0 {
			b.WriteString(text[i:])
			break
		}
		start := i + j

		end, ok := scanDirective(text, start)
		if !ok {
			b.WriteString(text[i : start+1])
			i = start + 1
			continue
		}

		b.WriteString(text[i:start])
		i = end
	}

	return b.String()
}

// scanDirective returns the end offset of the directive opening at start.
func scanDirective(text string, start int) (int, bool) {
	p := skipSpace(text, start+len(directiveOpen))

	w := skipWord(text, p)
	if w == p {
		return 0, false
	}
	p = w

	// key: value form
	if q := skipSpace(text, p); q < len(text) && text[q] == ':' {
		p = q + 1
	}
	p = skipSpace(text, p)

	if w := skipWord(text, p); w > p {
		p = w
	} else {
		p = scanDirectiveBody(text, p)
	}

	p = skipSpace(text, p)
	if strings.HasPrefix(text[p:], directiveClose) {
		p += len(directiveClose)
	}
	return p, true
}

// scanDirectiveBody advances over a free-form directive value. The value
// ends before }%%, at the end of input, or at a line break other than \n
// and \r\n.
func scanDirectiveBody(text string, p int) int {
	for p < len(text) {
		if strings.HasPrefix(text[p:], directiveClose) {
			return p
		}
		switch r, size := utf8.DecodeRuneInString(text[p:]); {
		case r == '\n':
			p++
		case r == '\r':
			if !strings.HasPrefix(text[p:], "\r\n") {
				return p
			}
			p += 2
		case r == '\u2028' || r == '\u2029':
			return p
		default:
			p += size
		}
	}
	return p
}

// StripComments replaces each %% comment, together with the whitespace in
// front of it and the rest of its line, by a single newline. A comment on a
// final line with no terminating newline is left in place. Only \n ends a
// comment; \r, U+2028 and U+2029 inside one are removed with it.
func StripComments(text string) string {
	if !strings.Contains(text, commentMarker) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for {
		k := strings.Index(text[i:], commentMarker)
		if k < 0 {
			break
		}
		k += i

		nl := strings.IndexByte(text[k:], '\n')
		if nl < 0 {
			break
		}

		s := k
		for s > i {
			r, size := utf8.DecodeLastRuneInString(text[i:s])
			if !isSpace(r) {
				break
			}
			s -= size
		}

		b.WriteString(text[i:s])
		b.WriteByte('\n')
		i = k + nl + 1
	}
	b.WriteString(text[i:])

	return b.String()
}

func skipSpace(text string, p int) int {
	for p < len(text) {
		r, size := utf8.DecodeRuneInString(text[p:])
		if !isSpace(r) {
			break
		}
		p += size
	}
	return p
}

// isSpace reports whether r is whitespace in the ECMAScript sense: the
// Unicode space separators plus tab, line breaks and U+FEFF, but not U+0085.
func isSpace(r rune) bool {
	switch r {
	case '\u0085':
		return false
	case '\uFEFF':
		return true
	}
	return unicode.IsSpace(r)
}

// skipWord advances over ASCII word characters [A-Za-z0-9_].
func skipWord(text string, p int) int {
	for p < len(text) && isWordByte(text[p]) {
		p++
	}
	return p
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
