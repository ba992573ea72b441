package broadcast

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator tags as stored in settings.
const (
	SepTwoSpaces  = "2spc"
	SepNewline    = "nl"
	SepComma      = "comma"
	SepUnderscore = "__"
	SepCustom     = "custom"
)

// TwoSpaces is the default and fallback separator.
const TwoSpaces = "  "

var fixedSeparators = map[string]string{
	SepTwoSpaces:  TwoSpaces,
	SepNewline:    "\n",
	SepComma:      ", ",
	SepUnderscore: "__",
}

type SeparatorChoice struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Separators lists the selectable separators in display order.
func Separators() []SeparatorChoice {
	return []SeparatorChoice{
		{Tag: SepTwoSpaces, Label: "Two spaces (log style)"},
		{Tag: SepNewline, Label: "Newline"},
		{Tag: SepComma, Label: "A comma and space"},
		{Tag: SepUnderscore, Label: "Two underscores"},
		{Tag: SepCustom, Label: "Custom"},
	}
}

// ResolveSeparator maps a tag to the string placed between text fragments.
// Unknown tags resolve to TwoSpaces together with an ErrConfigParse error.
func ResolveSeparator(tag, custom string) (string, error) {
	if tag == SepCustom {
		return Unescape(custom), nil
	}
	if sep, ok := fixedSeparators[tag]; ok {
		return sep, nil
	}
	return TwoSpaces, fmt.Errorf("%w: unknown separator %q, using two spaces", ErrConfigParse, tag)
}

// Unescape decodes backslash escapes (\t, \n, \\, \x41, \u00e9, one to
// three octal digits).
// A backslash that does not start a valid escape is kept literally.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		if s[0] != '\\' {
			i := strings.IndexByte(s, '\\')
			if i < 0 {
				i = len(s)
			}
			b.WriteString(s[:i])
			s = s[i:]
			continue
		}
		r, tail, ok := unquoteChar(s)
		if !ok {
			b.WriteByte('\\')
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = tail
	}
	return b.String()
}

func unquoteChar(s string) (rune, string, bool) {
	if r, n := octalEscape(s); n > 0 {
		return r, s[n:], true
	}
	for _, q := range []byte{'\'', '"'} {
		r, _, tail, err := strconv.UnquoteChar(s, q)
		if err == nil {
			return r, tail, true
		}
	}
	return 0, s, false
}

// octalEscape decodes \o, \oo or \ooo at the start of s and returns the rune
// and the number of bytes consumed, or 0 if s does not start with one.
func octalEscape(s string) (rune, int) {
	n := 1
	var r rune
	for n < len(s) && n <= 3 && s[n] >= '0' && s[n] <= '7' {
		r = r<<3 | rune(s[n]-'0')
		n++
	}
	if n == 1 {
		return 0, 0
	}
	return r, n
}
