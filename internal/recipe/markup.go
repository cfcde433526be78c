package recipe

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end a line of text when they open or close.
var blockElements = map[atom.Atom]bool{
	atom.P:   true,
	atom.Br:  true,
	atom.Li:  true,
	atom.Ol:  true,
	atom.Ul:  true,
	atom.Div: true,
	atom.H1:  true,
	atom.H2:  true,
	atom.H3:  true,
	atom.H4:  true,
	atom.Tr:  true,
}

// PlainText strips markup from recipe instructions. Entities are unescaped,
// block elements become line breaks, whitespace inside a line is collapsed
// and blank lines are dropped. Text without markup passes through with only
// whitespace normalization.
func PlainText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	skip := 0
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF at the end of input; a strings.Reader never fails otherwise.
			break loop
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				skip++
			}
			if blockElements[a] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if blockElements[a] {
				sb.WriteByte('\n')
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
