package bot

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/lithammer/dedent"
)

// maxMessageLength is Telegram's limit for a text message, in UTF-16 code
// units.
const maxMessageLength = 4096

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func parseCommand(s string) (string, []string) {
	parts := strings.Split(s, " ")
	command := parts[0]
	// Commands in groups arrive as /favorites@botname.
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	return command, parts[1:]
}

// escapeMarkdown escapes special characters for Telegram Markdown V1
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}

// messageLen is the length of s as Telegram counts it, in UTF-16 code
// units.
func messageLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncateMessage cuts s so that it, with suffix appended, fits in n UTF-16
// code units. Trailing escapes and whitespace are trimmed from the cut.
func truncateMessage(s string, n int, suffix string) string {
	if messageLen(s) <= n {
		return s
	}
	keep := max(n-messageLen(suffix), 0)
	used := 0
	end := 0
	for i, r := range s {
		size := utf16.RuneLen(r)
		if used+size > keep {
			break
		}
		used += size
		end = i + utf8.RuneLen(r)
	}
	return strings.TrimRight(s[:end], "\\ \n") + suffix
}

// pluralize formats a count with the matching noun form, e.g. "1 recipe".
func pluralize(singular, plural string, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
