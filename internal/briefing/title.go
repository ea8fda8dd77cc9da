package briefing

import (
	"strings"
	"time"
	"unicode/utf8"
)

const titleMaxRunes = 50

// DeriveTitle picks a title for a new briefing: the objective, else the start
// of the conversation, else a timestamped default.
func DeriveTitle(doc Document, conversation string, now time.Time) string {
	if t := truncate(strings.TrimSpace(doc.Objective)); t != "" {
		return t
	}
	if t := truncate(strings.TrimSpace(conversation)); t != "" {
		return t
	}
	return "Briefing " + now.Format("02/01/2006 15:04")
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= titleMaxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:titleMaxRunes])) + "..."
}
