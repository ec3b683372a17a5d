package normalize

import (
	"regexp"
	"strings"
)

// chromeLabels are interface affordances rendered as standalone lines by the
// platform markup. Matched exactly (case-insensitive) after trimming.
var chromeLabels = map[string]struct{}{
	// reaction / action buttons
	"like": {}, "comment": {}, "share": {}, "reply": {}, "follow": {},
	"send": {}, "save": {}, "react": {},
	// "see more" variants across locales
	"see more": {}, "see less": {}, "show more": {}, "show less": {},
	"ver más": {}, "ver mas": {}, "voir plus": {}, "mehr anzeigen": {},
	"ver mais": {}, "mostrar más": {}, "leer más": {},
	// moderation / UI affordances
	"most relevant": {}, "top comments": {}, "all comments": {},
	"view more comments": {}, "view previous comments": {},
	"write a comment": {}, "write a comment…": {},
	"hide": {}, "report": {}, "edited": {}, "translate": {},
	"see translation": {}, "sponsored": {}, "follow page": {},
	"just now": {},
}

var chromePatterns = []*regexp.Regexp{
	// relative timestamps: "5d", "12h", "3w", "45m", "10s", "2y"
	regexp.MustCompile(`(?i)^\d+\s?[smhdwy]$`),
	// relative timestamps spelled out: "3 hrs ago", "5 days", "2 weeks ago"
	regexp.MustCompile(`(?i)^\d+\s+(sec|secs|second|seconds|min|mins|minute|minutes|hr|hrs|hour|hours|day|days|week|weeks|month|months|year|years)(\s+ago)?$`),
	// engagement counters: "5 comments", "1.2K shares", "300 reactions"
	regexp.MustCompile(`(?i)^[\d.,]+[km]?\s+(like|likes|comment|comments|share|shares|reaction|reactions|view|views|reply|replies)$`),
	// "All reactions:" style summaries
	regexp.MustCompile(`(?i)^all reactions:?`),
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CleanText strips interface chrome line-by-line, collapses blank runs, and
// trims. Applying it to already-cleaned text yields the same text.
func CleanText(input string) string {
	if input == "" {
		return ""
	}

	lines := strings.Split(input, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len([]rune(trimmed)) < 3 {
			continue
		}
		if isChromeLine(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}

	out := strings.Join(kept, "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func isChromeLine(line string) bool {
	lower := strings.ToLower(line)
	if _, ok := chromeLabels[lower]; ok {
		return true
	}
	for _, re := range chromePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
