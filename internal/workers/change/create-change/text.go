// internal/workers/change/create-change/text.go
package createchange

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength   = 100
	maxDetailLines  = 10
	maxDetailLength = 200

	detailsTrailer  = "• (Additional details available in the source Jira issue)"
	noDetailsLine   = "• No detailed description available in Jira issue"
	detailBullet    = "• "
	truncatedSuffix = "..."
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	doubleBraceTag = regexp.MustCompile(`\{\{[^}]*\}\}`)
	bracketTag     = regexp.MustCompile(`\[[^\]]*\]`)
)

// cleanText collapses whitespace and strips {{...}} and [...] markup.
func cleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	cleaned := whitespaceRun.ReplaceAllString(text, " ")
	cleaned = doubleBraceTag.ReplaceAllString(cleaned, "")
	cleaned = bracketTag.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// changeDetails bullets the first lines of an extracted description.
// Lines are split before cleaning so that paragraph boundaries survive.
func changeDetails(text string) string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		candidates = append(candidates, line)
	}

	considered := candidates
	if len(considered) > maxDetailLines {
		considered = considered[:maxDetailLines]
	}

	bullets := make([]string, 0, len(considered)+1)
	for _, line := range considered {
		cleaned := cleanText(line)
		n := utf8.RuneCountInString(cleaned)
		if n == 0 || n >= maxDetailLength {
			continue
		}
		bullets = append(bullets, detailBullet+cleaned)
	}

	if len(bullets) == 0 {
		return noDetailsLine
	}
	if len(candidates) > maxDetailLines {
		bullets = append(bullets, detailsTrailer)
	}
	return strings.Join(bullets, "\n")
}

// truncateName keeps names within the ticket system's limit.
func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxNameLength-len(truncatedSuffix)]) + truncatedSuffix
}
