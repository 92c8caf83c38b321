package http

import (
	"regexp"
	"strings"

	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
)

var quotedSegment = regexp.MustCompile(`"([^"]*)"`)

// Slack clients may autocorrect straight quotes into typographic ones.
var smartQuotes = strings.NewReplacer("\u201c", `"`, "\u201d", `"`)

// ParsePollText extracts the double-quoted segments of a command or mention:
// the first is the title, the rest are option titles. Text outside quotes,
// such as a leading bot mention, is ignored.
func ParsePollText(text string) (string, []string, error) {
	matches := quotedSegment.FindAllStringSubmatch(smartQuotes.Replace(text), -1)
	if len(matches) < 2 {
		return "", nil, domainerrors.ErrUsage
	}
	options := make([]string, 0, len(matches)-1)
	for _, match := range matches[1:] {
		options = append(options, match[1])
	}
	return matches[0][1], options, nil
}
