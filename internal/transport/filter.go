package transport

import (
	"fmt"
	"regexp"
	"strings"
)

// ChatFilter decides which conversations are monitored: the title must
// match a configured pattern and must not appear on the exclusion list.
// Applied before the aggregator ever sees a conversation.
type ChatFilter struct {
	pattern   *regexp.Regexp
	blacklist map[string]struct{}
}

// NewChatFilter compiles the title pattern (case-insensitive) and indexes
// the exclusion list. An empty pattern matches nothing.
func NewChatFilter(pattern string, blacklist []string) (*ChatFilter, error) {
	f := &ChatFilter{blacklist: make(map[string]struct{}, len(blacklist))}
	if pattern != "" {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("transport: compile chat pattern: %w", err)
		}
		f.pattern = re
	}
	for _, title := range blacklist {
		f.blacklist[strings.TrimSpace(title)] = struct{}{}
	}
	return f, nil
}

// Match reports whether a conversation with the given title is monitored.
func (f *ChatFilter) Match(title string) bool {
	if f.pattern == nil || !f.pattern.MatchString(title) {
		return false
	}
	_, excluded := f.blacklist[title]
	return !excluded
}
