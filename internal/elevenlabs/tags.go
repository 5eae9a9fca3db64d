package elevenlabs

import (
	"regexp"
	"strings"
)

// DefaultAudioTag is injected when speech text carries no emotion tag.
const DefaultAudioTag = "calmly"

var leadingTagPattern = regexp.MustCompile(`^\[([\w\s]+)\]\s*(.*)$`)

// EnsureAudioTag returns text guaranteed to begin with a bracketed emotion
// tag. When the text already starts with one it is returned unchanged; an
// empty defaultTag falls back to DefaultAudioTag.
func EnsureAudioTag(text, defaultTag string) string {
	trimmed := strings.TrimSpace(text)
	if leadingTagPattern.MatchString(trimmed) {
		return text
	}
	if defaultTag == "" {
		defaultTag = DefaultAudioTag
	}
	return "[" + defaultTag + "] " + text
}

// ExtractAudioTag splits a leading emotion tag from text. When no tag is
// present the tag is empty and the text is returned untouched.
func ExtractAudioTag(text string) (tag, clean string) {
	match := leadingTagPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return "", text
	}
	return strings.ToLower(match[1]), match[2]
}
