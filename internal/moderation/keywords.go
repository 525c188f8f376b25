package moderation

import (
	"regexp"
	"strings"
)

// KeywordScreen is the deterministic first line of defense: a cheap local
// check that either clears a message before any classifier call or
// short-circuits it into a high-severity profanity violation.
type KeywordScreen struct {
	allowList map[string]struct{}
	patterns  []string
}

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Slugify lowercases the text and strips everything that is not a letter or a
// digit, defeating the usual s.p.a.c.i.n.g and punctuation evasion.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}

var defaultAllowList = []string{
	"hi", "hello", "hey", "yo",
	"ok", "okay", "thanks", "thank you", "thx", "ty",
	"yes", "no", "maybe", "sure",
	"good morning", "good night", "bye", "gg", "lol", "haha",
	"+1", "-1", "👍", "👋", "❤️", "😂",
}

// Slugs that always resolve to a violation without consulting the classifier.
// Deliberately short: only unambiguous slurs and hard profanity belong here,
// everything borderline goes to the classifier instead.
var defaultProfanitySlugs = []string{
	"nigger",
	"faggot",
	"kike",
	"tranny",
	"chink",
}

func NewKeywordScreen(extraAllowed, extraPatterns []string) *KeywordScreen {
	screen := &KeywordScreen{
		allowList: make(map[string]struct{}, len(defaultAllowList)+len(extraAllowed)),
	}
	for _, phrase := range defaultAllowList {
		screen.allowList[Slugify(phrase)] = struct{}{}
	}
	for _, phrase := range extraAllowed {
		screen.allowList[Slugify(phrase)] = struct{}{}
	}
	screen.patterns = append(screen.patterns, defaultProfanitySlugs...)
	for _, pattern := range extraPatterns {
		screen.patterns = append(screen.patterns, Slugify(pattern))
	}
	return screen
}

const maxBenignLength = 16

// IsBenign reports whether the text is short and clearly harmless, letting the
// pipeline exit before spending a classifier call.
func (s *KeywordScreen) IsBenign(text string) bool {
	slug := Slugify(text)
	if slug == "" {
		return true
	}
	if len([]rune(slug)) > maxBenignLength {
		return false
	}
	_, allowed := s.allowList[slug]
	return allowed
}

// MatchProfanity reports the first hard-profanity pattern found in the
// slugified text, empty string when clean.
func (s *KeywordScreen) MatchProfanity(text string) string {
	slug := Slugify(text)
	if slug == "" {
		return ""
	}
	for _, pattern := range s.patterns {
		if strings.Contains(slug, pattern) {
			return pattern
		}
	}
	return ""
}
