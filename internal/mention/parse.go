// Package mention extracts #hashtag and @username tokens from tweet
// bodies and applies their side effects: hashtag usage counters, mention
// edges, and mention notifications.
package mention

import (
	"regexp"
)

var (
	// Runs of two or more markers are collapsed to nothing before
	// matching, so "##tag" yields no hashtag at all.
	hashtagRunPattern = regexp.MustCompile(`[#＃]{2,}`)
	mentionRunPattern = regexp.MustCompile(`[@＠]{2,}`)

	hashtagPattern = regexp.MustCompile(`(?:^|\s)[#＃]([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`(?:^|\s)[@＠]([^\s#<>\[\]|{}]+)`)
)

// Hashtags returns the deduplicated set of hashtag tokens in text,
// without the leading marker.
func Hashtags(text string) map[string]struct{} {
	return extract(text, hashtagRunPattern, hashtagPattern)
}

// Usernames returns the deduplicated set of mention tokens in text,
// without the leading marker.
func Usernames(text string) map[string]struct{} {
	return extract(text, mentionRunPattern, mentionPattern)
}

func extract(text string, run, finder *regexp.Regexp) map[string]struct{} {
	cleaned := run.ReplaceAllString(text, "")
	tokens := make(map[string]struct{})
	for _, match := range finder.FindAllStringSubmatch(cleaned, -1) {
		tokens[match[1]] = struct{}{}
	}
	return tokens
}
