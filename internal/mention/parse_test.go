package mention

import (
	"sort"
	"testing"
)

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for token := range set {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHashtags(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "single hashtag",
			text:     "hello #world",
			expected: []string{"world"},
		},
		{
			name:     "hashtag at start",
			text:     "#golang is nice",
			expected: []string{"golang"},
		},
		{
			name:     "doubled marker yields nothing",
			text:     "hello ##world",
			expected: []string{},
		},
		{
			name:     "tripled marker yields nothing",
			text:     "###loud",
			expected: []string{},
		},
		{
			name:     "fullwidth marker",
			text:     "hello ＃world",
			expected: []string{"world"},
		},
		{
			name:     "mixed run of markers collapses",
			text:     "hello #＃world",
			expected: []string{},
		},
		{
			name:     "duplicates dedup",
			text:     "#go #go #go",
			expected: []string{"go"},
		},
		{
			name:     "underscore and digits",
			text:     "#go_1_2",
			expected: []string{"go_1_2"},
		},
		{
			name:     "punctuation terminates token",
			text:     "ship it #done!",
			expected: []string{"done"},
		},
		{
			name:     "no space before marker",
			text:     "price#tag",
			expected: []string{},
		},
		{
			name:     "unicode letters",
			text:     "#café time",
			expected: []string{"café"},
		},
		{
			name:     "empty text",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sorted(Hashtags(tt.text))
			if !equal(got, tt.expected) {
				t.Errorf("Hashtags(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestUsernames(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "single mention",
			text:     "hello @alice",
			expected: []string{"alice"},
		},
		{
			name:     "mention at start",
			text:     "@bob hi",
			expected: []string{"bob"},
		},
		{
			name:     "doubled marker yields nothing",
			text:     "hello @@alice",
			expected: []string{},
		},
		{
			name:     "collapsed run beside a plain mention",
			text:     "hello ##bob @@al @carol",
			expected: []string{"carol"},
		},
		{
			name:     "fullwidth marker",
			text:     "hello ＠alice",
			expected: []string{"alice"},
		},
		{
			name:     "duplicates dedup",
			text:     "@alice and @alice again",
			expected: []string{"alice"},
		},
		{
			name:     "multiple distinct",
			text:     "@alice meet @bob",
			expected: []string{"alice", "bob"},
		},
		{
			name:     "hash terminates token",
			text:     "@alice#tag",
			expected: []string{"alice"},
		},
		{
			name:     "brackets terminate token",
			text:     "@alice[1]",
			expected: []string{"alice"},
		},
		{
			name:     "email address not a mention",
			text:     "mail me at alice@example.com",
			expected: []string{},
		},
		{
			name:     "empty text",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sorted(Usernames(tt.text))
			if !equal(got, tt.expected) {
				t.Errorf("Usernames(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}
