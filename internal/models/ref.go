package models

import (
	"strconv"

	"github.com/google/uuid"
)

// ContentKind is a closed enum of entity kinds a polymorphic reference may
// point at.
type ContentKind string

// Referenceable entity kinds
const (
	KindTweet   ContentKind = "tweet"
	KindMention ContentKind = "mention"
	KindMessage ContentKind = "message"
	KindVote    ContentKind = "vote"
	KindChoice  ContentKind = "choice"
	KindUser    ContentKind = "user"
)

// Valid reports whether k names a known entity kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindTweet, KindMention, KindMessage, KindVote, KindChoice, KindUser:
		return true
	}
	return false
}

// Ref is a (kind, id) pair pointing at a row of any referenceable table.
type Ref struct {
	Kind ContentKind
	ID   string
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// TweetRef builds a reference to a tweet row.
func TweetRef(id int64) Ref {
	return Ref{Kind: KindTweet, ID: strconv.FormatInt(id, 10)}
}

// MentionRef builds a reference to a mention edge.
func MentionRef(id int64) Ref {
	return Ref{Kind: KindMention, ID: strconv.FormatInt(id, 10)}
}

// UserRef builds a reference to a user row.
func UserRef(id int64) Ref {
	return Ref{Kind: KindUser, ID: strconv.FormatInt(id, 10)}
}

// MessageRef builds a reference to a direct message.
func MessageRef(id uuid.UUID) Ref {
	return Ref{Kind: KindMessage, ID: id.String()}
}

// VoteRef builds a reference to a poll.
func VoteRef(id uuid.UUID) Ref {
	return Ref{Kind: KindVote, ID: id.String()}
}
