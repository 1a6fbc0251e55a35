package domain

import "time"

// TopicPost is one post captured from a curated topic's external list.
// Posts are the raw material for the digest pipeline; they are keyed by
// the external platform's post ID, not a UUID.
type TopicPost struct {
	ID           string    `json:"id"`
	TopicID      string    `json:"topic_id"`
	AuthorHandle string    `json:"author_handle"`
	Text         string    `json:"text"`
	Engagement   int64     `json:"engagement"`
	PostedAt     time.Time `json:"posted_at"`
}
