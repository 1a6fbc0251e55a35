package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TopicType classifies how a curated topic sources its content.
type TopicType string

// Possible topic types
const (
	TopicTypeRealtime  TopicType = "realtime"
	TopicTypeEvergreen TopicType = "evergreen"
	TopicTypeHybrid    TopicType = "hybrid"
)

// TrendingTopicTTL is how long a realtime trending topic stays visible
// after detection. Evergreen topics never expire; they rotate instead.
const TrendingTopicTTL = 48 * time.Hour

// RotationGroupCount is how many display groups evergreen trending
// topics cycle through. The serving layer shows the group matching the
// current day, so each evergreen batch surfaces one day in four.
const RotationGroupCount = 4

// Common validation errors for topics
var (
	ErrEmptyTopicSlug      = errors.New("curated topic slug cannot be empty")
	ErrEmptyTopicName      = errors.New("curated topic name cannot be empty")
	ErrInvalidTopicType    = errors.New("invalid topic type")
	ErrRealtimeMissingList = errors.New("realtime topic must have an external list ID")
	ErrEmptyTrendingName   = errors.New("trending topic name cannot be empty")
)

// CuratedTopic is an externally sourced content category tracked for
// trending-topic extraction. Sync and digest run on independent
// schedules, so LastSyncedAt and LastDigestedAt advance independently.
type CuratedTopic struct {
	ID             uuid.UUID  `json:"id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	TopicType      TopicType  `json:"topic_type"`
	TwitterListID  *string    `json:"twitter_list_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	LastDigestedAt *time.Time `json:"last_digested_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks the CuratedTopic fields.
func (t *CuratedTopic) Validate() error {
	if t.Slug == "" {
		return ErrEmptyTopicSlug
	}
	if t.Name == "" {
		return ErrEmptyTopicName
	}
	if !isValidTopicType(t.TopicType) {
		return ErrInvalidTopicType
	}
	// Evergreen topics have no external list; everything else needs one
	// to be syncable.
	if t.TopicType != TopicTypeEvergreen && t.TwitterListID == nil {
		return ErrRealtimeMissingList
	}
	return nil
}

// Syncable reports whether the dispatch stage should enqueue a sync job
// for this topic.
func (t *CuratedTopic) Syncable() bool {
	return t.IsActive && t.TwitterListID != nil && *t.TwitterListID != ""
}

// TrendingTopic is one extracted topic produced by the digest pipeline.
type TrendingTopic struct {
	ID              uuid.UUID  `json:"id"`
	CuratedTopicID  uuid.UUID  `json:"curated_topic_id"`
	TopicName       string     `json:"topic_name"`
	Context         string     `json:"context"`
	MentionCount    int        `json:"mention_count"`
	TotalEngagement int64      `json:"total_engagement"`
	SamplePostIDs   []string   `json:"sample_post_ids"`
	RotationGroup   int        `json:"rotation_group"`
	DetectedAt      time.Time  `json:"detected_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// NewTrendingTopic creates a trending topic detected now. Realtime and
// hybrid topics get the 48h expiry; evergreen topics get none and are
// rotated via RotationGroup instead.
func NewTrendingTopic(
	curated *CuratedTopic,
	name string,
	topicContext string,
	samplePostIDs []string,
) (*TrendingTopic, error) {
	if name == "" {
		return nil, ErrEmptyTrendingName
	}

	now := time.Now().UTC()
	trending := &TrendingTopic{
		ID:             uuid.New(),
		CuratedTopicID: curated.ID,
		TopicName:      name,
		Context:        topicContext,
		MentionCount:   len(samplePostIDs),
		SamplePostIDs:  samplePostIDs,
		DetectedAt:     now,
	}

	if curated.TopicType == TopicTypeEvergreen {
		trending.RotationGroup = now.YearDay() % RotationGroupCount
	} else {
		expires := now.Add(TrendingTopicTTL)
		trending.ExpiresAt = &expires
	}

	return trending, nil
}

func isValidTopicType(t TopicType) bool {
	switch t {
	case TopicTypeRealtime, TopicTypeEvergreen, TopicTypeHybrid:
		return true
	default:
		return false
	}
}
