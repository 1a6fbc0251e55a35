package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionImageStatus(t *testing.T) {
	tests := []struct {
		from ActorImageStatus
		to   ActorImageStatus
		want bool
	}{
		// Happy path through the pipeline.
		{ActorImagePending, ActorImageAnalyzing, true},
		{ActorImageAnalyzing, ActorImageGeneratingAvatar, true},
		{ActorImageGeneratingAvatar, ActorImageCompleted, true},

		// Failure absorbs from any non-terminal stage.
		{ActorImageAnalyzing, ActorImageFailed, true},
		{ActorImageGeneratingAvatar, ActorImageFailed, true},
		{ActorImagePending, ActorImageFailed, true},
		{ActorImageCompleted, ActorImageFailed, false},
		{ActorImageFailed, ActorImageFailed, false},

		// Retries re-enter the stage they died in.
		{ActorImageAnalyzing, ActorImageAnalyzing, true},
		{ActorImageGeneratingAvatar, ActorImageGeneratingAvatar, true},
		{ActorImageFailed, ActorImageAnalyzing, true},
		{ActorImageFailed, ActorImageGeneratingAvatar, true},
		{ActorImageFailed, ActorImagePending, true},

		// No skipping stages.
		{ActorImagePending, ActorImageGeneratingAvatar, false},
		{ActorImagePending, ActorImageCompleted, false},
		{ActorImageAnalyzing, ActorImageCompleted, false},
		{ActorImageCompleted, ActorImageAnalyzing, false},

		// Garbage statuses.
		{"bogus", ActorImageAnalyzing, false},
		{ActorImagePending, "bogus", false},
	}

	for _, tt := range tests {
		got := CanTransitionImageStatus(tt.from, tt.to)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestActorValidate(t *testing.T) {
	actor := &Actor{ImageStatus: ActorImagePending}
	assert.ErrorIs(t, actor.Validate(), ErrEmptyActorID)
}

func TestCuratedTopicSyncable(t *testing.T) {
	listID := "1234567890"

	topic := &CuratedTopic{IsActive: true, TwitterListID: &listID}
	assert.True(t, topic.Syncable())

	inactive := &CuratedTopic{IsActive: false, TwitterListID: &listID}
	assert.False(t, inactive.Syncable())

	evergreen := &CuratedTopic{IsActive: true}
	assert.False(t, evergreen.Syncable())
}

func TestNewTrendingTopicExpiry(t *testing.T) {
	listID := "42"
	realtime := &CuratedTopic{
		Slug: "ai", Name: "AI", TopicType: TopicTypeRealtime, TwitterListID: &listID,
	}
	evergreen := &CuratedTopic{Slug: "cats", Name: "Cats", TopicType: TopicTypeEvergreen}

	trending, err := NewTrendingTopic(realtime, "agents", "everyone is building agents", []string{"p1", "p2"})
	assert.NoError(t, err)
	assert.NotNil(t, trending.ExpiresAt)
	assert.Equal(t, 2, trending.MentionCount)

	forever, err := NewTrendingTopic(evergreen, "kittens", "", []string{"p1"})
	assert.NoError(t, err)
	assert.Nil(t, forever.ExpiresAt)

	// Evergreen rows join the display group for their detection day;
	// realtime rows expire instead and never rotate.
	assert.Equal(t, time.Now().UTC().YearDay()%RotationGroupCount, forever.RotationGroup)
	assert.Equal(t, 0, trending.RotationGroup)
}
