package generation

import (
	"context"
)

// Usage records the model spend of a single generation call. Handlers
// accumulate these onto the owning entity so per-actor and per-topic cost
// is queryable.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Add folds another call's usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}

// ImageAnalysis is the vision model's read of a reference image: a prose
// continuity description that later image generations are conditioned on
// so a character stays visually consistent across renders.
type ImageAnalysis struct {
	Continuity string
	Usage      Usage
}

// ImageAnalyzer extracts a continuity description from a reference image.
// Implementations receive a URL the model can fetch directly, typically a
// signed, downscaled storage URL.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL string) (*ImageAnalysis, error)
}

// GeneratedImage is a rendered image ready for storage.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
	Usage    Usage
}

// AvatarGenerator renders a character avatar. The continuity description
// from a prior AnalyzeImage call keeps the render on-model; it may be
// empty for actors without a reference image.
type AvatarGenerator interface {
	GenerateAvatar(ctx context.Context, prompt string, continuity string) (*GeneratedImage, error)
}

// ImageGenerator renders a standalone illustration from a prompt, used
// for per-page artwork.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// AudioRequest describes one narration synthesis call.
type AudioRequest struct {
	Text  string
	Voice string
	// Speed is the playback rate multiplier; implementations treat values
	// at or below zero as 1.0.
	Speed float64
}

// GeneratedAudio is a synthesized narration ready for storage.
type GeneratedAudio struct {
	Data           []byte
	MIMEType       string
	SizeBytes      int64
	CharacterCount int
	Usage          Usage
}

// AudioGenerator synthesizes narration audio from text.
type AudioGenerator interface {
	GenerateAudio(ctx context.Context, req AudioRequest) (*GeneratedAudio, error)
}

// PostOptions tunes one story generation call.
type PostOptions struct {
	// MaxLength caps the generated text length in characters; zero means
	// no cap.
	MaxLength int
}

// PostResult is generated story text plus the model that produced it.
type PostResult struct {
	Content string
	Model   string
	Usage   Usage
}

// PostGenerator writes story text from a prompt.
type PostGenerator interface {
	GeneratePost(ctx context.Context, prompt string, opts PostOptions) (*PostResult, error)
}

// ExtractedTopic is one theme the summarizer found across a post window.
// PostIndices are zero-based positions into the post slice the summarizer
// was given; callers map them back to post IDs.
type ExtractedTopic struct {
	Topic       string `json:"topic"`
	Context     string `json:"context"`
	PostIndices []int  `json:"post_indices"`
}

// DigestResult is the outcome of summarizing a topic's recent posts.
type DigestResult struct {
	Summary string
	Topics  []ExtractedTopic
	Usage   Usage
}

// TopicSummarizer condenses a window of posts about a topic into a
// summary plus the trending themes it surfaced.
type TopicSummarizer interface {
	SummarizePosts(ctx context.Context, topic string, posts []string) (*DigestResult, error)
}

// Suggestion is one proposed story idea for an account.
type Suggestion struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// SuggestionResult is a batch of story ideas for one account.
type SuggestionResult struct {
	Suggestions []Suggestion
	Usage       Usage
}

// SuggestionGenerator proposes story ideas, seeded by the account's
// recent activity summary.
type SuggestionGenerator interface {
	GenerateSuggestions(ctx context.Context, activitySummary string) (*SuggestionResult, error)
}
