package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/s3store"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// fakeActorStore implements store.ActorStore in memory and records the
// status transitions it saw.
type fakeActorStore struct {
	actors      map[uuid.UUID]*domain.Actor
	transitions []domain.ActorImageStatus
	metadata    []map[string]any

	continuity       string
	continuityTokens int
	continuityCost   float64

	avatarKey  string
	avatarCost float64

	failOn map[string]error
}

func newFakeActorStore(actors ...*domain.Actor) *fakeActorStore {
	s := &fakeActorStore{
		actors: make(map[uuid.UUID]*domain.Actor),
		failOn: make(map[string]error),
	}
	for _, a := range actors {
		s.actors[a.ID] = a
	}
	return s
}

func (s *fakeActorStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	if err := s.failOn["GetByID"]; err != nil {
		return nil, err
	}
	actor, ok := s.actors[id]
	if !ok {
		return nil, store.ErrActorNotFound
	}
	copied := *actor
	return &copied, nil
}

func (s *fakeActorStore) UpdateImageStatus(
	ctx context.Context, id uuid.UUID, status domain.ActorImageStatus, metadata map[string]any,
) error {
	if err := s.failOn["UpdateImageStatus"]; err != nil {
		return err
	}
	actor, ok := s.actors[id]
	if !ok {
		return store.ErrActorNotFound
	}
	actor.ImageStatus = status
	s.transitions = append(s.transitions, status)
	s.metadata = append(s.metadata, metadata)
	return nil
}

func (s *fakeActorStore) SetContinuity(ctx context.Context, id uuid.UUID, continuity string, tokens int, costUSD float64) error {
	if err := s.failOn["SetContinuity"]; err != nil {
		return err
	}
	actor, ok := s.actors[id]
	if !ok {
		return store.ErrActorNotFound
	}
	actor.CharacterContinuity = continuity
	s.continuity = continuity
	s.continuityTokens += tokens
	s.continuityCost += costUSD
	return nil
}

func (s *fakeActorStore) SetAvatar(ctx context.Context, id uuid.UUID, imageKey string, costUSD float64, processedAt time.Time) error {
	if err := s.failOn["SetAvatar"]; err != nil {
		return err
	}
	actor, ok := s.actors[id]
	if !ok {
		return store.ErrActorNotFound
	}
	actor.AvatarImageKey = imageKey
	s.avatarKey = imageKey
	s.avatarCost += costUSD
	return nil
}

// fakeArtifactStore implements store.ArtifactStore in memory.
type fakeArtifactStore struct {
	artifacts map[uuid.UUID]*domain.Artifact
	pages     map[uuid.UUID][]*domain.ArtifactPage

	textTokens int
	textCost   float64
	setTextErr error
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{
		artifacts: make(map[uuid.UUID]*domain.Artifact),
		pages:     make(map[uuid.UUID][]*domain.ArtifactPage),
	}
}

func (s *fakeArtifactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, store.ErrArtifactNotFound
	}
	return artifact, nil
}

func (s *fakeArtifactStore) GetPage(ctx context.Context, pageID uuid.UUID) (*domain.ArtifactPage, error) {
	for _, pages := range s.pages {
		for _, page := range pages {
			if page.ID == pageID {
				return page, nil
			}
		}
	}
	return nil, store.ErrArtifactPageNotFound
}

func (s *fakeArtifactStore) ListPages(ctx context.Context, artifactID uuid.UUID) ([]*domain.ArtifactPage, error) {
	return s.pages[artifactID], nil
}

func (s *fakeArtifactStore) SetGeneratedText(
	ctx context.Context, id uuid.UUID, text string, tokens int, costUSD float64,
) error {
	if s.setTextErr != nil {
		return s.setTextErr
	}
	artifact, ok := s.artifacts[id]
	if !ok {
		return store.ErrArtifactNotFound
	}
	artifact.Text = text
	s.textTokens += tokens
	s.textCost += costUSD
	return nil
}

// fakeMediaStore implements store.MediaStore in memory.
type fakeMediaStore struct {
	created     []*domain.Media
	contentKeys map[uuid.UUID]string
	metadata    map[uuid.UUID]map[string]any
	byID        map[uuid.UUID]*domain.Media
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{
		contentKeys: make(map[uuid.UUID]string),
		metadata:    make(map[uuid.UUID]map[string]any),
		byID:        make(map[uuid.UUID]*domain.Media),
	}
}

func (s *fakeMediaStore) Create(ctx context.Context, media *domain.Media) error {
	if err := media.Validate(); err != nil {
		return err
	}
	s.created = append(s.created, media)
	s.byID[media.ID] = media
	return nil
}

func (s *fakeMediaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	media, ok := s.byID[id]
	if !ok {
		return nil, store.ErrMediaNotFound
	}
	return media, nil
}

func (s *fakeMediaStore) CommitSession(
	ctx context.Context, sessionID uuid.UUID, ownerType domain.OwnerType, ownerID uuid.UUID,
) (bool, error) {
	return false, nil
}

func (s *fakeMediaStore) SetContentKey(ctx context.Context, id uuid.UUID, key string, metadata map[string]any) error {
	if _, ok := s.byID[id]; !ok {
		return store.ErrMediaNotFound
	}
	s.contentKeys[id] = key
	s.metadata[id] = metadata
	return nil
}

func (s *fakeMediaStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// fakeStorage records uploads and signs predictable URLs.
type fakeStorage struct {
	uploads   map[string][]byte
	mimeTypes map[string]string
	signErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploads:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
	}
}

func (s *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.uploads[key] = data
	s.mimeTypes[key] = contentType
	return nil
}

func (s *fakeStorage) SignedURL(ctx context.Context, key string, variant s3store.Variant, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://signed/" + string(variant) + "/" + key, nil
}

// enqueueCall records one chained enqueue.
type enqueueCall struct {
	Queue   string
	JobName string
	Payload map[string]any
	Opts    queue.EnqueueOptions
}

// fakeEnqueuer records chained jobs.
type fakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (e *fakeEnqueuer) Enqueue(
	ctx context.Context, queueName, jobName string, payload map[string]any, opts queue.EnqueueOptions,
) (*queue.JobHandle, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls = append(e.calls, enqueueCall{Queue: queueName, JobName: jobName, Payload: payload, Opts: opts})
	return &queue.JobHandle{ID: opts.JobID}, nil
}

// fakeAnalyzer implements generation.ImageAnalyzer.
type fakeAnalyzer struct {
	result *generation.ImageAnalysis
	err    error
	calls  []string
}

func (a *fakeAnalyzer) AnalyzeImage(ctx context.Context, imageURL string) (*generation.ImageAnalysis, error) {
	a.calls = append(a.calls, imageURL)
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

// fakeAvatarGenerator implements generation.AvatarGenerator.
type fakeAvatarGenerator struct {
	result       *generation.GeneratedImage
	err          error
	continuities []string
}

func (g *fakeAvatarGenerator) GenerateAvatar(ctx context.Context, prompt, continuity string) (*generation.GeneratedImage, error) {
	g.continuities = append(g.continuities, continuity)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// fakeImageGenerator implements generation.ImageGenerator.
type fakeImageGenerator struct {
	result  *generation.GeneratedImage
	err     error
	prompts []string
}

func (g *fakeImageGenerator) GenerateImage(ctx context.Context, prompt string) (*generation.GeneratedImage, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// fakeAudioGenerator implements generation.AudioGenerator.
type fakeAudioGenerator struct {
	result   *generation.GeneratedAudio
	err      error
	requests []generation.AudioRequest
}

func (g *fakeAudioGenerator) GenerateAudio(ctx context.Context, req generation.AudioRequest) (*generation.GeneratedAudio, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// testJob builds a job with the given name and payload.
func testJob(name string, payload map[string]any) *queue.Job {
	return &queue.Job{
		ID:      uuid.New().String(),
		Name:    name,
		Payload: payload,
	}
}
