package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// Suggestion job names. dispatch_suggestions fans out one
// generate_suggestions job per active account.
const (
	JobDispatchSuggestions = "dispatch_suggestions"
	JobGenerateSuggestions = "generate_suggestions"
)

// activityTitleLimit caps how many recent story titles seed the
// suggestion prompt.
const activityTitleLimit = 10

// SuggestionDispatcher fans the hourly suggestion pass out into one job
// per active account.
type SuggestionDispatcher struct {
	accounts store.AccountStore
	enqueuer Enqueuer
}

// NewSuggestionDispatcher wires the dispatcher.
func NewSuggestionDispatcher(accounts store.AccountStore, enqueuer Enqueuer) *SuggestionDispatcher {
	return &SuggestionDispatcher{accounts: accounts, enqueuer: enqueuer}
}

// HandleDispatchSuggestions enqueues a generate_suggestions job for every
// active account. Per-account dedupe IDs let overlapping passes collapse
// instead of double-generating.
func (d *SuggestionDispatcher) HandleDispatchSuggestions(ctx context.Context, job *queue.Job) error {
	ids, err := d.accounts.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active accounts: %w", err)
	}

	log := logger.FromContext(ctx)
	enqueued := 0
	for _, accountID := range ids {
		_, err := d.enqueuer.Enqueue(ctx, queue.QueueContent, JobGenerateSuggestions, map[string]any{
			"account_id": accountID.String(),
		}, queue.EnqueueOptions{
			JobID: "suggest:" + accountID.String(),
		})
		if err != nil {
			// One bad account must not starve the rest of the pass.
			log.Error("failed to enqueue suggestion job",
				"account_id", accountID,
				"error", err)
			continue
		}
		enqueued++
	}

	log.Info("suggestion pass dispatched",
		"accounts", len(ids),
		"enqueued", enqueued)
	return nil
}

// SuggestionPipeline generates story suggestions for one account and
// replaces the account's previous batch.
type SuggestionPipeline struct {
	accounts    store.AccountStore
	suggestions store.SuggestionStore
	generator   generation.SuggestionGenerator
}

// NewSuggestionPipeline wires the suggestion pipeline.
func NewSuggestionPipeline(
	accounts store.AccountStore,
	suggestions store.SuggestionStore,
	generator generation.SuggestionGenerator,
) *SuggestionPipeline {
	return &SuggestionPipeline{
		accounts:    accounts,
		suggestions: suggestions,
		generator:   generator,
	}
}

// HandleGenerateSuggestions processes one generate_suggestions job.
// Payload: {"account_id": "<uuid>"}.
func (p *SuggestionPipeline) HandleGenerateSuggestions(ctx context.Context, job *queue.Job) error {
	accountID, err := payloadID(job, "account_id")
	if err != nil {
		return err
	}

	titles, err := p.accounts.RecentArtifactTitles(ctx, accountID, activityTitleLimit)
	if err != nil {
		return err
	}

	result, err := p.generator.GenerateSuggestions(ctx, activitySummary(titles))
	if err != nil {
		return fmt.Errorf("suggestion generation failed: %w", err)
	}

	batch := make([]*domain.Suggestion, 0, len(result.Suggestions))
	for _, s := range result.Suggestions {
		suggestion, err := domain.NewSuggestion(accountID, s.Title, s.Prompt)
		if err != nil {
			// Skip malformed model output instead of failing the batch.
			logger.FromContext(ctx).Warn("dropping invalid suggestion",
				"account_id", accountID,
				"error", err)
			continue
		}
		batch = append(batch, suggestion)
	}

	if err := p.suggestions.ReplaceForAccount(ctx, accountID, batch); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("suggestions generated",
		"account_id", accountID,
		"count", len(batch),
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"cost_usd", result.Usage.CostUSD)
	return nil
}

// activitySummary turns recent story titles into the seed text for the
// suggestion prompt.
func activitySummary(titles []string) string {
	if len(titles) == 0 {
		return "This account has no stories yet."
	}
	var b strings.Builder
	b.WriteString("Recent stories by this account:\n")
	for _, title := range titles {
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	return b.String()
}
