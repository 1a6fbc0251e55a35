package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Suggestion
var (
	ErrEmptySuggestionAccountID = errors.New("suggestion account ID cannot be empty")
	ErrEmptySuggestionTitle     = errors.New("suggestion title cannot be empty")
	ErrEmptySuggestionPrompt    = errors.New("suggestion prompt cannot be empty")
)

// Suggestion is a generated story idea for one account. The hourly
// generation pass replaces an account's suggestions wholesale, so rows
// never outlive the batch that produced them.
type Suggestion struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSuggestion creates a suggestion with a generated ID.
func NewSuggestion(accountID uuid.UUID, title, prompt string) (*Suggestion, error) {
	s := &Suggestion{
		ID:        uuid.New(),
		AccountID: accountID,
		Title:     title,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the suggestion data is valid.
func (s *Suggestion) Validate() error {
	if s.AccountID == uuid.Nil {
		return ErrEmptySuggestionAccountID
	}
	if s.Title == "" {
		return ErrEmptySuggestionTitle
	}
	if s.Prompt == "" {
		return ErrEmptySuggestionPrompt
	}
	return nil
}
