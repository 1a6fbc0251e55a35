package pipeline

import (
	"errors"
	"strings"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// PageSeparator joins per-page narration so downstream audio keeps a
// clear pause between pages. Changing it breaks narration alignment for
// already-rendered artifacts.
const PageSeparator = "\n\n---\n\n"

// ErrNoNarrationText is returned when neither the pages nor the artifact
// carry any narration.
var ErrNoNarrationText = errors.New("artifact has no narration text")

// ResolveNarration assembles the narration text for an artifact.
// Structured per-page segments win when any page has them; the flat
// artifact-level text is the fallback for rows predating segments.
func ResolveNarration(artifact *domain.Artifact, pages []*domain.ArtifactPage) (string, error) {
	var parts []string
	for _, page := range pages {
		text := strings.TrimSpace(strings.Join(page.Segments, " "))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, PageSeparator), nil
	}

	if text := strings.TrimSpace(artifact.Text); text != "" {
		return text, nil
	}

	return "", ErrNoNarrationText
}
