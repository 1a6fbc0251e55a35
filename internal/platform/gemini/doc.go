// Package gemini implements the generation interfaces on top of Google's
// Gemini API. One Client wraps the genai connection; the per-concern
// generators (vision analysis, image render, narration, summarization,
// suggestions) share its retry and usage-accounting helpers.
package gemini
