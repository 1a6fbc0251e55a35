package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONStripsCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"summary": "x"}`, `{"summary": "x"}`},
		{"fenced", "```json\n{\"summary\": \"x\"}\n```", `{"summary": "x"}`},
		{"fenced without language", "```\n{\"summary\": \"x\"}\n```", `{"summary": "x"}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}
