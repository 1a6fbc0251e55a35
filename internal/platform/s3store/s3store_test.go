package s3store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThumbKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"actors/a-1/avatar.png", "actors/a-1/thumbnails/avatar.jpg"},
		{"uploads/ref.jpeg", "uploads/thumbnails/ref.jpg"},
		{"bare", "thumbnails/bare.jpg"},
		{"nested/dir/no-ext", "nested/dir/thumbnails/no-ext.jpg"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, thumbKey(tc.key), tc.key)
	}
}
