package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalKeys(t *testing.T) {
	assert.Equal(t, "stories:index", StoriesIndexKey())
	assert.Equal(t, "stories:abc:story", StoryKey("abc"))
	assert.Equal(t, "stories:abc:pages:page2", PageKey("abc", 2))
	assert.Equal(t, "stories:abc:proposals", ProposalsKey("abc"))
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"index", StoriesIndexKey(), false},
		{"page", PageKey("5f1c", 3), false},
		{"empty", "", true},
		{"empty segment", "stories::story", true},
		{"parent dir", "stories:..:story", true},
		{"current dir", "stories:.:story", true},
		{"slash", "stories:a/b:story", true},
		{"backslash", `stories:a\b:story`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
