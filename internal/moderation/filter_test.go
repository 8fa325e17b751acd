package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagged(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"clean", "hello world", false},
		{"banned word", "I want to die", true},
		{"upper case", "BOMB threat", true},
		{"mixed case phrase", "just Shut Up already", true},
		{"substring match", "my diet starts monday", true},
		{"phrase needs space", "shutup", false},
		{"whitespace only", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flagged(tt.text))
		})
	}
}
