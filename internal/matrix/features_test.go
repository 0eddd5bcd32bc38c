package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr error
	}{
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
		{
			name:  "order preserved",
			input: []string{"inline_data", "^metadata_csum", "huge_file"},
			want:  []string{"inline_data", "^metadata_csum", "huge_file"},
		},
		{
			name:  "repeated toggle is idempotent",
			input: []string{"^extent", "inline_data", "^extent"},
			want:  []string{"^extent", "inline_data"},
		},
		{
			name:    "contradictory toggle",
			input:   []string{"extent", "^extent"},
			wantErr: ErrContradictoryFeature,
		},
		{
			name:    "bare caret",
			input:   []string{"^"},
			wantErr: ErrInvalidFeature,
		},
		{
			name:    "option injection",
			input:   []string{"extent -E foo"},
			wantErr: ErrInvalidFeature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFeatures(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Strings())
		})
	}
}

func TestFeaturesLookup(t *testing.T) {
	features, err := ParseFeatures([]string{"huge_file", "^extent"})
	require.NoError(t, err)

	assert.True(t, features.Enabled("huge_file"))
	assert.False(t, features.Disabled("huge_file"))
	assert.True(t, features.Disabled("extent"))
	assert.False(t, features.Enabled("extent"))
	assert.False(t, features.Enabled("inline_data"))
	assert.False(t, features.Disabled("inline_data"))
}
