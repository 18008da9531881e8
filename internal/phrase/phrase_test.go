package phrase

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phrasePattern = regexp.MustCompile(`^[a-z]+-[a-z]+$`)

func TestGenerateMatchesPatternAndValidates(t *testing.T) {
	for i := 0; i < 50; i++ {
		p, err := Generate(nil)
		require.NoError(t, err)
		assert.Regexp(t, phrasePattern, p)
		assert.True(t, Validate(p))
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"swift-ocean", true},
		{"  Swift-Ocean  ", true},
		{"swift-", false},
		{"-ocean", false},
		{"swiftocean", false},
		{"swift-ocean-extra", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range cases {
		assert.Equal(t, tt.want, Validate(tt.in), "Validate(%q)", tt.in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "swift-ocean", Normalize("  Swift-Ocean  "))
}

func TestHashStableAndNormalizationInvariant(t *testing.T) {
	h1 := Hash("swift-ocean")
	h2 := Hash("  Swift-Ocean  ")
	h3 := Hash(Normalize("Swift-Ocean"))

	assert.Equal(t, h1, h2)
	assert.Equal(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestGenerateWithCustomWordLists(t *testing.T) {
	lists := fakeWordLists{
		adjectives: []string{"only"},
		nouns:      []string{"choice"},
	}

	p, err := Generate(lists)
	require.NoError(t, err)
	assert.Equal(t, "only-choice", p)
}

type fakeWordLists struct {
	adjectives []string
	nouns      []string
}

func (f fakeWordLists) Adjectives() []string { return f.adjectives }
func (f fakeWordLists) Nouns() []string      { return f.nouns }
