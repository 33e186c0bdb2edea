package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelTableIsTotal(t *testing.T) {
	for _, m := range Models() {
		for _, kind := range Kinds() {
			wire, err := MapModel(m, kind)
			require.NoError(t, err, "%s on %s", m, kind)
			assert.NotEmpty(t, wire)

			ceiling, err := Ceiling(m, kind)
			require.NoError(t, err)
			assert.Positive(t, ceiling)

			// pure: repeated calls agree
			again, _ := MapModel(m, kind)
			assert.Equal(t, wire, again)
		}
	}
}

func TestWireIDsAreProviderSpecific(t *testing.T) {
	for _, m := range Models() {
		seen := map[string]Kind{}
		for _, kind := range Kinds() {
			wire, _ := MapModel(m, kind)
			seen[wire] = kind
		}
		assert.Len(t, seen, len(Kinds()), m)
	}

	bedrock, _ := MapModel(Claude3Haiku, Bedrock)
	vertex, _ := MapModel(Claude3Haiku, VertexAI)
	direct, _ := MapModel(Claude3Haiku, Anthropic)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", bedrock)
	assert.Equal(t, "claude-3-haiku@20240307", vertex)
	assert.Equal(t, "claude-3-haiku-20240307", direct)
}

func TestClampMaxTokens(t *testing.T) {
	requests := []int{0, 1, 100, 4095, 4096, 4097, 8191, 8192, 8193, 100000}

	for _, m := range Models() {
		for _, kind := range Kinds() {
			ceiling, _ := Ceiling(m, kind)
			for _, requested := range requests {
				got, err := ClampMaxTokens(m, kind, requested)
				require.NoError(t, err)
				assert.LessOrEqual(t, got, ceiling)
				assert.LessOrEqual(t, got, requested)
				assert.Equal(t, min(requested, ceiling), got)
			}
		}
	}
}

func TestCeilingAsymmetry(t *testing.T) {
	for _, kind := range []Kind{Anthropic, VertexAI} {
		c, _ := Ceiling(Claude35Sonnet, kind)
		assert.Equal(t, 8192, c, kind)
	}

	for _, m := range Models() {
		c, _ := Ceiling(m, Bedrock)
		assert.Equal(t, 4096, c, m)
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("claude-3-opus-20240229")
	require.NoError(t, err)
	assert.Equal(t, Claude3Opus, m)

	m, err = ParseModel("claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, Claude35Sonnet, m)

	for _, bad := range []string{"", "x", "gpt-4", "anthropic.claude-3-haiku-20240307-v1:0"} {
		_, err := ParseModel(bad)
		assert.True(t, errors.Is(err, ErrUnknownModel), bad)
	}
}

func TestLookupUnmapped(t *testing.T) {
	_, err := MapModel(Claude3Opus, Kind("openai"))
	assert.True(t, errors.Is(err, ErrUnsupportedModel))

	_, err = ClampMaxTokens(Model("claude-9"), Anthropic, 10)
	assert.True(t, errors.Is(err, ErrUnsupportedModel))
}
