package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRequiresCredential(t *testing.T) {
	for _, typ := range []ProviderType{ProviderTypeOpenAI, ProviderTypeAnthropic} {
		t.Run(string(typ), func(t *testing.T) {
			_, err := NewProvider(Config{Type: typ})
			assert.ErrorIs(t, err, ErrNoCredential)
		})
	}
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(Config{Type: "mistral", APIKey: "key"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestNewProviderDefaults(t *testing.T) {
	p, err := NewProvider(Config{Type: ProviderTypeOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIModel, p.Model())

	p, err = NewProvider(Config{Type: ProviderTypeAnthropic, APIKey: "sk-test", Model: "claude-3-5-haiku-20241022"})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", p.Model())
}
