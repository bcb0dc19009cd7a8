package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderGemini),
			WithAPIKey("key"),
			WithEmbeddingModel("text-embedding-004"),
			WithDimensions(768),
		)
		assert.Equal(t, ProviderGemini, cfg.Provider)
		assert.Equal(t, "key", cfg.APIKey)
		assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		provider string
		want     string
	}{
		{name: "adds v1", host: "http://localhost:11434", provider: ProviderOpenAI, want: "http://localhost:11434/v1"},
		{name: "trailing slash", host: "http://localhost:11434/", provider: ProviderOpenAI, want: "http://localhost:11434/v1"},
		{name: "already v1", host: "http://localhost:11434/v1", provider: ProviderOpenAI, want: "http://localhost:11434/v1"},
		{name: "gemini untouched", host: "https://generativelanguage.googleapis.com", provider: ProviderGemini, want: "https://generativelanguage.googleapis.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}
}

func TestConfig_NormalizeFillsDimensions(t *testing.T) {
	cfg := &Config{EmbeddingModel: "text-embedding-3-large"}
	cfg.Normalize()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, 3072, cfg.Dimensions)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "missing host", cfg: &Config{Provider: ProviderOpenAI, EmbeddingModel: "m", Dimensions: 3}, wantErr: "EmbeddingHost"},
		{name: "gemini without key", cfg: &Config{Provider: ProviderGemini, EmbeddingModel: "m", Dimensions: 3}, wantErr: "APIKey"},
		{name: "unknown provider", cfg: &Config{Provider: "acme", EmbeddingModel: "m", Dimensions: 3}, wantErr: "unsupported provider"},
		{name: "missing model", cfg: &Config{Provider: ProviderMock, Dimensions: 3}, wantErr: "EmbeddingModel"},
		{name: "unknown model without dims", cfg: &Config{Provider: ProviderMock, EmbeddingModel: "custom"}, wantErr: "Dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.ErrorIs(t, (&Config{Provider: "acme", EmbeddingModel: "m", Dimensions: 1}).Validate(), ErrUnsupportedProvider)
}
