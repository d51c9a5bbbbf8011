package vlllm

import (
	"context"
	"io"
	"testing"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/utils"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	config *Config
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return "{}", nil
}

func TestCreate(t *testing.T) {
	Register("Stub", func(config *Config, logger *utils.Logger) (Generator, error) {
		return &stubGenerator{config: config}, nil
	})
	logger := utils.NewTestLogger(io.Discard)

	gen, err := Create(configs.VLLMConfig{Type: "stub", ModelName: "m1", APIKey: "k"}, logger)
	require.NoError(t, err)
	require.Equal(t, "stub", gen.Name())
	require.Equal(t, "m1", gen.(*stubGenerator).config.ModelName)
	require.Contains(t, GetRegisteredProviders(), "stub")

	_, err = Create(configs.VLLMConfig{Type: "missing"}, logger)
	require.Error(t, err)
}
