package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-housekeeper/internal/adapters/intake"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/ports"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildContainer(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
embedding:
  provider: openai
memory:
  type: inmemory
store:
  type: memory
mail:
  provider: intake
intake:
  listen_address: 127.0.0.1:0
server:
  enabled: true
  listen_address: 127.0.0.1:0
scheduler:
  enabled: false
logging:
  level: error
`)

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(
		service *core.HousekeeperService,
		frontends []ports.Frontend,
		in *intake.Intake,
		records ports.RecordStore,
	) {
		defer records.Stop()

		assert.NotNil(t, service)
		require.NotNil(t, in)
		require.Len(t, frontends, 2)
		assert.Equal(t, "smtp-intake", frontends[0].Name())
		assert.Equal(t, "http-api", frontends[1].Name())
	})
	require.NoError(t, err)
}

func TestBuildContainerInvalidScoring(t *testing.T) {
	path := writeConfig(t, `
scoring:
  weight_llm: 0.9
  weight_vector: 0.9
  weight_rule: 0.1
`)

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(*config.Config) {})
	assert.Error(t, err)
}

func TestBuildCLIContainer(t *testing.T) {
	opts := &CLIOptions{
		Provider:   "openai",
		StorePath:  filepath.Join(t.TempDir(), "housekeeper.db"),
		MemoryType: "inmemory",
	}

	container, err := BuildCLIContainer(opts)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config, service *core.HousekeeperService, records ports.RecordStore) {
		defer records.Stop()

		assert.NotNil(t, service)
		assert.False(t, cfg.GetServer().Enabled)
		assert.False(t, cfg.GetScheduler().Enabled)
		assert.Equal(t, "sqlite", cfg.GetStore().Type)
		assert.Equal(t, opts.StorePath, cfg.GetStore().SQLitePath)
	})
	require.NoError(t, err)
}

func TestCreateConfigFromOptions(t *testing.T) {
	cfg := createConfigFromOptions(&CLIOptions{
		Provider:       "gemini",
		GeminiAPIKey:   "gemini-key",
		EmbeddingModel: "embedding-001",
		Verbose:        true,
	})

	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, "gemini", cfg.GetEmbedding().Provider)
	assert.Equal(t, 768, cfg.GetEmbedding().Dimension)
	assert.Equal(t, "gemini-key", cfg.GetGemini().APIKey)
	assert.Equal(t, "embedding-001", cfg.GetGemini().EmbeddingModel)
	assert.Equal(t, "debug", cfg.GetLogging().Level)
}

func TestApplyCLIOverridesDisablesIntake(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("mail.provider", "intake")
	v.Set("scheduler.enabled", true)
	cfg := config.NewFromViper(v)

	applyCLIOverrides(cfg, &CLIOptions{MemoryPath: "/tmp/memory"})

	assert.Equal(t, "none", cfg.GetMailProvider())
	assert.False(t, cfg.GetScheduler().Enabled)
	assert.Equal(t, "/tmp/memory", cfg.GetMemory().Path)
}
