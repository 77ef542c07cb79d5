package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// chdirTemp isolates tests from a .env in the package directory.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CLIPJOT_API_URL", "https://clipjot.example/")
	t.Setenv("CLIPJOT_API_TOKEN", " token-123 ")
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	setRequired(t)

	cfg, err := Load("", "")
	require.NoError(t, err)

	require.Equal(t, "https://clipjot.example", cfg.ClipjotAPIURL)
	require.Equal(t, "token-123", cfg.ClipjotAPIToken)
	require.Equal(t, "http://localhost:11434", cfg.OllamaHost)
	require.Equal(t, "qwen3", cfg.OllamaModel)
	require.Equal(t, time.Second, cfg.MinDelay())
	require.Equal(t, 3*time.Second, cfg.MaxDelay())
	require.Equal(t, 300*time.Second, cfg.MaxBackoff())
	require.Equal(t, 30*time.Second, cfg.FetchTimeoutDuration())
	require.Equal(t, 120*time.Second, cfg.SyncTimeoutDuration())
	require.Equal(t, 10*time.Second, cfg.LoopErrorSleepDuration())
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 50, cfg.SyncLimit)
	require.Equal(t, "state.json", cfg.StateFile)
	require.True(t, cfg.LogVerbose)
	require.False(t, cfg.FetchHeadless)
	require.Empty(t, cfg.AdminAddr)
	require.Empty(t, cfg.AuditDSN)
}

func TestLoadMissingRequired(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CLIPJOT_API_URL", "")
	t.Setenv("CLIPJOT_API_TOKEN", "")

	_, err := Load("", "")
	require.ErrorIs(t, err, ErrMissingRequired)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	setRequired(t)
	t.Setenv("FETCH_MIN_DELAY", "0.5")
	t.Setenv("FETCH_MAX_DELAY", "2")
	t.Setenv("FETCH_HEADLESS", "true")
	t.Setenv("OLLAMA_MODEL", "llama3.2:3b")

	cfg, err := Load("", "")
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, cfg.MinDelay())
	require.Equal(t, 2*time.Second, cfg.MaxDelay())
	require.True(t, cfg.FetchHeadless)
	require.Equal(t, "llama3.2:3b", cfg.OllamaModel)
}

func TestLoadEnvFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CLIPJOT_API_TOKEN", "from-env")
	envPath := filepath.Join(t.TempDir(), "agent.env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"XFIX_TEST_ENVFILE_URL=1\nCLIPJOT_API_TOKEN=from-file\n",
	), 0o600))
	t.Setenv("CLIPJOT_API_URL", "https://clipjot.example")
	t.Cleanup(func() { _ = os.Unsetenv("XFIX_TEST_ENVFILE_URL") })

	cfg, err := Load(envPath, "")
	require.NoError(t, err)
	require.Equal(t, "1", os.Getenv("XFIX_TEST_ENVFILE_URL"))
	require.Equal(t, "from-env", cfg.ClipjotAPIToken)
}

func TestLoadMissingEnvFile(t *testing.T) {
	chdirTemp(t)
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"), "")
	require.Error(t, err)
}

func TestLoadWithFileOverrides(t *testing.T) {
	chdirTemp(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
ollama_model: mistral
fetch_max_backoff: 60
sync_limit: 20
state_file: /var/lib/xfix/state.json
admin_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load("", path)
	require.NoError(t, err)
	require.Equal(t, "mistral", cfg.OllamaModel)
	require.Equal(t, time.Minute, cfg.MaxBackoff())
	require.Equal(t, 20, cfg.SyncLimit)
	require.Equal(t, "/var/lib/xfix/state.json", cfg.StateFile)
	require.Equal(t, ":9090", cfg.AdminAddr)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{
		ClipjotAPIURL:   "https://clipjot.example",
		ClipjotAPIToken: "t",
		OllamaModel:     "qwen3",
		FetchMinDelay:   1,
		FetchMaxDelay:   3,
		FetchMaxBackoff: 300,
		FetchTimeout:    30,
		MaxAttempts:     3,
		SyncLimit:       50,
		StateFile:       "state.json",
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"negative min":   func(c *Config) { c.FetchMinDelay = -1 },
		"max below min":  func(c *Config) { c.FetchMaxDelay = 0.5 },
		"zero backoff":   func(c *Config) { c.FetchMaxBackoff = 0 },
		"zero attempts":  func(c *Config) { c.MaxAttempts = 0 },
		"limit too high": func(c *Config) { c.SyncLimit = 101 },
		"no state file":  func(c *Config) { c.StateFile = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
