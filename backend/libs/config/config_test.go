package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Remote struct {
		BaseURL string        `yaml:"baseUrl" env:"TEST_REMOTE_URL"`
		Timeout time.Duration `yaml:"timeout" env:"TEST_REMOTE_TIMEOUT"`
	} `yaml:"remote"`
	Cache struct {
		Driver string
		Hosts  []string
	} `yaml:"cache"`
	Debug bool `yaml:"debug" env:"TEST_DEBUG"`
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  baseUrl: http://file\n  timeout: 2s\ncache:\n  driver: sqlite\n"), 0o600))

	t.Setenv("TEST_REMOTE_URL", "http://env")
	t.Setenv("CACHE_HOSTS", "a:1, b:2,")
	t.Setenv("TEST_DEBUG", "true")

	var cfg sample
	require.NoError(t, LoadConfig(path, &cfg))

	assert.Equal(t, "http://env", cfg.Remote.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Cache.Hosts)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	require.Error(t, LoadConfig("", nil))

	var notStruct int
	require.Error(t, LoadConfig("", &notStruct))

	t.Setenv("TEST_REMOTE_TIMEOUT", "soon")
	var cfg sample
	err := LoadConfig("", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REMOTE_TIMEOUT")
}

func TestLoadConfigUsesPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))
	t.Setenv(PathEnv, path)

	var cfg sample
	require.NoError(t, LoadConfig("", &cfg))
	assert.True(t, cfg.Debug)
}
