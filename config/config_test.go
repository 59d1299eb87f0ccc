package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRootCmd(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})

	cmd := &cobra.Command{Use: "codechat"}
	InitFlags(cmd)
	return cmd
}

func TestLoadConfigs_Defaults(t *testing.T) {
	cmd := newRootCmd(t)

	config, err := loadConfigs(cmd, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", config.BackendURL)
	assert.Equal(t, "deepseek-coder", config.Model)
	assert.Equal(t, time.Second, config.PollInterval)
	assert.Zero(t, config.RequestTimeout)
	assert.True(t, config.FollowUpRelevance)
	assert.Equal(t, 200, config.CacheMaxEntries)
	assert.Equal(t, "warn", config.LogLevel)
	assert.False(t, config.HasSource())
}

func TestLoadConfigs_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`model: codellama
poll_interval: 250ms
follow_up_relevance: false
directory: /srv/project
theme: monokai
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codechat-config.yml"), content, 0644))
	t.Setenv("OLLAMA_URL", "http://gpu-box:11434")

	cmd := newRootCmd(t)
	require.NoError(t, cmd.PersistentFlags().Set("theme", "github"))

	config, err := loadConfigs(cmd, dir)
	require.NoError(t, err)

	assert.Equal(t, "codellama", config.Model)
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.False(t, config.FollowUpRelevance)
	assert.Equal(t, "/srv/project", config.Directory)
	assert.Equal(t, "http://gpu-box:11434", config.OllamaURL)
	assert.Equal(t, "github", config.Theme)
	assert.True(t, config.HasSource())
}

func TestLoadConfigs_ExplicitJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend_url":"http://backend:5000/api","request_timeout":"30s"}`), 0644))

	cmd := newRootCmd(t)
	require.NoError(t, cmd.PersistentFlags().Set("config", path))

	config, err := loadConfigs(cmd, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://backend:5000/api", config.BackendURL)
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
}

func TestLoadConfigs_MissingExplicitFile(t *testing.T) {
	cmd := newRootCmd(t)
	require.NoError(t, cmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "nope.yml")))

	_, err := loadConfigs(cmd, t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigs_RepoAndDirConflict(t *testing.T) {
	cmd := newRootCmd(t)
	require.NoError(t, cmd.PersistentFlags().Set("repo", "https://github.com/acme/app"))
	require.NoError(t, cmd.PersistentFlags().Set("dir", "/srv/project"))

	_, err := loadConfigs(cmd, t.TempDir())
	assert.ErrorIs(t, err, ErrSourceConflict)
}
