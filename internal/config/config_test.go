package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.WebhookURL)
	assert.Equal(t, "GitHub", cfg.Username)
	assert.Equal(t, "https://github.githubassets.com/images/modules/logos_page/GitHub-Mark.png", cfg.IconURL)
	assert.Equal(t, 10*time.Second, cfg.PostTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Development)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GH_NOTIFY_WEBHOOK_URL", "https://chat.example/hooks/abc/def")
	t.Setenv("GH_NOTIFY_CHANNEL", "#dev")
	t.Setenv("GH_NOTIFY_POST_TIMEOUT", "3s")
	t.Setenv("GH_NOTIFY_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example/hooks/abc/def", cfg.WebhookURL)
	assert.Equal(t, "#dev", cfg.Channel)
	assert.Equal(t, 3*time.Second, cfg.PostTimeout)
	assert.True(t, cfg.Development)
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("GH_NOTIFY_POST_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("GH_NOTIFY_POST_TIMEOUT", "0s")
	_, err = Load()
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
