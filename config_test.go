package rebalance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("accepts zero delay", func(t *testing.T) {
		cfg := Config{MaxRebalanceDelay: 0}
		require.NoError(t, cfg.Validate())
	})

	t.Run("rejects negative delay", func(t *testing.T) {
		cfg := Config{MaxRebalanceDelay: -time.Second}
		require.Error(t, cfg.Validate())
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("parses yaml and applies defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "assignor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("maxRebalanceDelay: 90s\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 90*time.Second, cfg.MaxRebalanceDelay)
	})

	t.Run("empty file falls back to defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "assignor.yaml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, DefaultMaxRebalanceDelay, cfg.MaxRebalanceDelay)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "assignor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("maxRebalanceDelay: [broken\n"), 0o600))

		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("negative delay rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "assignor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("maxRebalanceDelay: -5s\n"), 0o600))

		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}
