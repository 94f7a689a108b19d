package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "heirfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  workers: 9\n"), 0o600))

	v := viper.New()
	used, err := InitConfig(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 9, v.GetInt("run.workers"))
	assert.Equal(t, "heir_lead", v.GetString("pubsub.event"))
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := InitConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
