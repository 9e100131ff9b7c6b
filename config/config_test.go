package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/did-service/pkg/storage"
)

func TestConfig(t *testing.T) {
	config, err := LoadConfig(ConfigFileName)
	assert.NoError(t, err)
	assert.NotEmpty(t, config)

	assert.False(t, config.Server.ReadTimeout.String() == "")
	assert.False(t, config.Server.WriteTimeout.String() == "")
	assert.False(t, config.Server.ShutdownTimeout.String() == "")
	assert.False(t, config.Server.APIHost == "")

	assert.Equal(t, string(storage.Bolt), config.Services.StorageProvider)
	require.Len(t, config.Services.StorageOptions, 1)
	assert.Equal(t, storage.BoltDBFilePathOption, config.Services.StorageOptions[0].ID)
	assert.Equal(t, "default-password", config.Services.KeyStoreConfig.ServiceKeyPassword)

	didConfig := config.Services.DIDConfig
	assert.Equal(t, []string{"key", "web", "ebsi"}, didConfig.Methods)
	assert.Equal(t, DefaultEBSIRegistryURL, didConfig.EBSI.RegistryURL)
	assert.Equal(t, 5, didConfig.EBSI.ResolveAttempts)
	assert.Equal(t, time.Second, didConfig.EBSI.RetryDelay)
	assert.Equal(t, 10*time.Second, didConfig.HTTPTimeout)
}

func TestDefaultConfig(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	require.NotEmpty(t, config)

	assert.Equal(t, EnvironmentDev, config.Server.Environment)
	assert.Equal(t, string(storage.Bolt), config.Services.StorageProvider)
	assert.False(t, config.Services.KeyStoreConfig.IsEmpty())
	assert.Equal(t, DefaultEBSIResolveTries, config.Services.DIDConfig.EBSI.ResolveAttempts)
	assert.Equal(t, DefaultEBSIRetryDelay, config.Services.DIDConfig.EBSI.RetryDelay)
}

func TestConfigDefaultsForPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[services]
storage = "redis"

[services.did]
methods = ["key", "iota"]

[services.did.iota]
node_url = "http://localhost:14265"
`), 0600))

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	require.NotEmpty(t, config)

	didConfig := config.Services.DIDConfig
	assert.Equal(t, "did", didConfig.Name)
	assert.Equal(t, "http://localhost:14265", didConfig.IOTA.NodeURL)
	assert.Equal(t, DefaultEBSIRegistryURL, didConfig.EBSI.RegistryURL)
	assert.Equal(t, DefaultEBSIResolveTries, didConfig.EBSI.ResolveAttempts)
}

func TestConfigBadExtension(t *testing.T) {
	_, err := LoadConfig("config.yaml")
	assert.Error(t, err)
}
