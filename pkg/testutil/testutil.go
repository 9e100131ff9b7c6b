package testutil

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/did-service/pkg/storage"
)

// TestDatabases lists the storage backends service tests run against.
var TestDatabases = []struct {
	Name           string
	ServiceStorage func(t *testing.T) storage.ServiceStorage
}{
	{
		Name:           "Test with Bolt DB",
		ServiceStorage: setupBoltTestDB,
	},
	{
		Name:           "Test with Redis DB",
		ServiceStorage: setupRedisTestDB,
	},
}

func setupBoltTestDB(t *testing.T) storage.ServiceStorage {
	s, err := storage.NewStorage(storage.Bolt, storage.Option{
		ID:     storage.BoltDBFilePathOption,
		Option: filepath.Join(t.TempDir(), "bolt.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func setupRedisTestDB(t *testing.T) storage.ServiceStorage {
	server := miniredis.RunT(t)
	s, err := storage.NewStorage(storage.Redis, storage.Option{
		ID:     storage.RedisAddressOption,
		Option: server.Addr(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
