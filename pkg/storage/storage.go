package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	Type      string
	OptionKey string
)

const (
	Bolt        Type = "bolt"
	Redis       Type = "redis"
	DatabaseSQL Type = "sql"
)

// Option configures a storage provider at Init time.
type Option struct {
	ID     OptionKey `json:"id,omitempty" toml:"id"`
	Option any       `json:"option,omitempty" toml:"option"`
}

// ServiceStorage describes the api for storage independent of DB providers. A namespace is
// a flat bucket of keys; nested names are built with MakeNamespace.
type ServiceStorage interface {
	Init(opts ...Option) error
	Type() Type
	URI() string
	IsOpen() bool
	Close() error

	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadPrefix(ctx context.Context, namespace, prefix string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	// Delete removes a key; deleting an absent key or namespace is not an error.
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Provider creates an uninitialized storage instance.
type Provider func() ServiceStorage

var availableStorages = make(map[Type]Provider)

// RegisterStorage makes a provider available to NewStorage. Providers register themselves in init.
func RegisterStorage(storageType Type, provider Provider) error {
	if _, ok := availableStorages[storageType]; ok {
		return fmt.Errorf("storage<%s> already registered", storageType)
	}
	logrus.Debugf("registering storage: %s", storageType)
	availableStorages[storageType] = provider
	return nil
}

// NewStorage creates and initializes a new instance of the provider of the given type.
func NewStorage(storageType Type, opts ...Option) (ServiceStorage, error) {
	provider, ok := availableStorages[storageType]
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
	storage := provider()
	if err := storage.Init(opts...); err != nil {
		return nil, errors.Wrapf(err, "initializing storage<%s>", storageType)
	}
	return storage, nil
}

// IsStorageAvailable returns whether a provider of the given type has been registered.
func IsStorageAvailable(storageType Type) bool {
	_, ok := availableStorages[storageType]
	return ok
}

// MakeNamespace takes a set of possible namespace values and combines them as a convention
func MakeNamespace(ns ...string) string {
	return strings.Join(ns, "-")
}

// Join builds the flat key used by providers that have no native namespaces.
func Join(parts ...string) string {
	return strings.Join(parts, ":")
}
