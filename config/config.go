package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/storage"
)

const (
	DefaultConfigPath = "config/config.toml"
	ConfigFileName    = "config.toml"
	ServiceName       = "did-service"
	ServiceVersion    = "0.1.0"
	ConfigExtension   = ".toml"

	DefaultEBSIRegistryURL   = "https://api-pilot.ebsi.eu/did-registry/v2/identifiers"
	DefaultEBSIResolveTries  = 5
	DefaultEBSIRetryDelay    = time.Second
	DefaultHTTPClientTimeout = 10 * time.Second

	EnvironmentDev  Environment = "dev"
	EnvironmentTest Environment = "test"
	EnvironmentProd Environment = "prod"

	ConfigPath EnvironmentVariable = "CONFIG_PATH"
)

type (
	Environment         string
	EnvironmentVariable string
)

func (e EnvironmentVariable) String() string {
	return string(e)
}

type DIDServerConfig struct {
	conf.Version
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	Environment        Environment   `toml:"env" conf:"default:dev"`
	APIHost            string        `toml:"api_host" conf:"default:0.0.0.0:3000"`
	JagerHost          string        `toml:"jager_host" conf:"default:http://jaeger:14268/api/traces"`
	JagerEnabled       bool          `toml:"jager_enabled" conf:"default:false"`
	ReadTimeout        time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout       time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	LogLocation        string        `toml:"log_location" conf:"default:log"`
	LogLevel           string        `toml:"log_level" conf:"default:debug"`
	EnableAllowAllCORS bool          `toml:"enable_allow_all_cors" conf:"default:false"`
}

// ServicesConfig represents configurable properties for the components of the DID service.
// A single storage provider backs every service.
type ServicesConfig struct {
	StorageProvider string           `toml:"storage"`
	StorageOptions  []storage.Option `toml:"storage_option"`

	// Embed all service-specific configs here. The order matters: from which should be instantiated first, to last
	KeyStoreConfig KeyStoreServiceConfig `toml:"keystore,omitempty"`
	DIDConfig      DIDServiceConfig      `toml:"did,omitempty"`
}

// BaseServiceConfig represents configurable properties for a specific component of the service
// Can be wrapped and extended for any specific service config
type BaseServiceConfig struct {
	Name string `toml:"name"`
}

// ServiceConfig is implemented by every service specific config
type ServiceConfig interface {
	IsEmpty() bool
}

type KeyStoreServiceConfig struct {
	*BaseServiceConfig
	// Service key password. Used by a KDF whose key is used by a symmetric cypher for key encryption.
	// The password is salted before usage.
	ServiceKeyPassword string `toml:"password"`
}

func (k *KeyStoreServiceConfig) IsEmpty() bool {
	if k == nil {
		return true
	}
	return reflect.DeepEqual(k, &KeyStoreServiceConfig{})
}

type DIDServiceConfig struct {
	*BaseServiceConfig
	// Methods that can be used to create and resolve DIDs
	Methods []string   `toml:"methods"`
	EBSI    EBSIConfig `toml:"ebsi"`
	IOTA    IOTAConfig `toml:"iota"`
	// WebUseHTTP resolves did:web documents over plain http, for local development only
	WebUseHTTP bool `toml:"web_use_http"`
	// HTTPTimeout bounds every outbound request made during resolution
	HTTPTimeout time.Duration `toml:"http_timeout"`
}

func (d *DIDServiceConfig) IsEmpty() bool {
	if d == nil {
		return true
	}
	return reflect.DeepEqual(d, &DIDServiceConfig{})
}

// EBSIConfig points did:ebsi resolution at a DID registry.
type EBSIConfig struct {
	RegistryURL     string        `toml:"registry_url"`
	ResolveAttempts int           `toml:"resolve_attempts"`
	RetryDelay      time.Duration `toml:"retry_delay"`
}

// IOTAConfig points did:iota operations at a ledger node exposing the identity API.
type IOTAConfig struct {
	NodeURL string `toml:"node_url"`
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
func LoadConfig(path string) (*DIDServerConfig, error) {
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	var config DIDServerConfig

	// parse and apply defaults
	if err := conf.Parse(os.Args[1:], ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)
			return nil, nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if defaultConfig {
		config.Services = ServicesConfig{
			StorageProvider: string(storage.Bolt),
			KeyStoreConfig: KeyStoreServiceConfig{
				BaseServiceConfig:  &BaseServiceConfig{Name: "keystore"},
				ServiceKeyPassword: "default-password",
			},
			DIDConfig: DIDServiceConfig{
				BaseServiceConfig: &BaseServiceConfig{Name: "did"},
				Methods:           []string{"key", "web", "ebsi"},
			},
		}
	} else if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, errors.Wrapf(err, "could not load config: %s", path)
	}

	applyDIDDefaults(&config.Services.DIDConfig)
	return &config, nil
}

func applyDIDDefaults(cfg *DIDServiceConfig) {
	if cfg.BaseServiceConfig == nil {
		cfg.BaseServiceConfig = &BaseServiceConfig{Name: "did"}
	}
	if cfg.EBSI.RegistryURL == "" {
		cfg.EBSI.RegistryURL = DefaultEBSIRegistryURL
	}
	if cfg.EBSI.ResolveAttempts <= 0 {
		cfg.EBSI.ResolveAttempts = DefaultEBSIResolveTries
	}
	if cfg.EBSI.RetryDelay <= 0 {
		cfg.EBSI.RetryDelay = DefaultEBSIRetryDelay
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPClientTimeout
	}
}
