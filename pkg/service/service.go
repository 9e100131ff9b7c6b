package service

import (
	"fmt"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/pkg/service/did"
	"github.com/tbd54566975/did-service/pkg/service/framework"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
	"github.com/tbd54566975/did-service/pkg/storage"
)

// DIDService represents all services and their dependencies independent of transport
type DIDService struct {
	KeyStore *keystore.Service
	DID      *did.Service

	storage storage.ServiceStorage
}

// InstantiateDIDService creates a new instance of the DID service which instantiates all services and their
// dependencies independent of transport.
func InstantiateDIDService(config config.ServicesConfig) (*DIDService, error) {
	if err := validateServiceConfig(config); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate DID Service, invalid config")
	}
	service, err := instantiateServices(config)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not instantiate the did service")
	}
	return service, nil
}

func validateServiceConfig(config config.ServicesConfig) error {
	if !storage.IsStorageAvailable(storage.Type(config.StorageProvider)) {
		return fmt.Errorf("%s storage provider configured, but not available", config.StorageProvider)
	}
	if config.KeyStoreConfig.IsEmpty() {
		return fmt.Errorf("%s no config provided", framework.KeyStore)
	}
	if config.DIDConfig.IsEmpty() {
		return fmt.Errorf("%s no config provided", framework.DID)
	}
	return nil
}

// instantiateServices begins all instantiates and their dependencies
func instantiateServices(config config.ServicesConfig) (*DIDService, error) {
	storageProvider, err := storage.NewStorage(storage.Type(config.StorageProvider), config.StorageOptions...)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not instantiate storage provider: %s", config.StorageProvider)
	}

	keyStoreService, err := keystore.NewKeyStoreService(config.KeyStoreConfig, storageProvider)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate KeyStore service")
	}

	didService, err := did.NewDIDService(config.DIDConfig, storageProvider, keyStoreService)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate the DID service")
	}

	return &DIDService{
		KeyStore: keyStoreService,
		DID:      didService,
		storage:  storageProvider,
	}, nil
}

// GetServices returns all services
func (s *DIDService) GetServices() []framework.Service {
	return []framework.Service{
		s.KeyStore,
		s.DID,
	}
}

// Close releases the storage shared by every service.
func (s *DIDService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
