package keystore

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/internal/util"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/framework"
	"github.com/tbd54566975/did-service/pkg/storage"
)

// ErrKeyNotFound is returned when neither a key nor an alias matches the requested id.
var ErrKeyNotFound = errors.New("key not found")

// Service stores keys by id. Any number of aliases (DIDs, verification method ids) may point
// at a key; every lookup accepts an id or an alias.
type Service struct {
	storage *Storage
	config  config.KeyStoreServiceConfig
	clock   clock.Clock
}

func (s Service) Type() framework.Type {
	return framework.KeyStore
}

func (s Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.storage == nil {
		ae.AppendString("no storage configured")
	}
	if s.config.ServiceKeyPassword == "" {
		ae.AppendString("no service key password configured")
	}
	if !ae.IsEmpty() {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: fmt.Sprintf("key store service is not ready: %s", ae.Error().Error()),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s Service) Config() config.ServiceConfig {
	return &s.config
}

func NewKeyStoreService(config config.KeyStoreServiceConfig, s storage.ServiceStorage) (*Service, error) {
	return NewKeyStoreServiceWithClock(config, s, clock.New())
}

func NewKeyStoreServiceWithClock(config config.KeyStoreServiceConfig, s storage.ServiceStorage, c clock.Clock) (*Service, error) {
	keyStoreStorage, err := NewKeyStoreStorage(context.Background(), s, config.ServiceKeyPassword)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "instantiating storage for the keystore service")
	}
	service := Service{
		storage: keyStoreStorage,
		config:  config,
		clock:   c,
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// GenerateKey creates and stores a new private key, returning its id.
func (s Service) GenerateKey(ctx context.Context, alg did.KeyAlgorithm) (string, error) {
	logrus.Debugf("generating %s key", alg)

	privateKey, err := generateKey(alg)
	if err != nil {
		return "", sdkutil.LoggingErrorMsg(err, "could not generate key")
	}
	id := uuid.NewString()
	if err = s.StoreKey(ctx, StoreKeyRequest{ID: id, Algorithm: alg, PrivateKey: privateKey}); err != nil {
		return "", err
	}
	return id, nil
}

func (s Service) StoreKey(ctx context.Context, request StoreKeyRequest) error {
	logrus.Debugf("storing key: %s", request.ID)

	if request.ID == "" {
		return sdkutil.LoggingNewError("cannot store key without an id")
	}
	if !request.Algorithm.IsSigningAlgorithm() {
		return sdkutil.LoggingNewErrorf("unsupported key algorithm: %s", request.Algorithm)
	}

	stored := StoredKey{
		ID:         request.ID,
		Controller: request.Controller,
		Algorithm:  request.Algorithm,
		CreatedAt:  s.clock.Now().UTC().Format(time.RFC3339),
	}

	publicKey := request.PublicKey
	if request.PrivateKey != nil {
		privateKey, alg, err := normalizePrivateKey(request.PrivateKey)
		if err != nil {
			return sdkutil.LoggingErrorMsg(err, "could not store private key")
		}
		if alg != request.Algorithm {
			return sdkutil.LoggingNewErrorf("private key is %s, not %s", alg, request.Algorithm)
		}
		privateKeyBytes, err := privateKeyToBytes(privateKey)
		if err != nil {
			return sdkutil.LoggingErrorMsg(err, "could not serialize private key")
		}
		stored.PrivateKeyBase58 = base58.Encode(privateKeyBytes)
		if publicKey, err = publicKeyFromPrivate(privateKey); err != nil {
			return sdkutil.LoggingErrorMsg(err, "could not derive public key")
		}
	}
	if publicKey == nil {
		return sdkutil.LoggingNewError("key requires public or private key material")
	}
	publicKey, alg, err := normalizePublicKey(publicKey)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "could not store public key")
	}
	if alg != request.Algorithm {
		return sdkutil.LoggingNewErrorf("public key is %s, not %s", alg, request.Algorithm)
	}
	publicKeyBytes, err := publicKeyToBytes(publicKey)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "could not serialize public key")
	}
	stored.PublicKeyBase58 = base58.Encode(publicKeyBytes)

	if err = s.storage.StoreKey(ctx, stored); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "storing key: %s", request.ID)
	}
	return nil
}

// ImportPublicKey stores a public-only key from its raw encoding.
func (s Service) ImportPublicKey(ctx context.Context, alg did.KeyAlgorithm, publicKeyBytes []byte) (string, error) {
	publicKey, err := PublicKeyFromBytes(alg, publicKeyBytes)
	if err != nil {
		return "", sdkutil.LoggingErrorMsg(err, "could not import public key")
	}
	id := uuid.NewString()
	if err = s.StoreKey(ctx, StoreKeyRequest{ID: id, Algorithm: alg, PublicKey: publicKey}); err != nil {
		return "", err
	}
	return id, nil
}

// ImportKey stores the key in a JWK, private or public, and returns its new id.
func (s Service) ImportKey(ctx context.Context, jwkJSON []byte) (string, error) {
	publicKey, privateKey, alg, err := parseJWK(jwkJSON)
	if err != nil {
		return "", sdkutil.LoggingErrorMsg(err, "could not import jwk")
	}
	id := uuid.NewString()
	request := StoreKeyRequest{ID: id, Algorithm: alg, PublicKey: publicKey, PrivateKey: privateKey}
	if err = s.StoreKey(ctx, request); err != nil {
		return "", err
	}
	return id, nil
}

// resolveKeyID returns the id of the key with the given id or alias, or empty if there is none.
func (s Service) resolveKeyID(ctx context.Context, idOrAlias string) (string, error) {
	exists, err := s.storage.KeyExists(ctx, idOrAlias)
	if err != nil {
		return "", err
	}
	if exists {
		return idOrAlias, nil
	}
	return s.storage.GetAlias(ctx, idOrAlias)
}

func (s Service) getStoredKey(ctx context.Context, idOrAlias string) (*StoredKey, error) {
	keyID, err := s.resolveKeyID(ctx, idOrAlias)
	if err != nil {
		return nil, err
	}
	if keyID == "" {
		return nil, errors.Wrapf(ErrKeyNotFound, "key<%s>", util.SanitizeLog(idOrAlias))
	}
	stored, err := s.storage.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.Wrapf(ErrKeyNotFound, "key<%s> referenced by alias<%s>", keyID, util.SanitizeLog(idOrAlias))
	}
	return stored, nil
}

func (s Service) GetKey(ctx context.Context, idOrAlias string) (*Key, error) {
	logrus.Debugf("getting key: %s", util.SanitizeLog(idOrAlias))

	stored, err := s.getStoredKey(ctx, idOrAlias)
	if err != nil {
		return nil, err
	}
	publicKeyBytes, err := base58.Decode(stored.PublicKeyBase58)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not decode public key")
	}
	publicKey, err := PublicKeyFromBytes(stored.Algorithm, publicKeyBytes)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not reconstruct public key from storage")
	}
	key := Key{
		ID:             stored.ID,
		Algorithm:      stored.Algorithm,
		Controller:     stored.Controller,
		CreatedAt:      stored.CreatedAt,
		PublicKey:      publicKey,
		PublicKeyBytes: publicKeyBytes,
	}
	if stored.PrivateKeyBase58 != "" {
		privateKeyBytes, err := base58.Decode(stored.PrivateKeyBase58)
		if err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "could not decode private key")
		}
		if key.PrivateKey, err = privateKeyFromBytes(stored.Algorithm, privateKeyBytes); err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "could not reconstruct private key from storage")
		}
	}
	return &key, nil
}

func (s Service) HasKey(ctx context.Context, idOrAlias string) (bool, error) {
	keyID, err := s.resolveKeyID(ctx, idOrAlias)
	if err != nil {
		return false, sdkutil.LoggingErrorMsgf(err, "checking key: %s", util.SanitizeLog(idOrAlias))
	}
	if keyID == "" {
		return false, nil
	}
	return s.storage.KeyExists(ctx, keyID)
}

// AddAlias points alias at the key identified by keyID, which may itself be an alias.
func (s Service) AddAlias(ctx context.Context, keyID, alias string) error {
	logrus.Debugf("adding alias<%s> for key<%s>", alias, keyID)

	if alias == "" {
		return sdkutil.LoggingNewError("alias cannot be empty")
	}
	resolved, err := s.resolveKeyID(ctx, keyID)
	if err != nil {
		return err
	}
	if resolved == "" {
		return errors.Wrapf(ErrKeyNotFound, "cannot alias key<%s>", keyID)
	}
	if resolved == alias {
		return nil
	}
	return s.storage.StoreAlias(ctx, alias, resolved)
}

// DeleteKey removes a key and every alias pointing at it. Deleting an unknown key is a no-op.
func (s Service) DeleteKey(ctx context.Context, idOrAlias string) error {
	logrus.Debugf("deleting key: %s", util.SanitizeLog(idOrAlias))

	keyID, err := s.resolveKeyID(ctx, idOrAlias)
	if err != nil {
		return err
	}
	if keyID == "" {
		logrus.Debugf("no key to delete for: %s", util.SanitizeLog(idOrAlias))
		return nil
	}
	aliases, err := s.storage.GetAliases(ctx, keyID)
	if err != nil {
		return err
	}
	for _, alias := range aliases {
		if err = s.storage.DeleteAlias(ctx, alias); err != nil {
			return err
		}
	}
	return s.storage.DeleteKey(ctx, keyID)
}

func (s Service) GetKeyDetails(ctx context.Context, idOrAlias string) (*KeyDetails, error) {
	key, err := s.GetKey(ctx, idOrAlias)
	if err != nil {
		return nil, err
	}
	publicJWK, err := publicKeyToJWK(key.ID, key.PublicKey)
	if err != nil {
		// secp256k1 jwks are only available when built with jwx_es256k
		logrus.WithError(err).Warnf("could not build jwk for key<%s>", key.ID)
	}
	aliases, err := s.storage.GetAliases(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	sort.Strings(aliases)
	return &KeyDetails{
		ID:            key.ID,
		Algorithm:     key.Algorithm,
		Controller:    key.Controller,
		CreatedAt:     key.CreatedAt,
		Aliases:       aliases,
		HasPrivateKey: key.HasPrivateKey(),
		PublicKeyJWK:  publicJWK,
	}, nil
}

// ToJWK returns the public JWK of the key, with the key id as kid.
func (s Service) ToJWK(ctx context.Context, idOrAlias string) (jwk.Key, error) {
	key, err := s.GetKey(ctx, idOrAlias)
	if err != nil {
		return nil, err
	}
	publicJWK, err := publicKeyToJWK(key.ID, key.PublicKey)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not convert key<%s> to jwk", key.ID)
	}
	return publicJWK, nil
}

func (s Service) ListKeys(ctx context.Context) ([]string, error) {
	ids, err := s.storage.ListKeyIDs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
