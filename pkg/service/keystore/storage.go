package keystore

import (
	"context"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/did-service/internal/encryption"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/storage"
)

// StoredKey represents a common data model to store data on all key types
type StoredKey struct {
	ID               string           `json:"id"`
	Controller       string           `json:"controller,omitempty"`
	Algorithm        did.KeyAlgorithm `json:"algorithm"`
	PublicKeyBase58  string           `json:"publicKey"`
	PrivateKeyBase58 string           `json:"privateKey,omitempty"`
	CreatedAt        string           `json:"createdAt"`
}

const (
	namespace        = "keystore"
	aliasNamespace   = "keystore-alias"
	serviceNamespace = "keystore-service"
	serviceKeySalt   = "service-key-salt"
)

// Storage keeps keys encrypted under the service key, and the alias index in the clear.
type Storage struct {
	db        storage.ServiceStorage
	encrypted storage.ServiceStorage
}

// NewKeyStoreStorage derives the service key from the password and a salt persisted on first use.
func NewKeyStoreStorage(ctx context.Context, db storage.ServiceStorage, password string) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	salt, err := getOrCreateSalt(ctx, db)
	if err != nil {
		return nil, err
	}
	serviceKey, err := encryption.DeriveServiceKey(password, salt)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "deriving service key")
	}
	encrypter := encryption.NewXChaCha20Poly1305EncrypterWithKey(serviceKey)
	return &Storage{
		db:        db,
		encrypted: storage.NewEncryptedWrapper(db, encrypter, encrypter),
	}, nil
}

func getOrCreateSalt(ctx context.Context, db storage.ServiceStorage) ([]byte, error) {
	salt, err := db.Read(ctx, serviceNamespace, serviceKeySalt)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "reading service key salt")
	}
	if len(salt) != 0 {
		return salt, nil
	}
	if salt, err = encryption.GenerateSalt(encryption.Argon2SaltSize); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "generating service key salt")
	}
	if err = db.Write(ctx, serviceNamespace, serviceKeySalt, salt); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "storing service key salt")
	}
	return salt, nil
}

func (kss *Storage) StoreKey(ctx context.Context, key StoredKey) error {
	id := key.ID
	if id == "" {
		return sdkutil.LoggingNewError("could not store key without an ID")
	}
	keyBytes, err := json.Marshal(key)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store key: %s", id)
	}
	return kss.encrypted.Write(ctx, namespace, id, keyBytes)
}

// GetKey returns nil when there is no key with the id.
func (kss *Storage) GetKey(ctx context.Context, id string) (*StoredKey, error) {
	storedKeyBytes, err := kss.encrypted.Read(ctx, namespace, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get key: %s", id)
	}
	if len(storedKeyBytes) == 0 {
		return nil, nil
	}
	var stored StoredKey
	if err = json.Unmarshal(storedKeyBytes, &stored); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored key: %s", id)
	}
	return &stored, nil
}

func (kss *Storage) KeyExists(ctx context.Context, id string) (bool, error) {
	return kss.db.Exists(ctx, namespace, id)
}

func (kss *Storage) DeleteKey(ctx context.Context, id string) error {
	if err := kss.db.Delete(ctx, namespace, id); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete key: %s", id)
	}
	return nil
}

func (kss *Storage) StoreAlias(ctx context.Context, alias, keyID string) error {
	if err := kss.db.Write(ctx, aliasNamespace, alias, []byte(keyID)); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store alias<%s> for key<%s>", alias, keyID)
	}
	return nil
}

// GetAlias returns the key id an alias points to, or empty if the alias is unknown.
func (kss *Storage) GetAlias(ctx context.Context, alias string) (string, error) {
	keyID, err := kss.db.Read(ctx, aliasNamespace, alias)
	if err != nil {
		return "", sdkutil.LoggingErrorMsgf(err, "could not read alias: %s", alias)
	}
	return string(keyID), nil
}

// GetAliases returns every alias pointing at the key.
func (kss *Storage) GetAliases(ctx context.Context, keyID string) ([]string, error) {
	all, err := kss.db.ReadAll(ctx, aliasNamespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not read aliases")
	}
	var aliases []string
	for alias, target := range all {
		if string(target) == keyID {
			aliases = append(aliases, alias)
		}
	}
	return aliases, nil
}

func (kss *Storage) DeleteAlias(ctx context.Context, alias string) error {
	if err := kss.db.Delete(ctx, aliasNamespace, alias); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete alias: %s", alias)
	}
	return nil
}

func (kss *Storage) ListKeyIDs(ctx context.Context) ([]string, error) {
	ids, err := kss.db.ReadAllKeys(ctx, namespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not list keys")
	}
	return ids, nil
}
