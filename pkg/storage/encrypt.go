package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Encrypter encrypts data at rest. The context data is authenticated but not encrypted.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error)
}

// Decrypter reverses an Encrypter.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext, contextData []byte) ([]byte, error)
}

// EncryptedWrapper encrypts every value before it reaches the wrapped storage. Keys and namespaces
// are stored in the clear.
type EncryptedWrapper struct {
	s         ServiceStorage
	encrypter Encrypter
	decrypter Decrypter
}

func NewEncryptedWrapper(s ServiceStorage, encrypter Encrypter, decrypter Decrypter) *EncryptedWrapper {
	return &EncryptedWrapper{
		s:         s,
		encrypter: encrypter,
		decrypter: decrypter,
	}
}

func (e EncryptedWrapper) Init(opts ...Option) error {
	return e.s.Init(opts...)
}

func (e EncryptedWrapper) Type() Type {
	return e.s.Type()
}

func (e EncryptedWrapper) URI() string {
	return e.s.URI()
}

func (e EncryptedWrapper) IsOpen() bool {
	return e.s.IsOpen()
}

func (e EncryptedWrapper) Close() error {
	return e.s.Close()
}

func (e EncryptedWrapper) Write(ctx context.Context, namespace, key string, value []byte) error {
	encryptedData, err := e.encrypter.Encrypt(ctx, value, []byte(key))
	if err != nil {
		return errors.Wrap(err, "encrypting data")
	}
	return e.s.Write(ctx, namespace, key, encryptedData)
}

func (e EncryptedWrapper) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	storedBytes, err := e.s.Read(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if storedBytes == nil {
		return nil, nil
	}
	decryptedData, err := e.decrypter.Decrypt(ctx, storedBytes, []byte(key))
	if err != nil {
		return nil, errors.Wrap(err, "decrypting data")
	}
	return decryptedData, nil
}

func (e EncryptedWrapper) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return e.s.Exists(ctx, namespace, key)
}

func (e EncryptedWrapper) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	encryptedKeyedBytes, err := e.s.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return e.decryptMap(ctx, encryptedKeyedBytes)
}

func (e EncryptedWrapper) ReadPrefix(ctx context.Context, namespace, prefix string) (map[string][]byte, error) {
	encryptedMap, err := e.s.ReadPrefix(ctx, namespace, prefix)
	if err != nil {
		return nil, err
	}
	return e.decryptMap(ctx, encryptedMap)
}

func (e EncryptedWrapper) decryptMap(ctx context.Context, encryptedKeyedBytes map[string][]byte) (map[string][]byte, error) {
	decryptedValues := make(map[string][]byte, len(encryptedKeyedBytes))
	for key, encryptedBytes := range encryptedKeyedBytes {
		decryptedData, err := e.decrypter.Decrypt(ctx, encryptedBytes, []byte(key))
		if err != nil {
			return nil, errors.Wrapf(err, "decrypting value of key<%s>", key)
		}
		decryptedValues[key] = decryptedData
	}
	return decryptedValues, nil
}

func (e EncryptedWrapper) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	return e.s.ReadAllKeys(ctx, namespace)
}

func (e EncryptedWrapper) Delete(ctx context.Context, namespace, key string) error {
	return e.s.Delete(ctx, namespace, key)
}

func (e EncryptedWrapper) DeleteNamespace(ctx context.Context, namespace string) error {
	return e.s.DeleteNamespace(ctx, namespace)
}

var _ ServiceStorage = (*EncryptedWrapper)(nil)
