// Package encryption encrypts key material at rest with XChaCha20-Poly1305 under a service key
// derived from the configured password.
package encryption

import (
	"context"
	"crypto/rand"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// Argon2SaltSize represents the recommended salt size for argon2, which is 16 bytes
	// https://tools.ietf.org/id/draft-irtf-cfrg-argon2-05.html#rfc.section.3.1
	Argon2SaltSize = 16

	// default parameters from https://pkg.go.dev/golang.org/x/crypto/argon2
	argon2Time   = 1
	argon2Memory = 64 * 1024
	threads      = 4
)

type KeyResolver func(ctx context.Context) ([]byte, error)

// XChaCha20Poly1305Encrypter implements storage.Encrypter and storage.Decrypter. Context data is
// bound to the ciphertext as associated data.
type XChaCha20Poly1305Encrypter struct {
	keyResolver KeyResolver
}

func NewXChaCha20Poly1305EncrypterWithKey(key []byte) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{func(context.Context) ([]byte, error) {
		return key, nil
	}}
}

func NewXChaCha20Poly1305EncrypterWithKeyResolver(resolver KeyResolver) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{resolver}
}

func (k XChaCha20Poly1305Encrypter) Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error) {
	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}

	// generate a random nonce, leaving room for the ciphertext
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "generating nonce for encryption")
	}
	return aead.Seal(nonce, nonce, plaintext, contextData), nil
}

func (k XChaCha20Poly1305Encrypter) Decrypt(ctx context.Context, ciphertext, contextData []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, nil
	}
	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead with provided key")
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short; could not decrypt data")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	decrypted, err := aead.Open(nil, nonce, sealed, contextData)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not decrypt data")
	}
	return decrypted, nil
}

// DeriveServiceKey stretches the service password into a chacha20poly1305 key with Argon2id.
func DeriveServiceKey(password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, threads, chacha20poly1305.KeySize), nil
}

// GenerateSalt generates a random salt value for a given size
func GenerateSalt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid size")
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
