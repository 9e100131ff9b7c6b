package keystore

import (
	gocrypto "crypto"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/tbd54566975/did-service/pkg/did"
)

type StoreKeyRequest struct {
	ID         string
	Algorithm  did.KeyAlgorithm
	Controller string
	// PrivateKey is optional; keys imported from resolved documents only carry public material.
	PrivateKey gocrypto.PrivateKey
	PublicKey  gocrypto.PublicKey
}

// Key is a stored key rehydrated into its Go crypto types.
type Key struct {
	ID             string
	Algorithm      did.KeyAlgorithm
	Controller     string
	CreatedAt      string
	PublicKey      gocrypto.PublicKey
	PublicKeyBytes []byte
	// PrivateKey is nil for public-only keys
	PrivateKey gocrypto.PrivateKey
}

func (k Key) HasPrivateKey() bool {
	return k.PrivateKey != nil
}

// KeyDetails describes a key without revealing private material.
type KeyDetails struct {
	ID            string
	Algorithm     did.KeyAlgorithm
	Controller    string
	CreatedAt     string
	Aliases       []string
	HasPrivateKey bool
	PublicKeyJWK  jwk.Key
}
