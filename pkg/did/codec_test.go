package did

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	knownDIDKey            = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	knownKeyIdentifier     = "z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	knownAgreementFragment = "z6LSbysY2xFMRpGMhb7tFTLMpeuPRaqaWM1yECx2AtzE3KCc"
	knownPubKeyBase58      = "B12NYF8RrR3h41TDCTJojY59usg3mbtbjnFs7Eud1Y6u"
	knownAgreementBase58   = "JhNWeSVLMYccCk7iopQW4guaSJTojqpMEELgSLhKwRr"
)

func TestEncodePublicKey(t *testing.T) {
	t.Run("known ed25519 key", func(tt *testing.T) {
		pubKey, err := base58.Decode(knownPubKeyBase58)
		require.NoError(tt, err)

		identifier, err := EncodePublicKey(pubKey, Ed25519)
		assert.NoError(tt, err)
		assert.Equal(tt, knownKeyIdentifier, identifier)
	})

	t.Run("round trip for every algorithm", func(tt *testing.T) {
		edKey, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(tt, err)
		secpKey := make([]byte, 33)
		_, err = rand.Read(secpKey)
		require.NoError(tt, err)
		rsaKey := make([]byte, 270)
		_, err = rand.Read(rsaKey)
		require.NoError(tt, err)

		for alg, key := range map[KeyAlgorithm][]byte{Ed25519: edKey, Secp256k1: secpKey, RSA: rsaKey, X25519: edKey} {
			identifier, err := EncodePublicKey(key, alg)
			require.NoError(tt, err)
			assert.Equal(tt, byte('z'), identifier[0])

			decoded, decodedAlg, err := DecodePublicKey(identifier)
			require.NoError(tt, err)
			assert.Equal(tt, alg, decodedAlg)
			assert.Equal(tt, key, decoded)
		}
	})

	t.Run("unknown algorithm", func(tt *testing.T) {
		_, err := EncodePublicKey([]byte{1, 2, 3}, KeyAlgorithm("P-256"))
		assert.Error(tt, err)
	})

	t.Run("empty key", func(tt *testing.T) {
		_, err := EncodePublicKey(nil, Ed25519)
		assert.Error(tt, err)
	})
}

func TestDecodePublicKey(t *testing.T) {
	t.Run("known ed25519 key", func(tt *testing.T) {
		key, alg, err := DecodePublicKey(knownKeyIdentifier)
		assert.NoError(tt, err)
		assert.Equal(tt, Ed25519, alg)
		assert.Equal(tt, knownPubKeyBase58, base58.Encode(key))
	})

	tests := []struct {
		name       string
		identifier string
	}{
		{name: "empty", identifier: ""},
		{name: "not multibase", identifier: "!notmultibase"},
		{name: "wrong base", identifier: "f0123456789"},
		{name: "unknown multicodec prefix", identifier: "z" + base58.Encode([]byte{0x12, 0x01, 0x02})},
		{name: "prefix without key", identifier: "z" + base58.Encode([]byte{0xed, 0x01})},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			_, _, err := DecodePublicKey(test.identifier)
			assert.Error(tt, err)
			assert.True(tt, errors.Is(err, ErrMalformedIdentifier))
		})
	}
}
