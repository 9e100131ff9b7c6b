package did

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVerificationMethods(t *testing.T) {
	t.Run("known ed25519 key derives known key agreement key", func(tt *testing.T) {
		pubKey, err := base58.Decode(knownPubKeyBase58)
		require.NoError(tt, err)

		set, err := BuildVerificationMethods(Ed25519, pubKey, knownDIDKey)
		require.NoError(tt, err)
		require.Len(tt, set.Methods, 2)

		assert.Equal(tt, knownDIDKey+"#"+knownKeyIdentifier, set.SigningMethodID)
		assert.Equal(tt, knownDIDKey+"#"+knownAgreementFragment, set.KeyAgreementMethodID)

		signing, agreement := set.Methods[0], set.Methods[1]
		assert.Equal(tt, Ed25519VerificationKey2019, signing.Type)
		assert.Equal(tt, knownDIDKey, signing.Controller)
		assert.Equal(tt, Base58Material(knownPubKeyBase58), signing.Material)
		assert.Equal(tt, X25519KeyAgreementKey2019, agreement.Type)
		assert.Equal(tt, Base58Material(knownAgreementBase58), agreement.Material)
	})

	t.Run("ed25519 document has one signing and one key agreement method", func(tt *testing.T) {
		pubKey, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(tt, err)
		identifier, err := EncodePublicKey(pubKey, Ed25519)
		require.NoError(tt, err)
		id := "did:key:" + identifier

		set, err := BuildVerificationMethods(Ed25519, pubKey, id)
		require.NoError(tt, err)
		doc := NewDocument(id, *set)

		assertNoDanglingReferences(tt, doc)
		require.Len(tt, doc.KeyAgreement, 1)
		assert.Equal(tt, set.KeyAgreementMethodID, doc.KeyAgreement[0].ID())
		for _, rel := range [][]VerificationRelationship{doc.Authentication, doc.AssertionMethod, doc.CapabilityDelegation, doc.CapabilityInvocation} {
			require.Len(tt, rel, 1)
			assert.Equal(tt, set.SigningMethodID, rel[0].ID())
		}
	})

	t.Run("secp256k1 and rsa have no key agreement", func(tt *testing.T) {
		secpKey, err := secp256k1.GeneratePrivateKey()
		require.NoError(tt, err)
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(tt, err)
		keys := map[KeyAlgorithm][]byte{
			Secp256k1: secpKey.PubKey().SerializeCompressed(),
			RSA:       x509.MarshalPKCS1PublicKey(&rsaKey.PublicKey),
		}

		for alg, methodType := range map[KeyAlgorithm]string{Secp256k1: EcdsaSecp256k1VerificationKey2019, RSA: RSAVerificationKey2018} {
			set, err := BuildVerificationMethods(alg, keys[alg], "did:web:example.com")
			require.NoError(tt, err)
			require.Len(tt, set.Methods, 1)
			assert.Equal(tt, methodType, set.Methods[0].Type)
			assert.Empty(tt, set.KeyAgreementMethodID)
			assert.True(tt, strings.HasPrefix(set.SigningMethodID, "did:web:example.com#z"))

			doc := NewDocument("did:web:example.com", *set)
			assert.Empty(tt, doc.KeyAgreement)
			assertNoDanglingReferences(tt, doc)
		}
	})

	t.Run("bad ed25519 key", func(tt *testing.T) {
		_, err := BuildVerificationMethods(Ed25519, []byte{1, 2, 3}, knownDIDKey)
		assert.Error(tt, err)
	})

	t.Run("garbage secp256k1 and rsa keys", func(tt *testing.T) {
		garbage := make([]byte, 33)
		_, err := rand.Read(garbage)
		require.NoError(tt, err)
		garbage[0] = 0x07

		for _, alg := range []KeyAlgorithm{Secp256k1, RSA} {
			_, err := BuildVerificationMethods(alg, garbage, "did:web:example.com")
			assert.Error(tt, err, alg.String())
		}
	})

	t.Run("unsupported algorithm", func(tt *testing.T) {
		_, err := BuildVerificationMethods(X25519, make([]byte, 32), knownDIDKey)
		assert.Error(tt, err)
	})
}

func assertNoDanglingReferences(t *testing.T, doc Document) {
	ids := make(map[string]bool)
	for _, vm := range doc.VerificationMethod {
		assert.True(t, strings.HasPrefix(vm.ID, doc.ID+"#"))
		ids[vm.ID] = true
	}
	for _, rel := range [][]VerificationRelationship{doc.Authentication, doc.AssertionMethod, doc.KeyAgreement, doc.CapabilityDelegation, doc.CapabilityInvocation} {
		for _, r := range rel {
			if r.IsReference() {
				assert.True(t, ids[r.Reference], "dangling reference %s", r.Reference)
			}
		}
	}
}
