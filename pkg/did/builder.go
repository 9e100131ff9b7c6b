package did

import (
	"crypto/ed25519"
	"crypto/x509"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// VerificationMethodSet is the output of BuildVerificationMethods: the methods themselves and the
// ids the relationships of the document point at.
type VerificationMethodSet struct {
	Methods []VerificationMethod
	// SigningMethodID backs authentication, assertionMethod, capabilityDelegation and capabilityInvocation
	SigningMethodID string
	// KeyAgreementMethodID is empty when the algorithm has no derived key agreement key
	KeyAgreementMethodID string
}

// BuildVerificationMethods creates the verification methods for a public key controlled by the DID.
// Ed25519 keys yield a signing method and an X25519 key agreement method derived from the same point.
func BuildVerificationMethods(alg KeyAlgorithm, publicKey []byte, did string) (*VerificationMethodSet, error) {
	signingFragment, err := EncodePublicKey(publicKey, alg)
	if err != nil {
		return nil, errors.Wrap(err, "encoding signing key")
	}
	signingID := did + fragmentSeparator + signingFragment

	switch alg {
	case Ed25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid Ed25519 public key size: %d", len(publicKey))
		}
		x25519Key, err := Ed25519PublicKeyToX25519(publicKey)
		if err != nil {
			return nil, err
		}
		keyAgreementFragment, err := EncodePublicKey(x25519Key, X25519)
		if err != nil {
			return nil, errors.Wrap(err, "encoding key agreement key")
		}
		keyAgreementID := did + fragmentSeparator + keyAgreementFragment
		return &VerificationMethodSet{
			Methods: []VerificationMethod{
				{
					ID:         signingID,
					Type:       Ed25519VerificationKey2019,
					Controller: did,
					Material:   Base58Material(base58.Encode(publicKey)),
				},
				{
					ID:         keyAgreementID,
					Type:       X25519KeyAgreementKey2019,
					Controller: did,
					Material:   Base58Material(base58.Encode(x25519Key)),
				},
			},
			SigningMethodID:      signingID,
			KeyAgreementMethodID: keyAgreementID,
		}, nil
	case RSA, Secp256k1:
		methodType := RSAVerificationKey2018
		if alg == Secp256k1 {
			methodType = EcdsaSecp256k1VerificationKey2019
			if _, err := secp256k1.ParsePubKey(publicKey); err != nil {
				return nil, errors.Wrap(err, "invalid secp256k1 public key")
			}
		} else if _, err := x509.ParsePKCS1PublicKey(publicKey); err != nil {
			return nil, errors.Wrap(err, "invalid RSA public key")
		}
		return &VerificationMethodSet{
			Methods: []VerificationMethod{{
				ID:         signingID,
				Type:       methodType,
				Controller: did,
				Material:   Base58Material(base58.Encode(publicKey)),
			}},
			SigningMethodID: signingID,
		}, nil
	default:
		return nil, errors.Errorf("cannot build verification methods for key algorithm<%s>", alg)
	}
}

// NewDocument assembles a document for the DID whose relationships reference the given methods.
func NewDocument(did string, set VerificationMethodSet) Document {
	signing := []VerificationRelationship{NewReference(set.SigningMethodID)}
	doc := Document{
		Context:              KnownDIDContext,
		ID:                   did,
		VerificationMethod:   set.Methods,
		Authentication:       signing,
		AssertionMethod:      signing,
		CapabilityDelegation: signing,
		CapabilityInvocation: signing,
	}
	if set.KeyAgreementMethodID != "" {
		doc.KeyAgreement = []VerificationRelationship{NewReference(set.KeyAgreementMethodID)}
	}
	return doc
}

// Ed25519PublicKeyToX25519 maps an Ed25519 public key to the Montgomery form of the same point.
func Ed25519PublicKeyToX25519(publicKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Ed25519 public key")
	}
	return point.BytesMontgomery(), nil
}
