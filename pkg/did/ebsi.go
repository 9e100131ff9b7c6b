package did

import (
	"crypto"
	"crypto/rand"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/multiformats/go-multibase"
	"github.com/pkg/errors"
)

// EBSIIdentifierVersion is the leading byte of the decoded did:ebsi method specific identifier.
type EBSIIdentifierVersion byte

const (
	EBSIVersion1 EBSIIdentifierVersion = 0x01
	EBSIVersion2 EBSIIdentifierVersion = 0x02

	ebsiSubjectIDSize = 16
)

// NewEBSIIdentifierV1 generates a legal entity identifier: 0x01 followed by 16 random bytes.
func NewEBSIIdentifierV1() (string, error) {
	subjectID := make([]byte, ebsiSubjectIDSize)
	if _, err := rand.Read(subjectID); err != nil {
		return "", errors.Wrap(err, "generating ebsi subject identifier")
	}
	return encodeEBSIIdentifier(EBSIVersion1, subjectID)
}

// NewEBSIIdentifierV2 generates a natural person identifier: 0x02 followed by the SHA-256 thumbprint
// of the public JWK.
func NewEBSIIdentifierV2(key jwk.Key) (string, error) {
	if key == nil {
		return "", errors.New("key cannot be nil")
	}
	publicKey, err := key.PublicKey()
	if err != nil {
		return "", errors.Wrap(err, "getting public jwk")
	}
	thumbprint, err := publicKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", errors.Wrap(err, "computing jwk thumbprint")
	}
	return encodeEBSIIdentifier(EBSIVersion2, thumbprint)
}

func encodeEBSIIdentifier(version EBSIIdentifierVersion, data []byte) (string, error) {
	identifier := append([]byte{byte(version)}, data...)
	encoded, err := multibase.Encode(multibase.Base58BTC, identifier)
	if err != nil {
		return "", errors.Wrap(err, "multibase encoding ebsi identifier")
	}
	return encoded, nil
}

// GetEBSIIdentifierVersion reads the version byte of a did:ebsi method specific identifier.
func GetEBSIIdentifierVersion(identifier string) (EBSIIdentifierVersion, error) {
	_, data, err := multibase.Decode(identifier)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedIdentifier, "decoding ebsi identifier: %s", err)
	}
	if len(data) == 0 {
		return 0, errors.Wrap(ErrMalformedIdentifier, "empty ebsi identifier")
	}
	switch version := EBSIIdentifierVersion(data[0]); version {
	case EBSIVersion1, EBSIVersion2:
		return version, nil
	default:
		return 0, errors.Wrapf(ErrMalformedIdentifier, "unknown ebsi identifier version<%d>", version)
	}
}
