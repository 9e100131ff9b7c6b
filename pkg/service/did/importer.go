package did

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multibase"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/internal/util"
	"github.com/tbd54566975/did-service/pkg/did"
)

var errPEMNotSupported = errors.New("pem key import is not supported")

// ImportKeys loads or resolves the DID, persisting a newly resolved document, and imports the public key of
// every embedded verification method that is not already in the key store. Each imported key is aliased to
// its verification method id, and the key of the first embedded method is also aliased to the DID.
// Entries that cannot be imported are logged and skipped. It reports whether any key is now known.
func (s *Service) ImportKeys(ctx context.Context, id string) (bool, error) {
	logrus.Debugf("importing keys of DID: %s", util.SanitizeLog(id))

	doc, stored, err := s.LoadOrResolveDID(ctx, id)
	if err != nil {
		return false, err
	}
	if !stored {
		if err = s.storage.StoreDID(ctx, *doc); err != nil {
			return false, errors.Wrapf(err, "storing resolved %s", doc.ID)
		}
	}

	known := false
	for i, method := range doc.EmbeddedVerificationMethods() {
		ok, err := s.importVerificationMethod(ctx, doc.ID, method, i == 0)
		if err != nil {
			logrus.WithError(err).Warnf("could not import key of verification method: %s", method.ID)
			continue
		}
		known = known || ok
	}
	return known, nil
}

func (s *Service) importVerificationMethod(ctx context.Context, id string, method did.VerificationMethod, primary bool) (bool, error) {
	has, err := s.keyStore.HasKey(ctx, method.ID)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}

	materials := method.Materials()
	if len(materials) == 0 {
		return false, errors.New("verification method carries no key material")
	}
	var keyID string
	for _, material := range materials {
		if keyID, err = s.importKeyMaterial(ctx, method.Type, material); err == nil {
			break
		}
		logrus.WithError(err).Debugf("could not import %T of verification method: %s", material, method.ID)
	}
	if err != nil {
		return false, err
	}

	if err = s.keyStore.AddAlias(ctx, keyID, method.ID); err != nil {
		return false, err
	}
	if primary {
		if err = s.keyStore.AddAlias(ctx, keyID, id); err != nil {
			return false, err
		}
	}
	logrus.Debugf("imported key<%s> for verification method: %s", keyID, method.ID)
	return true, nil
}

// importKeyMaterial stores a single representation of a key and returns the new key id.
func (s *Service) importKeyMaterial(ctx context.Context, methodType string, material did.KeyMaterial) (string, error) {
	switch m := material.(type) {
	case did.JWKMaterial:
		return s.keyStore.ImportKey(ctx, m)
	case did.Base58Material:
		if err := requireEd25519Type(methodType); err != nil {
			return "", err
		}
		publicKey, err := base58.Decode(string(m))
		if err != nil {
			return "", errors.Wrap(err, "decoding base58 key material")
		}
		return s.keyStore.ImportPublicKey(ctx, did.Ed25519, publicKey)
	case did.PEMMaterial:
		return "", errPEMNotSupported
	case did.MultibaseMaterial:
		if err := requireEd25519Type(methodType); err != nil {
			return "", err
		}
		publicKey, err := decodeMultibaseEd25519(string(m))
		if err != nil {
			return "", err
		}
		return s.keyStore.ImportPublicKey(ctx, did.Ed25519, publicKey)
	default:
		return "", errors.Errorf("unknown key material type: %T", material)
	}
}

func requireEd25519Type(methodType string) error {
	switch methodType {
	case did.Ed25519VerificationKey2018, did.Ed25519VerificationKey2019, did.Ed25519VerificationKey2020:
		return nil
	default:
		return errors.Errorf("importing %s keys is not yet supported", methodType)
	}
}

// decodeMultibaseEd25519 accepts both multicodec prefixed keys and bare multibase encoded key bytes.
func decodeMultibaseEd25519(material string) ([]byte, error) {
	publicKey, alg, err := did.DecodePublicKey(material)
	if err == nil && alg == did.Ed25519 && len(publicKey) == ed25519.PublicKeySize {
		return publicKey, nil
	}
	_, publicKey, err = multibase.Decode(material)
	if err != nil {
		return nil, errors.Wrap(err, "decoding multibase key material")
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid Ed25519 public key size: %d", len(publicKey))
	}
	return publicKey, nil
}
