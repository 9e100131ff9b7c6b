package did

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

// MethodHandler creates and resolves DIDs of a single method.
type MethodHandler interface {
	// GetMethod returns the did method that this handler is implementing.
	GetMethod() did.Method

	// CreateDID creates and persists a DID whose method is `GetMethod`.
	CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error)

	// ResolveDID resolves the document of a DID whose method is `GetMethod`, ignoring the local store.
	ResolveDID(ctx context.Context, id did.DIDURL) (*did.Document, error)
}

func (s *Service) instantiateHandlerForMethod(method did.Method) (MethodHandler, error) {
	switch method {
	case did.KeyMethod:
		return newKeyHandler(s.storage, s.keyStore)
	case did.WebMethod:
		return newWebHandler(s.storage, s.keyStore, s.HTTPClient, s.config.WebUseHTTP)
	case did.EBSIMethod:
		return newEBSIHandler(s.storage, s.keyStore, s.HTTPClient, s.config.EBSI)
	case did.IOTAMethod:
		return newLedgerHandler(s.storage, s.keyStore, s.ledger)
	default:
		return nil, errors.Wrapf(ErrUnsupportedMethod, "%s", method)
	}
}

// signingKey loads the requested key, or generates one when no key id is given.
func signingKey(ctx context.Context, keyStore *keystore.Service, request CreateDIDRequest) (*keystore.Key, error) {
	if request.KeyID != "" {
		key, err := keyStore.GetKey(ctx, request.KeyID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading key<%s>", request.KeyID)
		}
		if request.KeyAlgorithm != "" && request.KeyAlgorithm != key.Algorithm {
			return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "key<%s> is %s, not %s", key.ID, key.Algorithm, request.KeyAlgorithm)
		}
		return key, nil
	}

	alg := request.KeyAlgorithm
	if alg == "" {
		logrus.Debugf("no key algorithm requested, defaulting to %s", did.Ed25519)
		alg = did.Ed25519
	}
	if !alg.IsSigningAlgorithm() {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s", alg)
	}
	keyID, err := keyStore.GenerateKey(ctx, alg)
	if err != nil {
		return nil, errors.Wrap(err, "generating key")
	}
	return keyStore.GetKey(ctx, keyID)
}

// storeKeyBackedDID builds the document of a DID controlled by key, aliases the key to the DID and to the
// signing verification method, and persists the document.
func storeKeyBackedDID(ctx context.Context, storage *Storage, keyStore *keystore.Service, key *keystore.Key, id string) (*CreateDIDResponse, error) {
	methods, err := did.BuildVerificationMethods(key.Algorithm, key.PublicKeyBytes, id)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "building verification methods: %s", err)
	}
	doc := did.NewDocument(id, *methods)

	for _, alias := range []string{id, methods.SigningMethodID} {
		if err = keyStore.AddAlias(ctx, key.ID, alias); err != nil {
			return nil, errors.Wrapf(err, "aliasing key<%s> to %s", key.ID, alias)
		}
	}
	if err = storage.StoreDID(ctx, doc); err != nil {
		return nil, errors.Wrapf(err, "storing %s", id)
	}
	return &CreateDIDResponse{DID: id, KeyID: key.ID, Document: doc}, nil
}
