package did

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

func newKeyHandler(s *Storage, ks *keystore.Service) (MethodHandler, error) {
	if s == nil {
		return nil, errors.New("storage cannot be empty")
	}
	if ks == nil {
		return nil, errors.New("keystore cannot be empty")
	}
	return &keyHandler{storage: s, keyStore: ks}, nil
}

type keyHandler struct {
	storage  *Storage
	keyStore *keystore.Service
}

var _ MethodHandler = (*keyHandler)(nil)

func (h *keyHandler) GetMethod() did.Method {
	return did.KeyMethod
}

func (h *keyHandler) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	logrus.Debugf("creating did:key with key algorithm<%s>", request.KeyAlgorithm)

	key, err := signingKey(ctx, h.keyStore, request)
	if err != nil {
		return nil, err
	}
	identifier, err := did.EncodePublicKey(key.PublicKeyBytes, key.Algorithm)
	if err != nil {
		return nil, errors.Wrap(err, "encoding did:key identifier")
	}
	id := did.DIDURL{Method: did.KeyMethod, Identifier: identifier}.DID()
	return storeKeyBackedDID(ctx, h.storage, h.keyStore, key, id)
}

// ResolveDID derives the document from the identifier alone.
func (h *keyHandler) ResolveDID(_ context.Context, id did.DIDURL) (*did.Document, error) {
	publicKey, alg, err := did.DecodePublicKey(id.Identifier)
	if err != nil {
		return nil, err
	}
	if !alg.IsSigningAlgorithm() {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "did:key identifiers cannot encode %s keys", alg)
	}
	methods, err := did.BuildVerificationMethods(alg, publicKey, id.DID())
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedIdentifier, "%s: %s", id.DID(), err)
	}
	doc := did.NewDocument(id.DID(), *methods)
	return &doc, nil
}
