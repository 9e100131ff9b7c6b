package did

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

func newWebHandler(s *Storage, ks *keystore.Service, client *http.Client, useHTTP bool) (MethodHandler, error) {
	if s == nil {
		return nil, errors.New("storage cannot be empty")
	}
	if ks == nil {
		return nil, errors.New("keystore cannot be empty")
	}
	if client == nil {
		return nil, errors.New("http client cannot be empty")
	}
	return &webHandler{storage: s, keyStore: ks, client: client, useHTTP: useHTTP}, nil
}

type webHandler struct {
	storage  *Storage
	keyStore *keystore.Service
	client   *http.Client
	useHTTP  bool
}

var _ MethodHandler = (*webHandler)(nil)

func (h *webHandler) GetMethod() did.Method {
	return did.WebMethod
}

func (h *webHandler) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	logrus.Debugf("creating did:web with key algorithm<%s>", request.KeyAlgorithm)

	var opts CreateWebDIDOptions
	switch o := request.Options.(type) {
	case CreateWebDIDOptions:
		opts = o
	case *CreateWebDIDOptions:
		if o != nil {
			opts = *o
		}
	}
	if strings.TrimSpace(opts.Domain) == "" {
		return nil, errors.Wrap(ErrMissingOption, "did:web requires a domain")
	}

	key, err := signingKey(ctx, h.keyStore, request)
	if err != nil {
		return nil, err
	}
	id := did.DIDURL{Method: did.WebMethod, Identifier: did.EncodeWebIdentifier(opts.Domain, opts.Path)}.DID()
	return storeKeyBackedDID(ctx, h.storage, h.keyStore, key, id)
}

// ResolveDID fetches the document from its well-known location once; failures are not retried.
func (h *webHandler) ResolveDID(ctx context.Context, id did.DIDURL) (*did.Document, error) {
	url := h.documentURL(id)
	logrus.Debugf("resolving %s from %s", id.DID(), url)

	body, err := get(ctx, h.client, url)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", id.DID())
	}
	doc, err := did.DecodeDocument(body)
	if err != nil {
		return nil, errors.Wrapf(ErrDecodeFailure, "%s: %s", url, err)
	}
	return doc, nil
}

func (h *webHandler) documentURL(id did.DIDURL) string {
	url := did.WebPathForDIDWeb(did.SplitWebIdentifier(id.Identifier))
	if h.useHTTP {
		url = "http://" + strings.TrimPrefix(url, "https://")
	}
	return url
}
