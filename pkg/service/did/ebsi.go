package did

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

func newEBSIHandler(s *Storage, ks *keystore.Service, client *http.Client, cfg config.EBSIConfig) (MethodHandler, error) {
	if s == nil {
		return nil, errors.New("storage cannot be empty")
	}
	if ks == nil {
		return nil, errors.New("keystore cannot be empty")
	}
	if client == nil {
		return nil, errors.New("http client cannot be empty")
	}
	if cfg.RegistryURL == "" {
		return nil, errors.New("ebsi registry url cannot be empty")
	}
	if cfg.ResolveAttempts < 1 {
		return nil, errors.Errorf("ebsi resolve attempts must be positive, got %d", cfg.ResolveAttempts)
	}
	return &ebsiHandler{
		storage:     s,
		keyStore:    ks,
		client:      client,
		registryURL: strings.TrimSuffix(cfg.RegistryURL, "/"),
		attempts:    cfg.ResolveAttempts,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

type ebsiHandler struct {
	storage     *Storage
	keyStore    *keystore.Service
	client      *http.Client
	registryURL string
	attempts    int
	retryDelay  time.Duration
}

var _ MethodHandler = (*ebsiHandler)(nil)

func (h *ebsiHandler) GetMethod() did.Method {
	return did.EBSIMethod
}

func (h *ebsiHandler) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	logrus.Debugf("creating did:ebsi with key algorithm<%s>", request.KeyAlgorithm)

	var opts CreateEBSIDIDOptions
	switch o := request.Options.(type) {
	case CreateEBSIDIDOptions:
		opts = o
	case *CreateEBSIDIDOptions:
		if o != nil {
			opts = *o
		}
	}

	key, err := signingKey(ctx, h.keyStore, request)
	if err != nil {
		return nil, err
	}

	var identifier string
	switch ebsiVersionFor(opts.Version) {
	case did.EBSIVersion2:
		publicJWK, err := h.keyStore.ToJWK(ctx, key.ID)
		if err != nil {
			return nil, errors.Wrap(err, "getting jwk for ebsi identifier")
		}
		identifier, err = did.NewEBSIIdentifierV2(publicJWK)
		if err != nil {
			return nil, err
		}
	default:
		if identifier, err = did.NewEBSIIdentifierV1(); err != nil {
			return nil, err
		}
	}

	id := did.DIDURL{Method: did.EBSIMethod, Identifier: identifier}.DID()
	return storeKeyBackedDID(ctx, h.storage, h.keyStore, key, id)
}

// ebsiVersionFor maps the requested version onto an identifier scheme. Any version other than 2
// yields a random v1 identifier.
func ebsiVersionFor(version int) did.EBSIIdentifierVersion {
	switch version {
	case int(did.EBSIVersion2):
		return did.EBSIVersion2
	case 0, int(did.EBSIVersion1):
		return did.EBSIVersion1
	default:
		logrus.Warnf("unknown ebsi identifier version<%d>, using version 1", version)
		return did.EBSIVersion1
	}
}

// ResolveDID fetches the document from the registry. Failed requests are retried with a fixed delay until
// the attempt budget is spent, after which the last error is returned.
func (h *ebsiHandler) ResolveDID(ctx context.Context, id did.DIDURL) (*did.Document, error) {
	url := h.registryURL + "/" + id.DID()

	attempt := 0
	var body []byte
	operation := func() error {
		attempt++
		var err error
		body, err = get(ctx, h.client, url)
		return err
	}
	notify := func(err error, next time.Duration) {
		logrus.WithError(err).Warnf("resolving %s failed on attempt %d/%d, retrying in %s", id.DID(), attempt, h.attempts, next)
	}

	// a freshly anchored DID can answer 404 for a while, so not found is retried like any other failure
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(h.retryDelay), uint64(h.attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var requestErr *ClientRequestError
		if errors.As(err, &requestErr) && requestErr.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrNotFound, "%s is not anchored in the registry after %d attempt(s)", id.DID(), attempt)
		}
		return nil, errors.Wrapf(err, "resolving %s after %d attempt(s)", id.DID(), attempt)
	}

	doc, err := did.DecodeDocument(body)
	if err != nil {
		return nil, errors.Wrapf(ErrDecodeFailure, "%s: %s", url, err)
	}
	return doc, nil
}
