package did

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

// LedgerDID is a DID anchored on a ledger together with the verification method that holds the
// key it was created with.
type LedgerDID struct {
	Document             did.Document `json:"document"`
	VerificationMethodID string       `json:"verificationMethodId"`
}

// LedgerClient publishes and reads DIDs of a ledger-anchored method.
type LedgerClient interface {
	// CreateDID publishes a new DID controlled by the given public key.
	CreateDID(ctx context.Context, keyID string, publicKey jwk.Key) (*LedgerDID, error)
	// ResolveDID returns nil when the ledger has no such DID.
	ResolveDID(ctx context.Context, id string) (*LedgerDID, error)
}

// NewHTTPLedgerClient talks to a gateway at nodeURL that publishes with `POST /identities` and reads with
// `GET /identities/{did}`. It is not the native IOTA node API; deployments on a real network pass their own
// LedgerClient with WithLedgerClient.
func NewHTTPLedgerClient(nodeURL string, client *http.Client) (LedgerClient, error) {
	if nodeURL == "" {
		return nil, errors.New("ledger node url cannot be empty")
	}
	if client == nil {
		return nil, errors.New("http client cannot be empty")
	}
	return &httpLedgerClient{nodeURL: strings.TrimSuffix(nodeURL, "/"), client: client}, nil
}

type httpLedgerClient struct {
	nodeURL string
	client  *http.Client
}

type createLedgerDIDRequest struct {
	KeyID        string  `json:"keyId"`
	PublicKeyJWK jwk.Key `json:"publicKeyJwk"`
}

func (c *httpLedgerClient) CreateDID(ctx context.Context, keyID string, publicKey jwk.Key) (*LedgerDID, error) {
	body, err := postJSON(ctx, c.client, c.nodeURL+"/identities", createLedgerDIDRequest{KeyID: keyID, PublicKeyJWK: publicKey})
	if err != nil {
		return nil, errors.Wrap(err, "publishing ledger DID")
	}
	return decodeLedgerDID(body)
}

func (c *httpLedgerClient) ResolveDID(ctx context.Context, id string) (*LedgerDID, error) {
	body, err := get(ctx, c.client, c.nodeURL+"/identities/"+url.PathEscape(id))
	var requestErr *ClientRequestError
	if errors.As(err, &requestErr) && requestErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolving ledger DID: %s", id)
	}
	return decodeLedgerDID(body)
}

func decodeLedgerDID(body []byte) (*LedgerDID, error) {
	var ledgerDID LedgerDID
	if err := json.Unmarshal(body, &ledgerDID); err != nil {
		return nil, errors.Wrapf(ErrDecodeFailure, "ledger response: %s", err)
	}
	if ledgerDID.Document.IsEmpty() {
		return nil, errors.Wrap(ErrDecodeFailure, "ledger response has no document")
	}
	return &ledgerDID, nil
}

func newLedgerHandler(s *Storage, ks *keystore.Service, client LedgerClient) (MethodHandler, error) {
	if s == nil {
		return nil, errors.New("storage cannot be empty")
	}
	if ks == nil {
		return nil, errors.New("keystore cannot be empty")
	}
	if client == nil {
		return nil, errors.New("ledger client cannot be empty")
	}
	return &ledgerHandler{storage: s, keyStore: ks, ledger: client}, nil
}

// ledgerHandler serves did:iota by delegating to the ledger; it only binds the local key and keeps a copy
// of the published document.
type ledgerHandler struct {
	storage  *Storage
	keyStore *keystore.Service
	ledger   LedgerClient
}

var _ MethodHandler = (*ledgerHandler)(nil)

func (h *ledgerHandler) GetMethod() did.Method {
	return did.IOTAMethod
}

func (h *ledgerHandler) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	logrus.Debugf("creating did:iota with key algorithm<%s>", request.KeyAlgorithm)

	if request.KeyAlgorithm != "" && request.KeyAlgorithm != did.Ed25519 {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "did:iota requires %s keys", did.Ed25519)
	}
	key, err := signingKey(ctx, h.keyStore, request)
	if err != nil {
		return nil, err
	}
	if key.Algorithm != did.Ed25519 {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "did:iota requires %s keys", did.Ed25519)
	}
	publicJWK, err := h.keyStore.ToJWK(ctx, key.ID)
	if err != nil {
		return nil, err
	}

	ledgerDID, err := h.ledger.CreateDID(ctx, key.ID, publicJWK)
	if err != nil {
		return nil, err
	}
	doc := ledgerDID.Document
	for _, alias := range []string{doc.ID, ledgerDID.VerificationMethodID} {
		if alias == "" {
			continue
		}
		if err = h.keyStore.AddAlias(ctx, key.ID, alias); err != nil {
			return nil, errors.Wrapf(err, "aliasing key<%s> to %s", key.ID, alias)
		}
	}
	if err = h.storage.StoreDID(ctx, doc); err != nil {
		return nil, errors.Wrapf(err, "storing %s", doc.ID)
	}
	return &CreateDIDResponse{DID: doc.ID, KeyID: key.ID, Document: doc}, nil
}

func (h *ledgerHandler) ResolveDID(ctx context.Context, id did.DIDURL) (*did.Document, error) {
	ledgerDID, err := h.ledger.ResolveDID(ctx, id.DID())
	if err != nil {
		return nil, err
	}
	if ledgerDID == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s is not on the ledger", id.DID())
	}
	return &ledgerDID.Document, nil
}
