package did

import (
	"context"
	"fmt"
	"net/http"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/internal/util"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/framework"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
	"github.com/tbd54566975/did-service/pkg/storage"
)

type Service struct {
	config  config.DIDServiceConfig
	storage *Storage

	// supported DID methods
	handlers map[did.Method]MethodHandler

	// HTTPClient is used by every method that resolves over the network
	HTTPClient *http.Client

	// external dependencies
	keyStore *keystore.Service
	ledger   LedgerClient
}

func (s *Service) Type() framework.Type {
	return framework.DID
}

// Status is a self-reporting status for the DID service.
func (s *Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.storage == nil {
		ae.AppendString("no storage configured")
	}
	if len(s.handlers) == 0 {
		ae.AppendString("no did handlers configured")
	}
	if s.keyStore == nil {
		ae.AppendString("no key store service configured")
	}
	if !ae.IsEmpty() {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: fmt.Sprintf("did service is not ready: %s", ae.Error().Error()),
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.ServiceConfig {
	return &s.config
}

// Option customizes the collaborators of the DID service.
type Option func(*Service)

// WithLedgerClient replaces the HTTP ledger client built from the iota config.
func WithLedgerClient(client LedgerClient) Option {
	return func(s *Service) {
		s.ledger = client
	}
}

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.HTTPClient = client
	}
}

func NewDIDService(config config.DIDServiceConfig, s storage.ServiceStorage, keyStore *keystore.Service, opts ...Option) (*Service, error) {
	didStorage, err := NewDIDStorage(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not instantiate DID storage for the DID service")
	}

	service := Service{
		config:     config,
		storage:    didStorage,
		handlers:   make(map[did.Method]MethodHandler),
		HTTPClient: newHTTPClient(config.HTTPTimeout),
		keyStore:   keyStore,
	}
	for _, opt := range opts {
		opt(&service)
	}
	if service.ledger == nil && config.IOTA.NodeURL != "" {
		if service.ledger, err = NewHTTPLedgerClient(config.IOTA.NodeURL, service.HTTPClient); err != nil {
			return nil, errors.Wrap(err, "could not instantiate ledger client")
		}
	}

	// instantiate all handlers for DID methods
	for _, m := range config.Methods {
		method := did.ParseMethod(m)
		handler, err := service.instantiateHandlerForMethod(method)
		if err != nil {
			return nil, errors.Wrapf(err, "could not instantiate handler for method<%s>", method)
		}
		service.handlers[method] = handler
	}

	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// GetSupportedMethods returns the configured methods in their canonical order.
func (s *Service) GetSupportedMethods() GetSupportedMethodsResponse {
	methods := make([]did.Method, 0, len(s.handlers))
	for _, method := range did.SupportedMethods() {
		if _, ok := s.handlers[method]; ok {
			methods = append(methods, method)
		}
	}
	return GetSupportedMethodsResponse{Methods: methods}
}

func (s *Service) getHandler(method did.Method) (MethodHandler, error) {
	handler, ok := s.handlers[method]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedMethod, "%s", method)
	}
	return handler, nil
}

// handlerFor parses the DID and picks its handler without touching the store or the network.
func (s *Service) handlerFor(id string) (*did.DIDURL, MethodHandler, error) {
	didURL, err := did.ParseDIDURL(id)
	if err != nil {
		return nil, nil, err
	}
	handler, err := s.getHandler(didURL.Method)
	if err != nil {
		return nil, nil, err
	}
	return didURL, handler, nil
}

func (s *Service) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	handler, err := s.getHandler(did.ParseMethod(request.Method.String()))
	if err != nil {
		return nil, err
	}
	if request.Options != nil && request.Options.Method() != handler.GetMethod() {
		return nil, errors.Errorf("%s options cannot be used to create a did:%s", request.Options.Method(), handler.GetMethod())
	}
	return handler.CreateDID(ctx, request)
}

// ResolveDID resolves a fresh copy of the document, never consulting the store.
func (s *Service) ResolveDID(ctx context.Context, id string) (*did.Document, error) {
	logrus.Debugf("resolving DID: %s", util.SanitizeLog(id))

	didURL, handler, err := s.handlerFor(id)
	if err != nil {
		return nil, err
	}
	return handler.ResolveDID(ctx, *didURL)
}

// GetDID returns a stored document.
func (s *Service) GetDID(ctx context.Context, id string) (*did.Document, error) {
	didURL, _, err := s.handlerFor(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.storage.GetDID(ctx, didURL.DID())
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", didURL.DID())
	}
	return doc, nil
}

// LoadOrResolveDID returns the stored document if there is one, resolving it otherwise. The boolean
// reports whether the document came from the store.
func (s *Service) LoadOrResolveDID(ctx context.Context, id string) (*did.Document, bool, error) {
	didURL, handler, err := s.handlerFor(id)
	if err != nil {
		return nil, false, err
	}
	doc, err := s.storage.GetDID(ctx, didURL.DID())
	if err != nil {
		return nil, false, err
	}
	if doc != nil {
		return doc, true, nil
	}
	doc, err = handler.ResolveDID(ctx, *didURL)
	if err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

func (s *Service) ListDIDs(ctx context.Context) ([]did.Document, error) {
	resp, err := s.ListDIDsPage(ctx, ListDIDsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.DIDs, nil
}

// ListDIDsPage lists the stored DIDs matching the request filter, one page at a time.
func (s *Service) ListDIDsPage(ctx context.Context, request ListDIDsRequest) (*ListDIDsResponse, error) {
	include, err := storage.Evaluator(request.Filter)
	if err != nil {
		return nil, errors.Wrap(err, "compiling DID filter")
	}
	token, size := request.Page.ToStorageArgs()
	docs, nextPageToken, err := s.storage.ListDIDs(ctx, include, token, size)
	if err != nil {
		return nil, errors.Wrap(err, "listing DIDs")
	}
	return &ListDIDsResponse{DIDs: docs, NextPageToken: nextPageToken}, nil
}

// UpdateEBSIDID overwrites the stored document of a did:ebsi DID.
func (s *Service) UpdateEBSIDID(ctx context.Context, doc did.Document) error {
	didURL, _, err := s.handlerFor(doc.ID)
	if err != nil {
		return err
	}
	if didURL.Method != did.EBSIMethod {
		return errors.Wrapf(ErrUnsupportedMethod, "only did:ebsi documents can be updated, got did:%s", didURL.Method)
	}
	return s.storage.StoreDID(ctx, doc)
}

// DeleteDID removes the stored document, then every key backing one of its embedded verification methods.
// Deleting a DID that is not stored is a no-op.
func (s *Service) DeleteDID(ctx context.Context, id string) error {
	logrus.Debugf("deleting DID: %s", util.SanitizeLog(id))

	didURL, _, err := s.handlerFor(id)
	if err != nil {
		return err
	}
	doc, err := s.storage.GetDID(ctx, didURL.DID())
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err = s.storage.DeleteDID(ctx, doc.ID); err != nil {
		return err
	}

	ae := sdkutil.NewAppendError()
	for _, method := range doc.EmbeddedVerificationMethods() {
		if err = s.keyStore.DeleteKey(ctx, method.ID); err != nil {
			ae.AppendString(fmt.Sprintf("deleting key for %s: %s", method.ID, err))
		}
	}
	if !ae.IsEmpty() {
		return sdkutil.LoggingErrorMsgf(ae.Error(), "deleted %s but not all of its keys", doc.ID)
	}
	return nil
}
