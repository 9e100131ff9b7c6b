package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.einride.tech/aip/filtering"

	"github.com/tbd54566975/did-service/internal/util"
	diddoc "github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/server/framework"
	"github.com/tbd54566975/did-service/pkg/server/pagination"
	"github.com/tbd54566975/did-service/pkg/service/did"
	svcframework "github.com/tbd54566975/did-service/pkg/service/framework"
)

const (
	MethodParam = "method"
	IDParam     = "id"
	CachedParam = "cached"
	FilterParam = "filter"

	FilterCharacterLimit = 1024
)

// DIDRouter represents the dependencies required to instantiate a DID-HTTP service
type DIDRouter struct {
	service *did.Service
}

// NewDIDRouter creates an HTTP router for the DID Service
func NewDIDRouter(s svcframework.Service) (*DIDRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	didService, ok := s.(*did.Service)
	if !ok {
		return nil, fmt.Errorf("could not create DID router with service type: %s", s.Type())
	}
	return &DIDRouter{service: didService}, nil
}

type GetDIDMethodsResponse struct {
	DIDMethods []diddoc.Method `json:"methods"`
}

// GetDIDMethods godoc
//
// @Summary     Get DID Methods
// @Description Get the DID methods this service has been configured with
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Success     200 {object} GetDIDMethodsResponse
// @Router      /v1/dids [get]
func (dr DIDRouter) GetDIDMethods(c *gin.Context) {
	methods := dr.service.GetSupportedMethods()
	response := GetDIDMethodsResponse{DIDMethods: methods.Methods}
	framework.Respond(c, response, http.StatusOK)
}

type CreateDIDByMethodRequest struct {
	// Identifies the cryptographic algorithm family to use when generating the key. Defaults to Ed25519.
	// One of the following: "Ed25519", "secp256k1", "RSA".
	KeyAlgorithm diddoc.KeyAlgorithm `json:"keyAlgorithm,omitempty"`

	// Id or alias of a key already in the key store. When set, no key is generated.
	KeyID string `json:"keyId,omitempty"`

	// Options for creating the DID. Implementation dependent on the method.
	Options json.RawMessage `json:"options,omitempty"`
}

type CreateDIDByMethodResponse struct {
	DID      string          `json:"did"`
	KeyID    string          `json:"keyId"`
	Document diddoc.Document `json:"document"`
}

// CreateDIDByMethod godoc
//
// @Summary     Create DID Document
// @Description Creates a fully custodial DID document with the given method. The document is stored internally.
// @Description Method dependent registration (for example, publishing a did:web document) is left up to the
// @Description clients of this API. Generated private keys never leave the service boundary.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       request body     CreateDIDByMethodRequest true "request body"
// @Param       method  path     string                   true "Method"
// @Success     201     {object} CreateDIDByMethodResponse
// @Failure     400     {string} string "Bad request"
// @Failure     500     {string} string "Internal server error"
// @Router      /v1/dids/{method} [put]
func (dr DIDRouter) CreateDIDByMethod(c *gin.Context) {
	method := framework.GetParam(c, MethodParam)
	if method == nil {
		errMsg := "create DID request missing method parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	var request CreateDIDByMethodRequest
	invalidCreateDIDRequest := "invalid create DID request"
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.LoggingRespondErrWithMsg(c, err, invalidCreateDIDRequest, http.StatusBadRequest)
		return
	}

	createDIDRequest, err := toCreateDIDRequest(diddoc.ParseMethod(*method), request)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, invalidCreateDIDRequest, http.StatusBadRequest)
		return
	}

	createDIDResponse, err := dr.service.CreateDID(c, *createDIDRequest)
	if err != nil {
		errMsg := fmt.Sprintf("could not create DID for method<%s>", util.SanitizeLog(*method))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}

	resp := CreateDIDByMethodResponse{
		DID:      createDIDResponse.DID,
		KeyID:    createDIDResponse.KeyID,
		Document: createDIDResponse.Document,
	}
	framework.Respond(c, resp, http.StatusCreated)
}

// toCreateDIDRequest converts CreateDIDByMethodRequest to did.CreateDIDRequest, parsing options according to method
func toCreateDIDRequest(m diddoc.Method, request CreateDIDByMethodRequest) (*did.CreateDIDRequest, error) {
	createRequest := did.CreateDIDRequest{
		Method:       m,
		KeyAlgorithm: request.KeyAlgorithm,
		KeyID:        request.KeyID,
	}

	// check if options are present
	if len(request.Options) == 0 || string(request.Options) == "null" {
		return &createRequest, nil
	}

	switch m {
	case diddoc.WebMethod:
		var options did.CreateWebDIDOptions
		if err := decodeOptions(request.Options, &options); err != nil {
			return nil, errors.Wrap(err, "invalid web options")
		}
		createRequest.Options = options
	case diddoc.EBSIMethod:
		var options did.CreateEBSIDIDOptions
		if err := decodeOptions(request.Options, &options); err != nil {
			return nil, errors.Wrap(err, "invalid ebsi options")
		}
		createRequest.Options = options
	default:
		return nil, fmt.Errorf("options are not supported for method<%s>", util.SanitizeLog(m.String()))
	}
	return &createRequest, nil
}

func decodeOptions(raw json.RawMessage, options any) error {
	if err := json.Unmarshal(raw, options); err != nil {
		return err
	}
	return framework.ValidateRequest(options)
}

type ListDIDsRequest struct {
	// A standard filter expression conforming to https://google.aip.dev/160.
	// For example: `method = "web"`. The identifiers `method` and `id` can be compared with `=`.
	Filter string `json:"filter,omitempty"`
}

func (l ListDIDsRequest) GetFilter() string {
	return l.Filter
}

type ListDIDsResponse struct {
	DIDs []diddoc.Document `json:"dids"`

	// Pagination token to retrieve the next page of results. If the value is "", it means no further results
	// for the request.
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// ListDIDs godoc
//
// @Summary     List DIDs
// @Description Lists the documents of stored DIDs ordered by DID. The optional `filter` query param follows
// @Description the syntax described in https://google.aip.dev/160, for example `method = "key"`.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       filter    query    string false "AIP-160 filter over method and id"
// @Param       pageSize  query    number false "Hint to the server of the maximum elements to return"
// @Param       pageToken query    string false "When specified will retrieve the next page of results"
// @Success     200       {object} ListDIDsResponse
// @Failure     400       {string} string "Bad request"
// @Failure     500       {string} string "Internal server error"
// @Router      /v1/dids/created [get]
func (dr DIDRouter) ListDIDs(c *gin.Context) {
	var pageRequest pagination.PageRequest
	if pagination.ParsePaginationParams(c, &pageRequest) {
		return
	}

	var request ListDIDsRequest
	if filter := framework.GetQueryValue(c, FilterParam); filter != nil {
		request.Filter = *filter
	}

	declarations, err := filtering.NewDeclarations(
		filtering.DeclareFunction(filtering.FunctionEquals,
			filtering.NewFunctionOverload(
				filtering.FunctionOverloadEqualsString, filtering.TypeBool, filtering.TypeString, filtering.TypeString)),
		filtering.DeclareIdent(did.MethodIdentifier, filtering.TypeString),
		filtering.DeclareIdent(did.IDIdentifier, filtering.TypeString),
	)
	if err != nil {
		errMsg := "creating filter declarations"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusInternalServerError)
		return
	}

	// parsing filters can be expensive, so their length is capped
	invalidFilterErr := "invalid filter"
	if len(request.GetFilter()) > FilterCharacterLimit {
		err = errors.Errorf("filter longer than %d character size limit", FilterCharacterLimit)
		framework.LoggingRespondErrWithMsg(c, err, invalidFilterErr, http.StatusBadRequest)
		return
	}
	filter, err := filtering.ParseFilter(request, declarations)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, invalidFilterErr, http.StatusBadRequest)
		return
	}

	resp, err := dr.service.ListDIDsPage(c, did.ListDIDsRequest{Filter: filter, Page: pageRequest.ToServicePage()})
	if err != nil {
		errMsg := "could not list DIDs"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusInternalServerError)
		return
	}

	docs := resp.DIDs
	if docs == nil {
		docs = make([]diddoc.Document, 0)
	}
	listResp := ListDIDsResponse{DIDs: docs}
	if pagination.MaybeSetNextPageToken(c, resp.NextPageToken, &listResp.NextPageToken) {
		return
	}
	framework.Respond(c, listResp, http.StatusOK)
}

type GetDIDResponse struct {
	DID diddoc.Document `json:"did"`
}

// GetDID godoc
//
// @Summary     Get DID
// @Description Get a stored DID document. Nothing is resolved.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       id  path     string true "DID"
// @Success     200 {object} GetDIDResponse
// @Failure     400 {string} string "Bad request"
// @Failure     404 {string} string "Not found"
// @Router      /v1/dids/created/{id} [get]
func (dr DIDRouter) GetDID(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot get DID without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	doc, err := dr.service.GetDID(c, *id)
	if err != nil {
		errMsg := fmt.Sprintf("could not get DID: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}
	framework.Respond(c, GetDIDResponse{DID: *doc}, http.StatusOK)
}

// UpdateDID godoc
//
// @Summary     Update DID
// @Description Overwrites the stored document of a did:ebsi DID with the document in the request body.
// @Description The document id must match the DID in the path.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       id      path     string true "DID"
// @Param       request body     object true "DID document"
// @Success     200     {object} GetDIDResponse
// @Failure     400     {string} string "Bad request"
// @Failure     500     {string} string "Internal server error"
// @Router      /v1/dids/created/{id} [put]
func (dr DIDRouter) UpdateDID(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot update DID without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	body, err := framework.PeekRequestBody(c.Request)
	if err != nil {
		errMsg := "could not read update DID request"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}
	doc, err := diddoc.DecodeDocument([]byte(body))
	if err != nil {
		errMsg := "invalid update DID request"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}
	if doc.ID != *id {
		errMsg := fmt.Sprintf("document id<%s> does not match DID<%s>", util.SanitizeLog(doc.ID), util.SanitizeLog(*id))
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	if err = dr.service.UpdateEBSIDID(c, *doc); err != nil {
		errMsg := fmt.Sprintf("could not update DID: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}
	framework.Respond(c, GetDIDResponse{DID: *doc}, http.StatusOK)
}

// DeleteDID godoc
//
// @Summary     Delete DID
// @Description Removes a stored DID and the keys backing its verification methods. Deleting an unknown DID succeeds.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       id  path     string true "DID"
// @Success     204 {string} string "No Content"
// @Failure     400 {string} string "Bad request"
// @Failure     500 {string} string "Internal server error"
// @Router      /v1/dids/created/{id} [delete]
func (dr DIDRouter) DeleteDID(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot delete DID without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	if err := dr.service.DeleteDID(c, *id); err != nil {
		errMsg := fmt.Sprintf("could not delete DID: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}
	framework.Respond(c, nil, http.StatusNoContent)
}

type ResolveDIDResponse struct {
	DIDDocument diddoc.Document `json:"didDocument"`
}

// ResolveDID godoc
//
// @Summary     Resolve a DID
// @Description Resolves a fresh copy of any DID of a configured method. With `cached=true` a stored document is
// @Description returned instead when there is one.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       id     path     string  true  "DID"
// @Param       cached query    boolean false "Prefer a stored document"
// @Success     200    {object} ResolveDIDResponse
// @Failure     400    {string} string "Bad request"
// @Failure     404    {string} string "Not found"
// @Failure     502    {string} string "Resolution failed upstream"
// @Router      /v1/dids/resolver/{id} [get]
func (dr DIDRouter) ResolveDID(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot resolve DID without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	var doc *diddoc.Document
	var err error
	if cached := framework.GetQueryValue(c, CachedParam); cached != nil && *cached == "true" {
		doc, _, err = dr.service.LoadOrResolveDID(c, *id)
	} else {
		doc, err = dr.service.ResolveDID(c, *id)
	}
	if err != nil {
		errMsg := fmt.Sprintf("could not resolve DID: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}
	framework.Respond(c, ResolveDIDResponse{DIDDocument: *doc}, http.StatusOK)
}

type ImportKeysResponse struct {
	// Whether at least one verification method of the document is now backed by a stored key.
	Imported bool `json:"imported"`
}

// ImportKeys godoc
//
// @Summary     Import DID keys
// @Description Loads or resolves a DID and stores the public keys of its embedded verification methods.
// @Tags        DecentralizedIdentityAPI
// @Accept      json
// @Produce     json
// @Param       id  path     string true "DID"
// @Success     200 {object} ImportKeysResponse
// @Failure     400 {string} string "Bad request"
// @Failure     502 {string} string "Resolution failed upstream"
// @Router      /v1/dids/import/{id} [post]
func (dr DIDRouter) ImportKeys(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot import keys without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	imported, err := dr.service.ImportKeys(c, *id)
	if err != nil {
		errMsg := fmt.Sprintf("could not import keys of DID: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}
	framework.Respond(c, ImportKeysResponse{Imported: imported}, http.StatusOK)
}
