package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"github.com/tbd54566975/did-service/internal/util"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/server/framework"
	svcframework "github.com/tbd54566975/did-service/pkg/service/framework"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

type KeyStoreRouter struct {
	service *keystore.Service
}

func NewKeyStoreRouter(s svcframework.Service) (*KeyStoreRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	keyStoreService, ok := s.(*keystore.Service)
	if !ok {
		return nil, fmt.Errorf("could not create key store router with service type: %s", s.Type())
	}
	return &KeyStoreRouter{service: keyStoreService}, nil
}

type GenerateKeyRequest struct {
	// Identifies the cryptographic algorithm family used with the key.
	// One of the following: "Ed25519", "secp256k1", "RSA".
	Algorithm did.KeyAlgorithm `json:"algorithm" validate:"required"`
}

type KeyIDResponse struct {
	ID string `json:"id"`
}

// GenerateKey godoc
//
// @Summary     Generate Key
// @Description Generates and stores a private key, responding with its id.
// @Tags        KeyStoreAPI
// @Accept      json
// @Produce     json
// @Param       request body     GenerateKeyRequest true "request body"
// @Success     201     {object} KeyIDResponse
// @Failure     400     {string} string "Bad request"
// @Failure     500     {string} string "Internal server error"
// @Router      /v1/keys [put]
func (ksr *KeyStoreRouter) GenerateKey(c *gin.Context) {
	var request GenerateKeyRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		errMsg := "invalid generate key request"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}
	if !request.Algorithm.IsSigningAlgorithm() {
		errMsg := fmt.Sprintf("unsupported key algorithm: %s", util.SanitizeLog(request.Algorithm.String()))
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	id, err := ksr.service.GenerateKey(c, request.Algorithm)
	if err != nil {
		errMsg := fmt.Sprintf("could not generate %s key", request.Algorithm)
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusInternalServerError)
		return
	}

	framework.Respond(c, KeyIDResponse{ID: id}, http.StatusCreated)
}

type ImportKeyRequest struct {
	// A public or private key in JWK format according to RFC7517.
	JWK json.RawMessage `json:"jwk" validate:"required"`
}

// ImportKey godoc
//
// @Summary     Import Key
// @Description Stores the public or private key carried by a JWK, responding with its new id.
// @Tags        KeyStoreAPI
// @Accept      json
// @Produce     json
// @Param       request body     ImportKeyRequest true "request body"
// @Success     201     {object} KeyIDResponse
// @Failure     400     {string} string "Bad request"
// @Router      /v1/keys/import [post]
func (ksr *KeyStoreRouter) ImportKey(c *gin.Context) {
	var request ImportKeyRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		errMsg := "invalid import key request"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}
	if _, err := jwk.ParseKey(request.JWK); err != nil {
		errMsg := "could not parse jwk"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}

	id, err := ksr.service.ImportKey(c, request.JWK)
	if err != nil {
		errMsg := "could not import key"
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return
	}

	framework.Respond(c, KeyIDResponse{ID: id}, http.StatusCreated)
}

type GetKeyDetailsResponse struct {
	ID         string           `json:"id,omitempty"`
	Algorithm  did.KeyAlgorithm `json:"algorithm,omitempty"`
	Controller string           `json:"controller,omitempty"`

	// Represents the time at which the key was created. Encoded according to RFC3339.
	CreatedAt string `json:"createdAt,omitempty"`

	// DIDs and verification method ids that refer to this key.
	Aliases       []string `json:"aliases,omitempty"`
	HasPrivateKey bool     `json:"hasPrivateKey"`

	// The public key in JWK format according to RFC7517. This public key is associated with the private
	// key with the associated ID.
	PublicKeyJWK jwk.Key `json:"publicKeyJwk,omitempty"`
}

// GetKeyDetails godoc
//
// @Summary     Get Details For Key
// @Description Describes a stored key. The id may be the key id or any of its aliases.
// @Tags        KeyStoreAPI
// @Accept      json
// @Produce     json
// @Param       id  path     string true "Key id or alias"
// @Success     200 {object} GetKeyDetailsResponse
// @Failure     400 {string} string "Bad request"
// @Failure     404 {string} string "Not found"
// @Router      /v1/keys/{id} [get]
func (ksr *KeyStoreRouter) GetKeyDetails(c *gin.Context) {
	id := framework.GetParam(c, IDParam)
	if id == nil {
		errMsg := "cannot get key details without ID parameter"
		framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
		return
	}

	gotKeyDetails, err := ksr.service.GetKeyDetails(c, *id)
	if err != nil {
		errMsg := fmt.Sprintf("could not get key details for id: %s", util.SanitizeLog(*id))
		framework.LoggingRespondErrWithMsg(c, err, errMsg, statusForError(err))
		return
	}

	resp := GetKeyDetailsResponse{
		ID:            gotKeyDetails.ID,
		Algorithm:     gotKeyDetails.Algorithm,
		Controller:    gotKeyDetails.Controller,
		CreatedAt:     gotKeyDetails.CreatedAt,
		Aliases:       gotKeyDetails.Aliases,
		HasPrivateKey: gotKeyDetails.HasPrivateKey,
		PublicKeyJWK:  gotKeyDetails.PublicKeyJWK,
	}
	framework.Respond(c, resp, http.StatusOK)
}
