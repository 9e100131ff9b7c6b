package router

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/tbd54566975/did-service/pkg/service/did"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
)

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, did.ErrUnsupportedMethod),
		errors.Is(err, did.ErrMalformedIdentifier),
		errors.Is(err, did.ErrMissingOption),
		errors.Is(err, did.ErrUnsupportedAlgorithm):
		return http.StatusBadRequest
	case errors.Is(err, did.ErrNotFound), errors.Is(err, keystore.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, did.ErrTransportFailure), errors.Is(err, did.ErrDecodeFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
