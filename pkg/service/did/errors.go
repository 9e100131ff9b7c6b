package did

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tbd54566975/did-service/pkg/did"
)

var (
	ErrUnsupportedMethod    = errors.New("unsupported did method")
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")
	ErrMissingOption        = errors.New("missing required option")
	ErrNotFound             = errors.New("did not found")
	ErrTransportFailure     = errors.New("transport failure")
	ErrDecodeFailure        = errors.New("could not decode did document")

	// ErrMalformedIdentifier is re-exported so callers of the service need a single errors import.
	ErrMalformedIdentifier = did.ErrMalformedIdentifier
)

// ClientRequestError is a failed outbound request: either the request never completed, or it
// completed with a non-2xx status. It matches ErrTransportFailure.
type ClientRequestError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ClientRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *ClientRequestError) Unwrap() error {
	return e.Err
}

func (e *ClientRequestError) Is(target error) bool {
	return target == ErrTransportFailure
}
