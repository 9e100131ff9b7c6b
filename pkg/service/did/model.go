package did

import (
	"go.einride.tech/aip/filtering"

	"github.com/tbd54566975/did-service/pkg/did"
)

// Identifiers a list filter can reference, e.g. `method = "web"`.
const (
	MethodIdentifier = "method"
	IDIdentifier     = "id"
)

// CreateDIDRequest creates a DID of the given method. KeyID selects an existing key from the key store;
// when empty a new key of KeyAlgorithm is generated.
type CreateDIDRequest struct {
	Method       did.Method       `json:"method" validate:"required"`
	KeyAlgorithm did.KeyAlgorithm `json:"keyAlgorithm"`
	KeyID        string           `json:"keyId,omitempty"`
	Options      CreateDIDOptions `json:"options,omitempty"`
}

// CreateDIDOptions are method specific creation options.
type CreateDIDOptions interface {
	Method() did.Method
}

// CreateWebDIDOptions places the document at https://<Domain>/.well-known/[<Path>/]did.json.
type CreateWebDIDOptions struct {
	Domain string `json:"domain" validate:"required"`
	Path   string `json:"path,omitempty"`
}

func (CreateWebDIDOptions) Method() did.Method {
	return did.WebMethod
}

// CreateEBSIDIDOptions picks the identifier scheme: 2 derives it from the key's JWK thumbprint,
// anything else generates a random v1 identifier.
type CreateEBSIDIDOptions struct {
	Version int `json:"version,omitempty"`
}

func (CreateEBSIDIDOptions) Method() did.Method {
	return did.EBSIMethod
}

// CreateDIDResponse is the created document and the id of the key backing it.
type CreateDIDResponse struct {
	DID      string       `json:"did"`
	KeyID    string       `json:"keyId"`
	Document did.Document `json:"document"`
}

type GetSupportedMethodsResponse struct {
	Methods []did.Method `json:"methods"`
}

// Page selects a slice of the DIDs ordered by id. Token is the DID the previous page ended with; empty
// starts from the beginning. A Size below 1 returns everything after Token.
type Page struct {
	Token string
	Size  int
}

// ToStorageArgs unpacks a possibly nil page. A nil page is the whole listing.
func (page *Page) ToStorageArgs() (string, int) {
	if page == nil {
		return "", -1
	}
	return page.Token, page.Size
}

type ListDIDsRequest struct {
	// Filter is a checked AIP-160 filter over MethodIdentifier and IDIdentifier. The zero value matches all.
	Filter filtering.Filter
	Page   *Page
}

type ListDIDsResponse struct {
	DIDs []did.Document
	// NextPageToken is empty on the last page.
	NextPageToken string
}
