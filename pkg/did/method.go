// Package did holds the method-independent building blocks of the service: the DID URL grammar,
// the multibase/multicodec identifier codec, the document model and the verification method builder.
package did

// Method is the closed set of DID methods the service understands
type Method string

const (
	KeyMethod  Method = "key"
	WebMethod  Method = "web"
	EBSIMethod Method = "ebsi"
	IOTAMethod Method = "iota"
)

func (m Method) String() string {
	return string(m)
}

// IsSupported reports whether the method token is one of the known methods.
func (m Method) IsSupported() bool {
	switch m {
	case KeyMethod, WebMethod, EBSIMethod, IOTAMethod:
		return true
	default:
		return false
	}
}

// SupportedMethods returns every method the service knows how to dispatch.
func SupportedMethods() []Method {
	return []Method{KeyMethod, WebMethod, EBSIMethod, IOTAMethod}
}

// ParseMethod converts a method token. Method names are case sensitive, so anything but an exact
// match is returned as-is for callers to report; check IsSupported before dispatching.
func ParseMethod(s string) Method {
	return Method(s)
}

// KeyAlgorithm is the cryptographic family of a key. Values match the ssi-sdk key type names.
type KeyAlgorithm string

const (
	Ed25519   KeyAlgorithm = "Ed25519"
	RSA       KeyAlgorithm = "RSA"
	Secp256k1 KeyAlgorithm = "secp256k1"

	// X25519 only appears as the derived key agreement key of an Ed25519 key; keys are never
	// generated or stored with it.
	X25519 KeyAlgorithm = "X25519"
)

func (a KeyAlgorithm) String() string {
	return string(a)
}

// IsSigningAlgorithm reports whether keys of this algorithm can back a DID.
func (a KeyAlgorithm) IsSigningAlgorithm() bool {
	switch a {
	case Ed25519, RSA, Secp256k1:
		return true
	default:
		return false
	}
}
