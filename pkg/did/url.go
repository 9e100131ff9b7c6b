package did

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	Prefix = "did"

	fragmentSeparator = "#"
)

// ErrMalformedIdentifier is returned whenever a DID, DID URL, or encoded key cannot be parsed.
var ErrMalformedIdentifier = errors.New("malformed identifier")

var methodToken = regexp.MustCompile(`^[a-z0-9]+$`)

// DIDURL is a parsed DID with an optional fragment.
// e.g. did:web:example.com:user:alice#key-1
type DIDURL struct {
	Method     Method
	Identifier string
	Fragment   string
}

// ParseDIDURL parses did:<method>:<identifier>[#fragment]. The method is only checked
// syntactically; whether it is supported is decided at dispatch time.
func ParseDIDURL(s string) (*DIDURL, error) {
	withoutFragment, fragment, hasFragment := strings.Cut(s, fragmentSeparator)
	if hasFragment && fragment == "" {
		return nil, errors.Wrapf(ErrMalformedIdentifier, "empty fragment in <%s>", s)
	}
	parts := strings.SplitN(withoutFragment, ":", 3)
	if len(parts) != 3 || parts[0] != Prefix {
		return nil, errors.Wrapf(ErrMalformedIdentifier, "<%s> is not of the form did:<method>:<identifier>", s)
	}
	if !methodToken.MatchString(parts[1]) {
		return nil, errors.Wrapf(ErrMalformedIdentifier, "invalid method token<%s>", parts[1])
	}
	if parts[2] == "" || strings.HasSuffix(parts[2], ":") {
		return nil, errors.Wrapf(ErrMalformedIdentifier, "invalid method specific identifier in <%s>", s)
	}
	return &DIDURL{
		Method:     Method(parts[1]),
		Identifier: parts[2],
		Fragment:   fragment,
	}, nil
}

// DID returns the DID without any fragment.
func (d DIDURL) DID() string {
	return fmt.Sprintf("%s:%s:%s", Prefix, d.Method, d.Identifier)
}

func (d DIDURL) String() string {
	if d.Fragment == "" {
		return d.DID()
	}
	return d.DID() + fragmentSeparator + d.Fragment
}

// WithFragment returns a copy of the URL pointing at the given fragment.
func (d DIDURL) WithFragment(fragment string) DIDURL {
	d.Fragment = fragment
	return d
}

// MethodOf returns the method of a DID string without validating the rest of it.
func MethodOf(s string) (Method, error) {
	u, err := ParseDIDURL(s)
	if err != nil {
		return "", err
	}
	return u.Method, nil
}
