package did

import (
	"net/url"
	"strings"
)

const (
	wellKnownPath  = ".well-known"
	webDIDDocument = "did.json"
)

// EncodeWebIdentifier builds the did:web method specific identifier from a domain and an optional
// '/'-separated path. The domain is percent-encoded so a port separator cannot be mistaken for a path separator.
func EncodeWebIdentifier(domain, path string) string {
	segments := []string{encodeWebSegment(domain)}
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment != "" {
			segments = append(segments, encodeWebSegment(segment))
		}
	}
	return strings.Join(segments, ":")
}

func encodeWebSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

// SplitWebIdentifier splits a did:web identifier into its domain and optional ':'-separated path.
func SplitWebIdentifier(identifier string) (domain string, path *string) {
	domain, rest, ok := strings.Cut(identifier, ":")
	if ok && rest != "" {
		path = &rest
	}
	return domain, path
}

// WebPathForDIDWeb returns the https URL of the document of a did:web DID.
// e.g. ("example.com", "user:alice") -> https://example.com/.well-known/user/alice/did.json
func WebPathForDIDWeb(domain string, path *string) string {
	host := unescape(domain)
	parts := []string{"https://" + host, wellKnownPath}
	if path != nil {
		normalized := strings.Trim(unescape(strings.ReplaceAll(*path, ":", "/")), "/")
		if normalized != "" {
			parts = append(parts, normalized)
		}
	}
	parts = append(parts, webDIDDocument)
	return strings.Join(parts, "/")
}

func unescape(s string) string {
	unescaped, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}
