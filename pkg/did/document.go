package did

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	KnownDIDContext = "https://www.w3.org/ns/did/v1"

	Ed25519VerificationKey2018        = "Ed25519VerificationKey2018"
	Ed25519VerificationKey2019        = "Ed25519VerificationKey2019"
	Ed25519VerificationKey2020        = "Ed25519VerificationKey2020"
	X25519KeyAgreementKey2019         = "X25519KeyAgreementKey2019"
	RSAVerificationKey2018            = "RsaVerificationKey2018"
	EcdsaSecp256k1VerificationKey2019 = "EcdsaSecp256k1VerificationKey2019"
	JSONWebKey2020                    = "JsonWebKey2020"
)

// Document is a DID document. Method specific fields that are not modelled here are dropped on decode.
type Document struct {
	Context              any                        `json:"@context,omitempty"`
	ID                   string                     `json:"id"`
	Controller           any                        `json:"controller,omitempty"`
	AlsoKnownAs          []string                   `json:"alsoKnownAs,omitempty"`
	VerificationMethod   []VerificationMethod       `json:"verificationMethod,omitempty"`
	Authentication       []VerificationRelationship `json:"authentication,omitempty"`
	AssertionMethod      []VerificationRelationship `json:"assertionMethod,omitempty"`
	KeyAgreement         []VerificationRelationship `json:"keyAgreement,omitempty"`
	CapabilityInvocation []VerificationRelationship `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []VerificationRelationship `json:"capabilityDelegation,omitempty"`
	Services             []Service                  `json:"service,omitempty"`
}

type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint any    `json:"serviceEndpoint"`
}

func (d *Document) IsEmpty() bool {
	return d == nil || d.ID == ""
}

// EmbeddedVerificationMethods returns every embedded (non-reference) verification method in slot order:
// verificationMethod, capabilityInvocation, capabilityDelegation, assertionMethod, authentication, keyAgreement.
func (d *Document) EmbeddedVerificationMethods() []VerificationMethod {
	if d == nil {
		return nil
	}
	methods := make([]VerificationMethod, 0, len(d.VerificationMethod))
	methods = append(methods, d.VerificationMethod...)
	for _, slot := range [][]VerificationRelationship{
		d.CapabilityInvocation,
		d.CapabilityDelegation,
		d.AssertionMethod,
		d.Authentication,
		d.KeyAgreement,
	} {
		for _, rel := range slot {
			if rel.Method != nil {
				methods = append(methods, *rel.Method)
			}
		}
	}
	return methods
}

// KeyMaterial is one representation of the public key carried by a verification method.
type KeyMaterial interface {
	isKeyMaterial()
}

type (
	// Base58Material is publicKeyBase58
	Base58Material string
	// MultibaseMaterial is publicKeyMultibase
	MultibaseMaterial string
	// PEMMaterial is publicKeyPem
	PEMMaterial string
	// JWKMaterial is the raw JSON of publicKeyJwk
	JWKMaterial json.RawMessage
)

func (Base58Material) isKeyMaterial()    {}
func (MultibaseMaterial) isKeyMaterial() {}
func (PEMMaterial) isKeyMaterial()       {}
func (JWKMaterial) isKeyMaterial()       {}

type VerificationMethod struct {
	ID         string
	Type       string
	Controller string
	// Material is the preferred representation of the key
	Material KeyMaterial
	// AlternativeMaterial holds any other representations the method carries, in order of preference
	AlternativeMaterial []KeyMaterial
}

// Materials returns every representation of the key, preferred first.
func (vm VerificationMethod) Materials() []KeyMaterial {
	if vm.Material == nil {
		return nil
	}
	return append([]KeyMaterial{vm.Material}, vm.AlternativeMaterial...)
}

type verificationMethodJSON struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Controller         string          `json:"controller,omitempty"`
	PublicKeyBase58    string          `json:"publicKeyBase58,omitempty"`
	PublicKeyMultibase string          `json:"publicKeyMultibase,omitempty"`
	PublicKeyPEM       string          `json:"publicKeyPem,omitempty"`
	PublicKeyJWK       json.RawMessage `json:"publicKeyJwk,omitempty"`
}

func (vm VerificationMethod) MarshalJSON() ([]byte, error) {
	out := verificationMethodJSON{
		ID:         vm.ID,
		Type:       vm.Type,
		Controller: vm.Controller,
	}
	for _, material := range vm.Materials() {
		switch m := material.(type) {
		case Base58Material:
			out.PublicKeyBase58 = string(m)
		case MultibaseMaterial:
			out.PublicKeyMultibase = string(m)
		case PEMMaterial:
			out.PublicKeyPEM = string(m)
		case JWKMaterial:
			out.PublicKeyJWK = json.RawMessage(m)
		default:
			return nil, errors.Errorf("unknown key material type: %T", m)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON keeps every representation of the key. The order of preference is JWK, base58, PEM,
// multibase; the first one present becomes Material.
func (vm *VerificationMethod) UnmarshalJSON(data []byte) error {
	var in verificationMethodJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	vm.ID = in.ID
	vm.Type = in.Type
	vm.Controller = in.Controller

	var materials []KeyMaterial
	if len(in.PublicKeyJWK) > 0 && string(in.PublicKeyJWK) != "null" {
		materials = append(materials, JWKMaterial(in.PublicKeyJWK))
	}
	if in.PublicKeyBase58 != "" {
		materials = append(materials, Base58Material(in.PublicKeyBase58))
	}
	if in.PublicKeyPEM != "" {
		materials = append(materials, PEMMaterial(in.PublicKeyPEM))
	}
	if in.PublicKeyMultibase != "" {
		materials = append(materials, MultibaseMaterial(in.PublicKeyMultibase))
	}

	vm.Material, vm.AlternativeMaterial = nil, nil
	if len(materials) > 0 {
		vm.Material = materials[0]
		if len(materials) > 1 {
			vm.AlternativeMaterial = materials[1:]
		}
	}
	return nil
}

// VerificationRelationship is an entry of a verification relationship: either a reference to a
// verification method by id, or an embedded verification method.
type VerificationRelationship struct {
	Reference string
	Method    *VerificationMethod
}

func NewReference(id string) VerificationRelationship {
	return VerificationRelationship{Reference: id}
}

func NewEmbedded(vm VerificationMethod) VerificationRelationship {
	return VerificationRelationship{Method: &vm}
}

func (v VerificationRelationship) IsReference() bool {
	return v.Method == nil
}

// ID returns the referenced or embedded method id.
func (v VerificationRelationship) ID() string {
	if v.Method != nil {
		return v.Method.ID
	}
	return v.Reference
}

func (v VerificationRelationship) MarshalJSON() ([]byte, error) {
	if v.Method != nil {
		return json.Marshal(v.Method)
	}
	return json.Marshal(v.Reference)
}

func (v *VerificationRelationship) UnmarshalJSON(data []byte) error {
	var reference string
	if err := json.Unmarshal(data, &reference); err == nil {
		*v = VerificationRelationship{Reference: reference}
		return nil
	}
	var vm VerificationMethod
	if err := json.Unmarshal(data, &vm); err != nil {
		return errors.Wrap(err, "verification relationship is neither a reference nor a verification method")
	}
	*v = VerificationRelationship{Method: &vm}
	return nil
}

// DecodeDocument parses the JSON text of a DID document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding did document")
	}
	if doc.ID == "" {
		return nil, errors.New("decoded did document has no id")
	}
	return &doc, nil
}

// EncodeDocument renders a document as JSON text, indented when pretty is set.
func EncodeDocument(doc Document, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}
