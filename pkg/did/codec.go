package did

import (
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"
	"github.com/pkg/errors"
)

var (
	algorithmCodecs = map[KeyAlgorithm]multicodec.Code{
		Ed25519:   multicodec.Ed25519Pub,
		Secp256k1: multicodec.Secp256k1Pub,
		RSA:       multicodec.RsaPub,
		X25519:    multicodec.X25519Pub,
	}
	codecAlgorithms = map[multicodec.Code]KeyAlgorithm{
		multicodec.Ed25519Pub:   Ed25519,
		multicodec.Secp256k1Pub: Secp256k1,
		multicodec.RsaPub:       RSA,
		multicodec.X25519Pub:    X25519,
	}
)

// EncodePublicKey builds the multibase (base58btc) encoding of the multicodec-prefixed public key.
// This is the method specific identifier of did:key and the fragment of every generated verification method.
func EncodePublicKey(publicKey []byte, alg KeyAlgorithm) (string, error) {
	code, ok := algorithmCodecs[alg]
	if !ok {
		return "", errors.Errorf("no multicodec registered for key algorithm<%s>", alg)
	}
	if len(publicKey) == 0 {
		return "", errors.New("public key cannot be empty")
	}
	prefix := varint.ToUvarint(uint64(code))
	data := make([]byte, 0, len(prefix)+len(publicKey))
	data = append(data, prefix...)
	data = append(data, publicKey...)
	encoded, err := multibase.Encode(multibase.Base58BTC, data)
	if err != nil {
		return "", errors.Wrap(err, "multibase encoding public key")
	}
	return encoded, nil
}

// DecodePublicKey reverses EncodePublicKey, returning the raw key bytes and their algorithm.
func DecodePublicKey(identifier string) ([]byte, KeyAlgorithm, error) {
	encoding, data, err := multibase.Decode(identifier)
	if err != nil {
		return nil, "", errors.Wrapf(ErrMalformedIdentifier, "decoding multibase identifier: %s", err)
	}
	if encoding != multibase.Base58BTC {
		return nil, "", errors.Wrapf(ErrMalformedIdentifier, "expected base58btc encoding, got<%s>", multibase.EncodingToStr[encoding])
	}
	code, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, "", errors.Wrapf(ErrMalformedIdentifier, "reading multicodec prefix: %s", err)
	}
	alg, ok := codecAlgorithms[multicodec.Code(code)]
	if !ok {
		return nil, "", errors.Wrapf(ErrMalformedIdentifier, "unknown multicodec prefix<%#x>", code)
	}
	if n >= len(data) {
		return nil, "", errors.Wrap(ErrMalformedIdentifier, "identifier carries no key bytes")
	}
	return data[n:], alg, nil
}
