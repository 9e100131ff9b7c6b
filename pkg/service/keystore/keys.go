package keystore

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"

	sdkcrypto "github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"github.com/tbd54566975/did-service/pkg/did"
)

const secp256k1CurveName = "secp256k1"

// normalizePrivateKey maps the key types produced by ssi-sdk and jwx onto ed25519.PrivateKey,
// *secp256k1.PrivateKey and *rsa.PrivateKey.
func normalizePrivateKey(key gocrypto.PrivateKey) (gocrypto.PrivateKey, did.KeyAlgorithm, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return k, did.Ed25519, nil
	case *ed25519.PrivateKey:
		return *k, did.Ed25519, nil
	case secp256k1.PrivateKey:
		return &k, did.Secp256k1, nil
	case *secp256k1.PrivateKey:
		return k, did.Secp256k1, nil
	case *ecdsa.PrivateKey:
		if k.Curve.Params().Name != secp256k1CurveName {
			return nil, "", errors.Errorf("unsupported curve: %s", k.Curve.Params().Name)
		}
		return secp256k1.PrivKeyFromBytes(k.D.FillBytes(make([]byte, 32))), did.Secp256k1, nil
	case rsa.PrivateKey:
		return &k, did.RSA, nil
	case *rsa.PrivateKey:
		return k, did.RSA, nil
	default:
		return nil, "", errors.Errorf("unsupported private key type: %T", key)
	}
}

// normalizePublicKey is normalizePrivateKey for public keys.
func normalizePublicKey(key gocrypto.PublicKey) (gocrypto.PublicKey, did.KeyAlgorithm, error) {
	switch k := key.(type) {
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return nil, "", errors.Errorf("invalid Ed25519 public key size: %d", len(k))
		}
		return k, did.Ed25519, nil
	case *ed25519.PublicKey:
		return normalizePublicKey(*k)
	case secp256k1.PublicKey:
		return &k, did.Secp256k1, nil
	case *secp256k1.PublicKey:
		return k, did.Secp256k1, nil
	case *ecdsa.PublicKey:
		if k.Curve.Params().Name != secp256k1CurveName {
			return nil, "", errors.Errorf("unsupported curve: %s", k.Curve.Params().Name)
		}
		var x, y secp256k1.FieldVal
		if overflow := x.SetByteSlice(k.X.Bytes()); overflow {
			return nil, "", errors.New("invalid secp256k1 x coordinate")
		}
		if overflow := y.SetByteSlice(k.Y.Bytes()); overflow {
			return nil, "", errors.New("invalid secp256k1 y coordinate")
		}
		return secp256k1.NewPublicKey(&x, &y), did.Secp256k1, nil
	case rsa.PublicKey:
		return &k, did.RSA, nil
	case *rsa.PublicKey:
		return k, did.RSA, nil
	default:
		return nil, "", errors.Errorf("unsupported public key type: %T", key)
	}
}

func publicKeyFromPrivate(key gocrypto.PrivateKey) (gocrypto.PublicKey, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return k.Public(), nil
	case *secp256k1.PrivateKey:
		return k.PubKey(), nil
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, errors.Errorf("unsupported private key type: %T", key)
	}
}

// publicKeyToBytes returns the raw form used in identifiers and base58 material: the 32 byte
// Ed25519 key, the compressed secp256k1 point, or the PKCS#1 DER of an RSA key.
func publicKeyToBytes(key gocrypto.PublicKey) ([]byte, error) {
	switch k := key.(type) {
	case ed25519.PublicKey:
		return k, nil
	case *secp256k1.PublicKey:
		return k.SerializeCompressed(), nil
	case *rsa.PublicKey:
		return x509.MarshalPKCS1PublicKey(k), nil
	default:
		return nil, errors.Errorf("unsupported public key type: %T", key)
	}
}

// PublicKeyFromBytes is the inverse of the raw public key encoding for the given algorithm.
func PublicKeyFromBytes(alg did.KeyAlgorithm, data []byte) (gocrypto.PublicKey, error) {
	switch alg {
	case did.Ed25519:
		if len(data) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid Ed25519 public key size: %d", len(data))
		}
		return ed25519.PublicKey(data), nil
	case did.Secp256k1:
		return secp256k1.ParsePubKey(data)
	case did.RSA:
		return x509.ParsePKCS1PublicKey(data)
	default:
		return nil, errors.Errorf("unsupported key algorithm: %s", alg)
	}
}

func privateKeyToBytes(key gocrypto.PrivateKey) ([]byte, error) {
	return sdkcrypto.PrivKeyToBytes(key)
}

func privateKeyFromBytes(alg did.KeyAlgorithm, data []byte) (gocrypto.PrivateKey, error) {
	key, err := sdkcrypto.BytesToPrivKey(data, sdkcrypto.KeyType(alg))
	if err != nil {
		return nil, err
	}
	normalized, _, err := normalizePrivateKey(key)
	return normalized, err
}

// publicKeyToJWK builds the public JWK of a key. secp256k1 keys need the jwx_es256k build tag.
func publicKeyToJWK(id string, key gocrypto.PublicKey) (jwk.Key, error) {
	raw := key
	if k, ok := key.(*secp256k1.PublicKey); ok {
		raw = k.ToECDSA()
	}
	publicJWK, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, errors.Wrap(err, "converting public key to jwk")
	}
	if err = publicJWK.Set(jwk.KeyIDKey, id); err != nil {
		return nil, errors.Wrap(err, "setting jwk key id")
	}
	return publicJWK, nil
}

// parseJWK reads a JWK into normalized key types. The private key is nil for public JWKs.
func parseJWK(data []byte) (gocrypto.PublicKey, gocrypto.PrivateKey, did.KeyAlgorithm, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "parsing jwk")
	}
	var raw any
	if err = key.Raw(&raw); err != nil {
		return nil, nil, "", errors.Wrap(err, "getting raw key from jwk")
	}
	if privateKey, alg, err := normalizePrivateKey(raw); err == nil {
		publicKey, err := publicKeyFromPrivate(privateKey)
		if err != nil {
			return nil, nil, "", err
		}
		return publicKey, privateKey, alg, nil
	}
	publicKey, alg, err := normalizePublicKey(raw)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "unsupported jwk")
	}
	return publicKey, nil, alg, nil
}

// generateKey creates a fresh private key through ssi-sdk.
func generateKey(alg did.KeyAlgorithm) (gocrypto.PrivateKey, error) {
	if !alg.IsSigningAlgorithm() {
		return nil, errors.Errorf("unsupported key algorithm: %s", alg)
	}
	_, privateKey, err := sdkcrypto.GenerateKeyByKeyType(sdkcrypto.KeyType(alg))
	if err != nil {
		return nil, errors.Wrapf(err, "generating %s key", alg)
	}
	normalized, _, err := normalizePrivateKey(privateKey)
	return normalized, err
}
