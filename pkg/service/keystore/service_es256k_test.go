//go:build jwx_es256k

package keystore

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/testutil"
)

func TestSecp256k1Keys(t *testing.T) {
	keyStore := newKeyStoreService(t, testutil.TestDatabases[0].ServiceStorage(t), clock.New())
	ctx := context.Background()

	keyID, err := keyStore.GenerateKey(ctx, did.Secp256k1)
	require.NoError(t, err)

	key, err := keyStore.GetKey(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, did.Secp256k1, key.Algorithm)
	assert.Len(t, key.PublicKeyBytes, secp256k1.PubKeyBytesLenCompressed)

	publicJWK, err := keyStore.ToJWK(ctx, keyID)
	require.NoError(t, err)
	ecJWK, ok := publicJWK.(jwk.ECDSAPublicKey)
	require.True(t, ok)
	assert.Equal(t, jwa.Secp256k1, ecJWK.Crv())
}
