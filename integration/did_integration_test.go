package integration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var didKeyContext = NewTestContext("DIDKey")

func TestServiceReadyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	require.NoError(t, WaitForReadiness())
}

func TestCreateDIDKeyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	didKeyOutput, err := CreateDIDKey()
	require.NoError(t, err)

	did, err := getJSONElement(didKeyOutput, "$.did")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(did, "did:key:z6Mk"))
	SetValue(didKeyContext, "did", did)

	kid, err := getJSONElement(didKeyOutput, "$.document.verificationMethod[0].id")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kid, did+"#"))
	SetValue(didKeyContext, "kid", kid)
}

func TestResolveDIDKeyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	did, err := GetValue(didKeyContext, "did")
	require.NoError(t, err)

	resolvedOutput, err := ResolveDID(did.(string))
	require.NoError(t, err)

	resolvedID, err := getJSONElement(resolvedOutput, "$.didDocument.id")
	require.NoError(t, err)
	assert.Equal(t, did, resolvedID)

	keyAgreement, err := getJSONElement(resolvedOutput, "$.didDocument.verificationMethod[1].type")
	require.NoError(t, err)
	assert.Equal(t, "X25519KeyAgreementKey2019", keyAgreement)
}

func TestGetCreatedDIDKeyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	did, err := GetValue(didKeyContext, "did")
	require.NoError(t, err)

	output, err := GetCreatedDID(did.(string))
	require.NoError(t, err)
	storedID, err := getJSONElement(output, "$.did.id")
	require.NoError(t, err)
	assert.Equal(t, did, storedID)

	listOutput, err := ListCreatedDIDs()
	require.NoError(t, err)
	assert.Contains(t, listOutput, did.(string))

	kid, err := GetValue(didKeyContext, "kid")
	require.NoError(t, err)
	keyOutput, err := GetKeyDetails(kid.(string))
	require.NoError(t, err)
	hasPrivateKey, err := getJSONElement(keyOutput, "$.hasPrivateKey")
	require.NoError(t, err)
	assert.Equal(t, "true", hasPrivateKey)
}

func TestDeleteDIDKeyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	did, err := GetValue(didKeyContext, "did")
	require.NoError(t, err)

	require.NoError(t, DeleteDID(did.(string)))

	_, err = GetCreatedDID(did.(string))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCreateDIDWebIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	didWebOutput, err := CreateDIDWeb(didWebParams{Domain: "example.com:8443", Path: "users/alice"})
	require.NoError(t, err)

	did, err := getJSONElement(didWebOutput, "$.did")
	require.NoError(t, err)
	assert.Equal(t, "did:web:example.com%3A8443:users:alice", did)

	output, err := GetCreatedDID(did)
	require.NoError(t, err)
	storedID, err := getJSONElement(output, "$.did.id")
	require.NoError(t, err)
	assert.Equal(t, did, storedID)

	require.NoError(t, DeleteDID(did))
}

func TestCreateDIDEBSIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	for _, version := range []int{1, 2} {
		didEBSIOutput, err := CreateDIDEBSI(didEBSIParams{Version: version})
		require.NoError(t, err)

		did, err := getJSONElement(didEBSIOutput, "$.did")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(did, "did:ebsi:z"))

		require.NoError(t, DeleteDID(did))
	}
}

func TestImportKeysIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	did := "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	importOutput, err := ImportKeys(did)
	require.NoError(t, err)

	imported, err := getJSONElement(importOutput, "$.imported")
	require.NoError(t, err)
	assert.Equal(t, "true", imported)

	keyOutput, err := GetKeyDetails(did)
	require.NoError(t, err)
	hasPrivateKey, err := getJSONElement(keyOutput, "$.hasPrivateKey")
	require.NoError(t, err)
	assert.Equal(t, "false", hasPrivateKey)

	require.NoError(t, DeleteDID(did))
}
