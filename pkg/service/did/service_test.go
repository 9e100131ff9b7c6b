package did

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/aip/filtering"
	"gopkg.in/h2non/gock.v1"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/service/framework"
	"github.com/tbd54566975/did-service/pkg/service/keystore"
	"github.com/tbd54566975/did-service/pkg/storage"
	"github.com/tbd54566975/did-service/pkg/testutil"
)

const (
	testRegistryHost = "https://api.ebsi.test"
	testRegistryPath = "/did-registry/v2/identifiers"

	knownKeyDID           = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	knownKeyFragment      = "z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	knownKeyAgreementFrag = "z6LSbysY2xFMRpGMhb7tFTLMpeuPRaqaWM1yECx2AtzE3KCc"
	knownKeyPublicBase58  = "B12NYF8RrR3h41TDCTJojY59usg3mbtbjnFs7Eud1Y6u"
	knownX25519KeyBase58  = "JhNWeSVLMYccCk7iopQW4guaSJTojqpMEELgSLhKwRr"
)

func TestDIDService(t *testing.T) {
	for _, test := range testutil.TestDatabases {
		t.Run(test.Name, func(t *testing.T) {
			t.Run("Service status and supported methods", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				assert.Equal(tt, framework.DID, didService.Type())
				assert.True(tt, didService.Status().IsReady())
				assert.False(tt, didService.Config().IsEmpty())

				supported := didService.GetSupportedMethods()
				assert.Equal(tt, []did.Method{did.KeyMethod, did.WebMethod, did.EBSIMethod}, supported.Methods)
			})

			t.Run("Unconfigured and unknown methods are rejected", func(tt *testing.T) {
				db := test.ServiceStorage(tt)
				keyStore := newKeyStore(tt, db)

				_, err := NewDIDService(testDIDConfig("key", "bogus"), db, keyStore)
				assert.ErrorIs(tt, err, ErrUnsupportedMethod)

				// did:iota cannot be enabled without a ledger
				_, err = NewDIDService(testDIDConfig("iota"), db, keyStore)
				assert.Error(tt, err)

				didService, err := NewDIDService(testDIDConfig("key"), db, keyStore)
				require.NoError(tt, err)

				_, err = didService.CreateDID(context.Background(), CreateDIDRequest{Method: did.WebMethod})
				assert.ErrorIs(tt, err, ErrUnsupportedMethod)

				// method names match exactly
				_, err = didService.CreateDID(context.Background(), CreateDIDRequest{Method: did.Method("KEY")})
				assert.ErrorIs(tt, err, ErrUnsupportedMethod)

				_, err = didService.ResolveDID(context.Background(), "did:web:example.com")
				assert.ErrorIs(tt, err, ErrUnsupportedMethod)

				_, err = didService.ResolveDID(context.Background(), "not-a-did")
				assert.ErrorIs(tt, err, ErrMalformedIdentifier)
			})

			t.Run("Create a did:key with an Ed25519 key", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyAlgorithm: did.Ed25519})
				require.NoError(tt, err)
				assert.Contains(tt, created.DID, "did:key:z6Mk")
				assert.Equal(tt, created.DID, created.Document.ID)
				assertEd25519Document(tt, created.Document)

				// the key is reachable through the DID and the signing method
				for _, alias := range []string{created.DID, created.Document.VerificationMethod[0].ID} {
					key, err := keyStore.GetKey(ctx, alias)
					assert.NoError(tt, err)
					assert.Equal(tt, created.KeyID, key.ID)
				}

				gotDID, err := didService.GetDID(ctx, created.DID)
				assert.NoError(tt, err)
				assert.Equal(tt, created.Document, *gotDID)

				// resolution is a pure function of the identifier
				resolved, err := didService.ResolveDID(ctx, created.DID)
				assert.NoError(tt, err)
				assert.Equal(tt, created.Document, *resolved)
			})

			t.Run("Create did:key DIDs with RSA and secp256k1 keys", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				for _, alg := range []did.KeyAlgorithm{did.RSA, did.Secp256k1} {
					created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyAlgorithm: alg})
					require.NoError(tt, err)
					assert.Len(tt, created.Document.VerificationMethod, 1)
					assert.Empty(tt, created.Document.KeyAgreement)

					resolved, err := didService.ResolveDID(ctx, created.DID)
					assert.NoError(tt, err)
					assert.Equal(tt, created.Document, *resolved)
				}
			})

			t.Run("Create a did:key from an existing key", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				keyID, err := keyStore.GenerateKey(ctx, did.Ed25519)
				require.NoError(tt, err)

				created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyID: keyID})
				assert.NoError(tt, err)
				assert.Equal(tt, keyID, created.KeyID)

				_, err = didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyID: keyID, KeyAlgorithm: did.RSA})
				assert.ErrorIs(tt, err, ErrUnsupportedAlgorithm)

				_, err = didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyID: "missing"})
				assert.ErrorIs(tt, err, keystore.ErrKeyNotFound)
			})

			t.Run("Unsupported algorithms fail before any key is generated", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				for _, alg := range []did.KeyAlgorithm{did.X25519, "P-256"} {
					_, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod, KeyAlgorithm: alg})
					assert.ErrorIs(tt, err, ErrUnsupportedAlgorithm)
				}

				keys, err := keyStore.ListKeys(ctx)
				assert.NoError(tt, err)
				assert.Empty(tt, keys)
			})

			t.Run("List DIDs", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				dids, err := didService.ListDIDs(ctx)
				assert.NoError(tt, err)
				assert.Empty(tt, dids)

				first, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod})
				require.NoError(tt, err)
				second, err := didService.CreateDID(ctx, CreateDIDRequest{
					Method:  did.WebMethod,
					Options: CreateWebDIDOptions{Domain: "example.com"},
				})
				require.NoError(tt, err)

				dids, err = didService.ListDIDs(ctx)
				assert.NoError(tt, err)
				require.Len(tt, dids, 2)
				// ordered by DID
				assert.Equal(tt, first.DID, dids[0].ID)
				assert.Equal(tt, second.DID, dids[1].ID)
			})

			t.Run("List DIDs by filter and page", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				var keyDIDs []string
				for i := 0; i < 2; i++ {
					created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod})
					require.NoError(tt, err)
					keyDIDs = append(keyDIDs, created.DID)
				}
				sort.Strings(keyDIDs)
				web, err := didService.CreateDID(ctx, CreateDIDRequest{
					Method:  did.WebMethod,
					Options: CreateWebDIDOptions{Domain: "example.com"},
				})
				require.NoError(tt, err)

				resp, err := didService.ListDIDsPage(ctx, ListDIDsRequest{Filter: parseDIDFilter(tt, `method = "key"`)})
				require.NoError(tt, err)
				assert.Equal(tt, keyDIDs, documentIDs(resp.DIDs))
				assert.Empty(tt, resp.NextPageToken)

				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Filter: parseDIDFilter(tt, `id = "`+web.DID+`"`)})
				require.NoError(tt, err)
				assert.Equal(tt, []string{web.DID}, documentIDs(resp.DIDs))

				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Filter: parseDIDFilter(tt, `method = "ebsi"`)})
				require.NoError(tt, err)
				assert.Empty(tt, resp.DIDs)

				// one filtered key DID per page
				keyFilter := parseDIDFilter(tt, `method = "key"`)
				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Filter: keyFilter, Page: &Page{Size: 1}})
				require.NoError(tt, err)
				assert.Equal(tt, keyDIDs[:1], documentIDs(resp.DIDs))
				require.NotEmpty(tt, resp.NextPageToken)

				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Filter: keyFilter, Page: &Page{Size: 1, Token: resp.NextPageToken}})
				require.NoError(tt, err)
				assert.Equal(tt, keyDIDs[1:], documentIDs(resp.DIDs))
				assert.Empty(tt, resp.NextPageToken)

				// unfiltered pages of two
				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Page: &Page{Size: 2}})
				require.NoError(tt, err)
				assert.Equal(tt, keyDIDs, documentIDs(resp.DIDs))
				require.NotEmpty(tt, resp.NextPageToken)

				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Page: &Page{Size: 2, Token: resp.NextPageToken}})
				require.NoError(tt, err)
				assert.Equal(tt, []string{web.DID}, documentIDs(resp.DIDs))
				assert.Empty(tt, resp.NextPageToken)

				// a page that ends exactly on the last match has no next page
				resp, err = didService.ListDIDsPage(ctx, ListDIDsRequest{Page: &Page{Size: 3}})
				require.NoError(tt, err)
				assert.Len(tt, resp.DIDs, 3)
				assert.Empty(tt, resp.NextPageToken)
			})

			t.Run("Delete a DID and its keys", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod})
				require.NoError(tt, err)

				require.NoError(tt, didService.DeleteDID(ctx, created.DID))

				_, err = didService.GetDID(ctx, created.DID)
				assert.ErrorIs(tt, err, ErrNotFound)

				for _, method := range created.Document.EmbeddedVerificationMethods() {
					has, err := keyStore.HasKey(ctx, method.ID)
					assert.NoError(tt, err)
					assert.False(tt, has, method.ID)
				}
				has, err := keyStore.HasKey(ctx, created.KeyID)
				assert.NoError(tt, err)
				assert.False(tt, has)

				// deleting again is a no-op
				assert.NoError(tt, didService.DeleteDID(ctx, created.DID))
				assert.NoError(tt, didService.DeleteDID(ctx, knownKeyDID))
			})
		})
	}
}

func TestResolveDIDKey(t *testing.T) {
	didService, _ := newDIDService(t, testutil.TestDatabases[0].ServiceStorage(t))

	resolved, err := didService.ResolveDID(context.Background(), knownKeyDID)
	require.NoError(t, err)
	assertEd25519Document(t, *resolved)

	require.Len(t, resolved.VerificationMethod, 2)
	signing, keyAgreement := resolved.VerificationMethod[0], resolved.VerificationMethod[1]
	assert.Equal(t, knownKeyDID+"#"+knownKeyFragment, signing.ID)
	assert.Equal(t, did.Base58Material(knownKeyPublicBase58), signing.Material)
	assert.Equal(t, knownKeyDID+"#"+knownKeyAgreementFrag, keyAgreement.ID)
	assert.Equal(t, did.Base58Material(knownX25519KeyBase58), keyAgreement.Material)

	// a second service with its own store derives the same document
	otherService, _ := newDIDService(t, testutil.TestDatabases[0].ServiceStorage(t))
	again, err := otherService.ResolveDID(context.Background(), knownKeyDID+"#"+knownKeyFragment)
	require.NoError(t, err)
	assert.Equal(t, resolved, again)

	_, err = didService.ResolveDID(context.Background(), "did:key:zBadIdentifier")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)

	// an X25519 identifier is not a did:key
	_, err = didService.ResolveDID(context.Background(), "did:key:"+knownKeyAgreementFrag)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	// well formed identifiers whose bytes are not a valid key
	garbage := []byte{0x07, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20}
	for _, alg := range []did.KeyAlgorithm{did.Secp256k1, did.RSA} {
		identifier, err := did.EncodePublicKey(garbage, alg)
		require.NoError(t, err)
		_, err = didService.ResolveDID(context.Background(), "did:key:"+identifier)
		assert.ErrorIs(t, err, ErrMalformedIdentifier, alg.String())
	}
}

func TestUnsupportedMethodTouchesNothing(t *testing.T) {
	db := &countingStorage{ServiceStorage: testutil.TestDatabases[0].ServiceStorage(t)}
	transport := &countingTransport{}
	keyStore := newKeyStore(t, db)
	didService, err := NewDIDService(testDIDConfig("key", "web", "ebsi"), db, keyStore,
		WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	db.calls.Store(0)
	ctx := context.Background()

	_, err = didService.ResolveDID(ctx, "did:bogus:xyz")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = didService.GetDID(ctx, "did:bogus:xyz")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, _, err = didService.LoadOrResolveDID(ctx, "did:bogus:xyz")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = didService.ImportKeys(ctx, "did:bogus:xyz")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	err = didService.DeleteDID(ctx, "did:bogus:xyz")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = didService.CreateDID(ctx, CreateDIDRequest{Method: "bogus"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	assert.Zero(t, db.calls.Load())
	assert.Zero(t, transport.calls.Load())
}

func TestDIDWeb(t *testing.T) {
	for _, test := range testutil.TestDatabases {
		t.Run(test.Name, func(t *testing.T) {
			t.Run("Domain is required", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))

				_, err := didService.CreateDID(context.Background(), CreateDIDRequest{Method: did.WebMethod})
				assert.ErrorIs(tt, err, ErrMissingOption)

				_, err = didService.CreateDID(context.Background(), CreateDIDRequest{
					Method:  did.WebMethod,
					Options: &CreateWebDIDOptions{Domain: " "},
				})
				assert.ErrorIs(tt, err, ErrMissingOption)

				// options of another method are refused
				_, err = didService.CreateDID(context.Background(), CreateDIDRequest{
					Method:  did.WebMethod,
					Options: CreateEBSIDIDOptions{Version: 2},
				})
				assert.Error(tt, err)
			})

			t.Run("Create and resolve a did:web", func(tt *testing.T) {
				defer gock.Off()

				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				gock.InterceptClient(didService.HTTPClient)
				ctx := context.Background()

				created, err := didService.CreateDID(ctx, CreateDIDRequest{
					Method:       did.WebMethod,
					KeyAlgorithm: did.Ed25519,
					Options:      CreateWebDIDOptions{Domain: "example.com:3000", Path: "/user/alice/"},
				})
				require.NoError(tt, err)
				assert.Equal(tt, "did:web:example.com%3A3000:user:alice", created.DID)
				assertEd25519Document(tt, created.Document)

				docBytes, err := did.EncodeDocument(created.Document, false)
				require.NoError(tt, err)
				gock.New("https://example.com:3000").
					Get("/.well-known/user/alice/did.json").
					Reply(200).
					BodyString(string(docBytes))

				resolved, err := didService.ResolveDID(ctx, created.DID)
				assert.NoError(tt, err)
				assert.Equal(tt, created.Document, *resolved)
				assert.True(tt, gock.IsDone())
			})

			t.Run("Web resolution failures are not retried", func(tt *testing.T) {
				defer gock.Off()

				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				gock.InterceptClient(didService.HTTPClient)
				ctx := context.Background()

				gock.New("https://example.com").
					Get("/.well-known/did.json").
					Reply(500)
				gock.New("https://example.com").
					Get("/.well-known/did.json").
					Reply(200).
					BodyString("{}")

				_, err := didService.ResolveDID(ctx, "did:web:example.com")
				assert.ErrorIs(tt, err, ErrTransportFailure)
				assert.True(tt, gock.IsPending())

				// the second mock answers with a document without an id
				_, err = didService.ResolveDID(ctx, "did:web:example.com")
				assert.ErrorIs(tt, err, ErrDecodeFailure)
				assert.True(tt, gock.IsDone())
			})
		})
	}
}

func TestDIDWebUseHTTP(t *testing.T) {
	defer gock.Off()

	db := testutil.TestDatabases[0].ServiceStorage(t)
	cfg := testDIDConfig("web")
	cfg.WebUseHTTP = true
	didService, err := NewDIDService(cfg, db, newKeyStore(t, db))
	require.NoError(t, err)
	gock.InterceptClient(didService.HTTPClient)

	gock.New("http://localhost:8080").
		Get("/.well-known/did.json").
		Reply(200).
		BodyString(`{"id":"did:web:localhost%3A8080"}`)

	resolved, err := didService.ResolveDID(context.Background(), "did:web:localhost%3A8080")
	assert.NoError(t, err)
	assert.Equal(t, "did:web:localhost%3A8080", resolved.ID)
	assert.True(t, gock.IsDone())
}

func TestDIDEBSI(t *testing.T) {
	for _, test := range testutil.TestDatabases {
		t.Run(test.Name, func(t *testing.T) {
			t.Run("Identifier versions", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				for version, expected := range map[int]did.EBSIIdentifierVersion{
					0: did.EBSIVersion1,
					1: did.EBSIVersion1,
					2: did.EBSIVersion2,
					7: did.EBSIVersion1,
				} {
					created, err := didService.CreateDID(ctx, CreateDIDRequest{
						Method:  did.EBSIMethod,
						Options: CreateEBSIDIDOptions{Version: version},
					})
					require.NoError(tt, err)

					didURL, err := did.ParseDIDURL(created.DID)
					require.NoError(tt, err)
					assert.Equal(tt, did.EBSIMethod, didURL.Method)
					gotVersion, err := did.GetEBSIIdentifierVersion(didURL.Identifier)
					assert.NoError(tt, err)
					assert.Equal(tt, expected, gotVersion, "version %d", version)

					key, err := keyStore.GetKey(ctx, created.DID)
					assert.NoError(tt, err)
					assert.Equal(tt, created.KeyID, key.ID)
				}
			})

			t.Run("v2 identifiers are derived from the key", func(tt *testing.T) {
				didService, keyStore := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				keyID, err := keyStore.GenerateKey(ctx, did.Ed25519)
				require.NoError(tt, err)
				publicJWK, err := keyStore.ToJWK(ctx, keyID)
				require.NoError(tt, err)
				identifier, err := did.NewEBSIIdentifierV2(publicJWK)
				require.NoError(tt, err)

				created, err := didService.CreateDID(ctx, CreateDIDRequest{
					Method:  did.EBSIMethod,
					KeyID:   keyID,
					Options: &CreateEBSIDIDOptions{Version: 2},
				})
				require.NoError(tt, err)
				assert.Equal(tt, "did:ebsi:"+identifier, created.DID)
			})

			t.Run("Update overwrites the stored document", func(tt *testing.T) {
				didService, _ := newDIDService(tt, test.ServiceStorage(tt))
				ctx := context.Background()

				created, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.EBSIMethod})
				require.NoError(tt, err)

				updated := created.Document
				updated.AlsoKnownAs = []string{"https://example.com/alice"}
				require.NoError(tt, didService.UpdateEBSIDID(ctx, updated))

				gotDID, err := didService.GetDID(ctx, created.DID)
				assert.NoError(tt, err)
				assert.Equal(tt, updated, *gotDID)

				keyDID, err := didService.CreateDID(ctx, CreateDIDRequest{Method: did.KeyMethod})
				require.NoError(tt, err)
				err = didService.UpdateEBSIDID(ctx, keyDID.Document)
				assert.ErrorIs(tt, err, ErrUnsupportedMethod)
			})
		})
	}
}

func TestDIDEBSIResolveRetries(t *testing.T) {
	id := "did:ebsi:zfEmvX5twhXjQJiCWsukvQA"
	doc := did.Document{Context: did.KnownDIDContext, ID: id}
	docBytes, err := did.EncodeDocument(doc, false)
	require.NoError(t, err)

	t.Run("Succeeds on the fifth attempt", func(tt *testing.T) {
		defer gock.Off()

		didService, _ := newDIDService(tt, testutil.TestDatabases[0].ServiceStorage(tt))
		gock.InterceptClient(didService.HTTPClient)

		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Times(4).
			Reply(503)
		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Reply(200).
			BodyString(string(docBytes))

		resolved, err := didService.ResolveDID(context.Background(), id)
		assert.NoError(tt, err)
		assert.Equal(tt, doc, *resolved)
		assert.True(tt, gock.IsDone())
	})

	t.Run("Gives up after five attempts", func(tt *testing.T) {
		defer gock.Off()

		didService, _ := newDIDService(tt, testutil.TestDatabases[0].ServiceStorage(tt))
		gock.InterceptClient(didService.HTTPClient)

		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Times(5).
			Reply(500)
		// a sixth attempt would succeed
		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Reply(200).
			BodyString(string(docBytes))

		_, err := didService.ResolveDID(context.Background(), id)
		assert.ErrorIs(tt, err, ErrTransportFailure)
		assert.Contains(tt, err.Error(), "5 attempt(s)")
		assert.Len(tt, gock.Pending(), 1)
	})

	t.Run("Not found is retried until the DID is anchored", func(tt *testing.T) {
		defer gock.Off()

		didService, _ := newDIDService(tt, testutil.TestDatabases[0].ServiceStorage(tt))
		gock.InterceptClient(didService.HTTPClient)

		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Times(4).
			Reply(404)
		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Reply(200).
			BodyString(string(docBytes))

		resolved, err := didService.ResolveDID(context.Background(), id)
		assert.NoError(tt, err)
		assert.Equal(tt, doc, *resolved)
		assert.True(tt, gock.IsDone())
	})

	t.Run("Unknown DIDs fail after five attempts", func(tt *testing.T) {
		defer gock.Off()

		didService, _ := newDIDService(tt, testutil.TestDatabases[0].ServiceStorage(tt))
		gock.InterceptClient(didService.HTTPClient)

		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Times(5).
			Reply(404)
		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Reply(200).
			BodyString(string(docBytes))

		_, err := didService.ResolveDID(context.Background(), id)
		assert.ErrorIs(tt, err, ErrNotFound)
		assert.Contains(tt, err.Error(), "5 attempt(s)")
		assert.Len(tt, gock.Pending(), 1)
	})

	t.Run("Attempts are spaced by the configured delay", func(tt *testing.T) {
		db := testutil.TestDatabases[0].ServiceStorage(tt)
		cfg := testDIDConfig("ebsi")
		cfg.EBSI.RetryDelay = 20 * time.Millisecond
		transport := &timingTransport{}
		didService, err := NewDIDService(cfg, db, newKeyStore(tt, db), WithHTTPClient(&http.Client{Transport: transport}))
		require.NoError(tt, err)

		_, err = didService.ResolveDID(context.Background(), id)
		assert.ErrorIs(tt, err, ErrTransportFailure)

		attempts := transport.times()
		require.Len(tt, attempts, 5)
		for i := 1; i < len(attempts); i++ {
			gap := attempts[i].Sub(attempts[i-1])
			assert.GreaterOrEqual(tt, gap, cfg.EBSI.RetryDelay, "gap before attempt %d", i+1)
			assert.Less(tt, gap, cfg.EBSI.RetryDelay+time.Second, "gap before attempt %d", i+1)
		}
	})

	t.Run("Decode failures are not retried", func(tt *testing.T) {
		defer gock.Off()

		didService, _ := newDIDService(tt, testutil.TestDatabases[0].ServiceStorage(tt))
		gock.InterceptClient(didService.HTTPClient)

		gock.New(testRegistryHost).
			Get(testRegistryPath + "/" + id).
			Reply(200).
			BodyString("not a document")

		_, err := didService.ResolveDID(context.Background(), id)
		assert.ErrorIs(tt, err, ErrDecodeFailure)
		assert.True(tt, gock.IsDone())
	})
}

func assertEd25519Document(t *testing.T, doc did.Document) {
	t.Helper()

	require.Len(t, doc.VerificationMethod, 2)
	signing, keyAgreement := doc.VerificationMethod[0], doc.VerificationMethod[1]
	assert.Equal(t, did.Ed25519VerificationKey2019, signing.Type)
	assert.Equal(t, did.X25519KeyAgreementKey2019, keyAgreement.Type)

	for _, rels := range [][]did.VerificationRelationship{doc.Authentication, doc.AssertionMethod} {
		require.Len(t, rels, 1)
		assert.Equal(t, signing.ID, rels[0].ID())
	}
	require.Len(t, doc.KeyAgreement, 1)
	assert.Equal(t, keyAgreement.ID, doc.KeyAgreement[0].ID())
}

func testDIDConfig(methods ...string) config.DIDServiceConfig {
	return config.DIDServiceConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "did"},
		Methods:           methods,
		EBSI: config.EBSIConfig{
			RegistryURL:     testRegistryHost + testRegistryPath,
			ResolveAttempts: 5,
			RetryDelay:      time.Millisecond,
		},
		HTTPTimeout: 5 * time.Second,
	}
}

type filterRequest string

func (f filterRequest) GetFilter() string {
	return string(f)
}

func parseDIDFilter(t *testing.T, expr string) filtering.Filter {
	declarations, err := filtering.NewDeclarations(
		filtering.DeclareFunction(filtering.FunctionEquals,
			filtering.NewFunctionOverload(
				filtering.FunctionOverloadEqualsString, filtering.TypeBool, filtering.TypeString, filtering.TypeString)),
		filtering.DeclareIdent(MethodIdentifier, filtering.TypeString),
		filtering.DeclareIdent(IDIdentifier, filtering.TypeString),
	)
	require.NoError(t, err)
	filter, err := filtering.ParseFilter(filterRequest(expr), declarations)
	require.NoError(t, err)
	return filter
}

func documentIDs(docs []did.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids
}

func newKeyStore(t *testing.T, db storage.ServiceStorage) *keystore.Service {
	keyStore, err := keystore.NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, db)
	require.NoError(t, err)
	return keyStore
}

func newDIDService(t *testing.T, db storage.ServiceStorage, opts ...Option) (*Service, *keystore.Service) {
	keyStore := newKeyStore(t, db)
	didService, err := NewDIDService(testDIDConfig("key", "web", "ebsi"), db, keyStore, opts...)
	require.NoError(t, err)
	require.NotNil(t, didService)
	return didService, keyStore
}

// countingStorage counts every data access.
type countingStorage struct {
	storage.ServiceStorage
	calls atomic.Int64
}

func (c *countingStorage) Write(ctx context.Context, namespace, key string, value []byte) error {
	c.calls.Add(1)
	return c.ServiceStorage.Write(ctx, namespace, key, value)
}

func (c *countingStorage) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	c.calls.Add(1)
	return c.ServiceStorage.Read(ctx, namespace, key)
}

func (c *countingStorage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	c.calls.Add(1)
	return c.ServiceStorage.Exists(ctx, namespace, key)
}

func (c *countingStorage) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	c.calls.Add(1)
	return c.ServiceStorage.ReadAll(ctx, namespace)
}

func (c *countingStorage) Delete(ctx context.Context, namespace, key string) error {
	c.calls.Add(1)
	return c.ServiceStorage.Delete(ctx, namespace, key)
}

type countingTransport struct {
	calls atomic.Int64
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, http.ErrNotSupported
}

// timingTransport records when each request was made and fails all of them.
type timingTransport struct {
	mu       sync.Mutex
	requests []time.Time
}

func (t *timingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, time.Now())
	return nil, http.ErrNotSupported
}

func (t *timingTransport) times() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.requests...)
}
