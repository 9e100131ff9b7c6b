package did

import (
	"context"
	"sort"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/did"
	"github.com/tbd54566975/did-service/pkg/storage"
)

const (
	namespace        = "did"
	createdNamespace = "created"
)

var createdDIDNamespace = storage.MakeNamespace(namespace, createdNamespace)

// Storage persists encoded DID documents by DID string.
type Storage struct {
	db storage.ServiceStorage
}

func NewDIDStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

func (ds *Storage) StoreDID(ctx context.Context, doc did.Document) error {
	if doc.ID == "" {
		return sdkutil.LoggingNewError("could not store DID without an id")
	}
	docBytes, err := did.EncodeDocument(doc, false)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store DID: %s", doc.ID)
	}
	return ds.db.Write(ctx, createdDIDNamespace, doc.ID, docBytes)
}

// GetDID returns nil when the DID is not stored.
func (ds *Storage) GetDID(ctx context.Context, id string) (*did.Document, error) {
	docBytes, err := ds.db.Read(ctx, createdDIDNamespace, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get DID: %s", id)
	}
	if len(docBytes) == 0 {
		return nil, nil
	}
	doc, err := did.DecodeDocument(docBytes)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored DID: %s", id)
	}
	return doc, nil
}

// GetDIDs returns every stored document ordered by DID. Entries that fail to decode are skipped.
func (ds *Storage) GetDIDs(ctx context.Context) ([]did.Document, error) {
	gotDIDs, err := ds.db.ReadAll(ctx, createdDIDNamespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not get DIDs")
	}
	docs := make([]did.Document, 0, len(gotDIDs))
	for id, docBytes := range gotDIDs {
		doc, err := did.DecodeDocument(docBytes)
		if err != nil {
			logrus.WithError(err).Warnf("skipping stored DID: %s", id)
			continue
		}
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// ListDIDs returns the stored documents that include accepts, ordered by DID and starting after the DID
// in pageToken. A positive pageSize caps the result, and the DID of its last entry becomes the next page
// token when more documents match.
func (ds *Storage) ListDIDs(ctx context.Context, include storage.IncludeFunc, pageToken string, pageSize int) ([]did.Document, string, error) {
	docs, err := ds.GetDIDs(ctx)
	if err != nil {
		return nil, "", err
	}
	matched := make([]did.Document, 0, len(docs))
	for _, doc := range docs {
		if pageToken != "" && doc.ID <= pageToken {
			continue
		}
		ok, err := include(filterableDocument(doc))
		if err != nil {
			return nil, "", errors.Wrapf(err, "filtering DID: %s", doc.ID)
		}
		if !ok {
			continue
		}
		if pageSize > 0 && len(matched) == pageSize {
			return matched, matched[len(matched)-1].ID, nil
		}
		matched = append(matched, doc)
	}
	return matched, "", nil
}

type filterableDocument did.Document

func (d filterableDocument) FilterVariablesMap() map[string]any {
	variables := map[string]any{IDIdentifier: d.ID, MethodIdentifier: ""}
	if method, err := did.MethodOf(d.ID); err == nil {
		variables[MethodIdentifier] = method.String()
	}
	return variables
}

func (ds *Storage) DeleteDID(ctx context.Context, id string) error {
	if err := ds.db.Delete(ctx, createdDIDNamespace, id); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete DID: %s", id)
	}
	return nil
}
