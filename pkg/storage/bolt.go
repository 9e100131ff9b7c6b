package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

func init() {
	if err := RegisterStorage(Bolt, func() ServiceStorage { return new(BoltDB) }); err != nil {
		panic(err)
	}
}

const (
	DBFilePrefix                   = "did-service"
	BoltDBFilePathOption OptionKey = "boltdb-filepath-option"
)

type BoltDB struct {
	db   *bolt.DB
	path string
}

// Init instantiates a file-based storage instance for Bolt https://github.com/etcd-io/bbolt
func (b *BoltDB) Init(opts ...Option) error {
	dbFilePath := DBFilePrefix + ".db"
	for _, opt := range opts {
		if opt.ID != BoltDBFilePathOption {
			continue
		}
		path, ok := opt.Option.(string)
		if !ok || path == "" {
			return errors.New("bolt file path option must be a non-empty string")
		}
		dbFilePath = path
	}
	db, err := bolt.Open(dbFilePath, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return errors.Wrapf(err, "opening bolt db<%s>", dbFilePath)
	}
	b.db = db
	b.path = dbFilePath
	return nil
}

func (b *BoltDB) Type() Type {
	return Bolt
}

func (b *BoltDB) URI() string {
	return b.path
}

func (b *BoltDB) IsOpen() bool {
	return b.db != nil
}

func (b *BoltDB) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *BoltDB) Write(_ context.Context, namespace string, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

func (b *BoltDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		// values are only valid for the life of the transaction
		if value := bucket.Get([]byte(key)); value != nil {
			result = append([]byte{}, value...)
		}
		return nil
	})
	return result, err
}

func (b *BoltDB) Exists(_ context.Context, namespace, key string) (bool, error) {
	exists := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		exists = bucket.Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

func (b *BoltDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	return b.ReadPrefix(ctx, namespace, "")
}

func (b *BoltDB) ReadPrefix(_ context.Context, namespace, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		cursor := bucket.Cursor()
		p := []byte(prefix)
		for k, v := cursor.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = cursor.Next() {
			result[string(k)] = append([]byte{}, v...)
		}
		return nil
	})
	return result, err
}

func (b *BoltDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (b *BoltDB) Delete(_ context.Context, namespace, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltDB) DeleteNamespace(_ context.Context, namespace string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(namespace)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return errors.Wrapf(err, "could not delete namespace<%s>", namespace)
		}
		return nil
	})
}
