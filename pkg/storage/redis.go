package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := RegisterStorage(Redis, func() ServiceStorage { return new(RedisDB) }); err != nil {
		panic(err)
	}
}

const (
	RedisScanBatchSize = 1000

	RedisAddressOption OptionKey = "redis-address-option"
	PasswordOption     OptionKey = "storage-password"
)

type RedisDB struct {
	db *goredislib.Client
}

func (b *RedisDB) Init(opts ...Option) error {
	address, password, err := processRedisOptions(opts...)
	if err != nil {
		return err
	}
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     address,
		Password: password,
	})
	if err = redisotel.InstrumentTracing(client); err != nil {
		return errors.Wrap(err, "instrumenting redis client")
	}
	b.db = client
	return nil
}

func processRedisOptions(opts ...Option) (address, password string, err error) {
	for _, opt := range opts {
		switch opt.ID {
		case RedisAddressOption:
			maybeAddress, ok := opt.Option.(string)
			if !ok || maybeAddress == "" {
				return "", "", errors.New("redis address must be a non-empty string")
			}
			address = maybeAddress
		case PasswordOption:
			maybePassword, ok := opt.Option.(string)
			if !ok {
				return "", "", errors.New("redis password must be a string")
			}
			password = maybePassword
		}
	}
	if address == "" {
		return "", "", errors.New("redis address option is required")
	}
	return address, password, nil
}

func (b *RedisDB) URI() string {
	return b.db.Options().Addr
}

func (b *RedisDB) IsOpen() bool {
	if err := b.db.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Error("pinging redis")
		return false
	}
	return true
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	// Zero expiration means the key has no expiration time.
	return b.db.Set(ctx, Join(namespace, key), value, 0).Err()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	res, err := b.db.Get(ctx, Join(namespace, key)).Bytes()
	if errors.Is(err, goredislib.Nil) {
		return nil, nil
	}
	return res, err
}

func (b *RedisDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.db.Exists(ctx, Join(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	return b.ReadPrefix(ctx, namespace, "")
}

func (b *RedisDB) ReadPrefix(ctx context.Context, namespace, prefix string) (map[string][]byte, error) {
	keys, err := b.scan(ctx, Join(namespace, prefix))
	if err != nil {
		return nil, errors.Wrap(err, "read all keys error")
	}
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := b.db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "getting multiple keys")
	}
	if len(keys) != len(values) {
		return nil, errors.New("key length does not match value length")
	}
	for i, val := range values {
		// the key may have been deleted between the scan and the get
		s, ok := val.(string)
		if !ok {
			continue
		}
		result[strings.TrimPrefix(keys[i], Join(namespace, ""))] = []byte(s)
	}
	return result, nil
}

func (b *RedisDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := b.scan(ctx, Join(namespace, ""))
	if err != nil {
		return nil, errors.Wrap(err, "read all keys error")
	}
	for i := range keys {
		keys[i] = strings.TrimPrefix(keys[i], Join(namespace, ""))
	}
	return keys, nil
}

func (b *RedisDB) scan(ctx context.Context, match string) ([]string, error) {
	var cursor uint64
	allKeys := make([]string, 0)
	for {
		keys, nextCursor, err := b.db.Scan(ctx, cursor, escapeGlob(match)+"*", RedisScanBatchSize).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scan error")
		}
		allKeys = append(allKeys, keys...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return allKeys, nil
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	return b.db.Del(ctx, Join(namespace, key)).Err()
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := b.scan(ctx, Join(namespace, ""))
	if err != nil {
		return errors.Wrap(err, "read all keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return b.db.Del(ctx, keys...).Err()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob keeps DIDs and other user supplied keys from being read as SCAN patterns.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
