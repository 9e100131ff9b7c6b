package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"strings"

	// We include the postresql driver in our implementation, so users can pick "postgres" via configuration.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := RegisterStorage(DatabaseSQL, func() ServiceStorage { return new(SQLDB) }); err != nil {
		panic(err)
	}
}

const (
	SQLConnectionString OptionKey = "sql-connection-string-option"
	SQLDriverName       OptionKey = "sql-driver-name-option"

	createKeyValuesTable = `CREATE TABLE IF NOT EXISTS key_values (
    key varchar PRIMARY KEY,
    value varchar
);`
)

// SQLDB stores every namespace in a single key_values table keyed by namespace:key.
type SQLDB struct {
	db               *sql.DB
	connectionString string
}

func (s *SQLDB) Init(opts ...Option) error {
	connString, sqlDriverName, err := processSQLOptions(opts...)
	if err != nil {
		return err
	}
	s.connectionString = connString

	db, err := sql.Open(sqlDriverName, connString)
	if err != nil {
		return errors.Wrap(err, "opening sql db")
	}
	if _, err = db.Exec(createKeyValuesTable); err != nil {
		return errors.Wrap(err, "creating key_values table")
	}
	s.db = db
	return nil
}

func processSQLOptions(opts ...Option) (connString string, sqlDriverName string, err error) {
	for _, opt := range opts {
		switch opt.ID {
		case SQLConnectionString:
			maybeConnString, ok := opt.Option.(string)
			if !ok {
				err = errors.New("sql connection string must be a string")
				return
			}
			connString = maybeConnString
		case SQLDriverName:
			maybeDriverName, ok := opt.Option.(string)
			if !ok {
				err = errors.New("sql driver name must be a string")
				return
			}
			sqlDriverName = maybeDriverName
		}
	}
	if len(connString) == 0 || len(sqlDriverName) == 0 {
		err = errors.New("sql connection string and driver name must not be empty")
		return
	}
	return connString, sqlDriverName, nil
}

func (s *SQLDB) Type() Type {
	return DatabaseSQL
}

func (s *SQLDB) URI() string {
	return s.connectionString
}

func (s *SQLDB) IsOpen() bool {
	if err := s.db.Ping(); err != nil {
		logrus.WithError(err).Error("pinging db")
		return false
	}
	return true
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO key_values (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		Join(namespace, key), base64.RawStdEncoding.EncodeToString(value))
	return err
}

func (s *SQLDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	r := s.db.QueryRowContext(ctx, "SELECT value FROM key_values WHERE key = $1", Join(namespace, key))
	var value string
	if err := r.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return base64.RawStdEncoding.DecodeString(value)
}

func (s *SQLDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM key_values WHERE key = $1)", Join(namespace, key)).Scan(&exists)
	return exists, err
}

func (s *SQLDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	return s.ReadPrefix(ctx, namespace, "")
}

func (s *SQLDB) ReadPrefix(ctx context.Context, namespace, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM key_values WHERE key LIKE $1", likePrefix(Join(namespace, prefix)))
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	result := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		decoded, err := base64.RawStdEncoding.DecodeString(value)
		if err != nil {
			return nil, err
		}
		result[strings.TrimPrefix(key, Join(namespace, ""))] = decoded
	}
	return result, rows.Err()
}

func (s *SQLDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM key_values WHERE key LIKE $1", likePrefix(Join(namespace, "")))
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, strings.TrimPrefix(key, Join(namespace, "")))
	}
	return keys, rows.Err()
}

func (s *SQLDB) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE key = $1", Join(namespace, key))
	return err
}

func (s *SQLDB) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE key LIKE $1", likePrefix(Join(namespace, "")))
	return err
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeReplacer.Replace(prefix) + "%"
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logrus.WithError(err).Error("closing rows")
	}
}
