package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// PostgresStore keeps blobs in a table (id text primary key, data bytea).
// Locks are session-level advisory locks held on a dedicated connection.
type PostgresStore struct {
	db    *sql.DB
	table string
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = "segments"
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the blob table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data BYTEA NOT NULL)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return storageErr("init", s.table, err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, id string, data []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, s.table)
	_, err := s.db.ExecContext(ctx, q, id, data)
	return storageErr("put", id, err)
}

func (s *PostgresStore) Get(ctx context.Context, id string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.table)
	var data []byte
	err := s.db.QueryRowContext(ctx, q, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get", id)
	}
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return data, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	_, err := s.db.ExecContext(ctx, q, id)
	return storageErr("delete", id, err)
}

func (s *PostgresStore) List(ctx context.Context, prefix string) ([]string, error) {
	q := fmt.Sprintf(`SELECT id FROM %s WHERE id LIKE $1 ESCAPE '\' ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, q, likeEscape(prefix)+"%")
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("list", prefix, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", prefix, err)
	}
	return ids, nil
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func advisoryKey(table, name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(table))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// Lock takes pg_try_advisory_lock on a connection reserved for the lease.
func (s *PostgresStore) Lock(ctx context.Context, name, _ string) (Lease, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, storageErr("lock", name, err)
	}
	key := advisoryKey(s.table, name)
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Close()
		return nil, storageErr("lock", name, err)
	}
	if !ok {
		conn.Close()
		return nil, lockConflict(name)
	}
	return &pgLease{conn: conn, key: key, name: name}, nil
}

type pgLease struct {
	conn *sql.Conn
	key  int64
	name string
	once sync.Once
}

func (l *pgLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		_, uerr := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
		cerr := l.conn.Close()
		err = storageErr("unlock", l.name, errors.Join(uerr, cerr))
	})
	return err
}
