package storage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/redis"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisStore keeps blobs as Redis string values under "<prefix>:blob:<id>".
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a store. lockTTL bounds how long a crashed writer
// keeps the lock; live leases renew at a third of it.
func NewRedisStore(client *redis.Client, prefix string, lockTTL time.Duration) *RedisStore {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    lockTTL,
		logger: slog.Default().With("component", "redis-store"),
	}
}

func (s *RedisStore) blobKey(id string) string {
	return s.prefix + ":blob:" + id
}

func (s *RedisStore) Put(ctx context.Context, id string, data []byte) error {
	return storageErr("put", id, s.client.Set(ctx, s.blobKey(id), data, 0))
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.GetBytes(ctx, s.blobKey(id))
	if redis.IsNilError(err) {
		return nil, notFound("get", id)
	}
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return storageErr("delete", id, s.client.Del(ctx, s.blobKey(id)))
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.client.Keys(ctx, s.blobKey(prefix)+"*")
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}
	base := s.blobKey("")
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, base))
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock acquires "<prefix>:lock:<name>" with SET NX PX and renews it in the
// background until released.
func (s *RedisStore) Lock(ctx context.Context, name, owner string) (Lease, error) {
	key := s.prefix + ":lock:" + name
	ok, err := s.client.SetNX(ctx, key, owner, s.ttl)
	if err != nil {
		return nil, storageErr("lock", name, err)
	}
	if !ok {
		return nil, lockConflict(name)
	}
	renewCtx, cancel := context.WithCancel(context.Background())
	l := &redisLease{store: s, key: key, owner: owner, cancel: cancel, done: make(chan struct{})}
	go l.renew(renewCtx)
	return l, nil
}

type redisLease struct {
	store  *RedisStore
	key    string
	owner  string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (l *redisLease) renew(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.store.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := l.store.client.Run(ctx, renewScript, []string{l.key}, l.owner, l.store.ttl.Milliseconds())
			if err != nil {
				l.store.logger.Warn("lock renewal failed", "key", l.key, "error", err)
				continue
			}
			if n, _ := res.(int64); n == 0 {
				l.store.logger.Error("lock lost", "key", l.key)
				return
			}
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()
		<-l.done
		_, rerr := l.store.client.Run(ctx, releaseScript, []string{l.key}, l.owner)
		err = storageErr("unlock", l.key, rerr)
	})
	return err
}
