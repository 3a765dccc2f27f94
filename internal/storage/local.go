package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const tmpSuffix = ".tmp"

// LocalStore keeps each blob as a file under root. Writes go to a temp file
// that is synced and renamed into place.
type LocalStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*os.File
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, storageErr("init", root, err)
	}
	return &LocalStore{root: root, locks: make(map[string]*os.File)}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return filepath.Join(s.root, id), nil
}

func (s *LocalStore) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storageErr("put", id, err)
	}
	finalPath, err := s.path(id)
	if err != nil {
		return storageErr("put", id, err)
	}
	tmpPath := finalPath + tmpSuffix
	if err := writeSynced(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return storageErr("put", id, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return storageErr("put", id, fmt.Errorf("renaming blob file: %w", err))
	}
	if err := syncDir(s.root); err != nil {
		return storageErr("put", id, err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp blob file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing blob file: %w", err)
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing directory: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get", id, err)
	}
	p, err := s.path(id)
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("get", id)
	}
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return storageErr("delete", id, err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete", id, err)
	}
	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, tmpSuffix) || strings.HasSuffix(name, lockSuffix) {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

const lockSuffix = ".lock"

// Lock takes an exclusive advisory lock on <root>/<name>.lock. The lock is
// held by the process; a second Lock on the same store and name conflicts.
func (s *LocalStore) Lock(_ context.Context, name, owner string) (Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[name]; held {
		return nil, lockConflict(name)
	}
	p := filepath.Join(s.root, name+lockSuffix)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, storageErr("lock", name, err)
	}
	if err := tryLockFile(f); err != nil {
		f.Close()
		if errors.Is(err, errLockHeld) {
			return nil, lockConflict(name)
		}
		return nil, storageErr("lock", name, err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(owner+"\n"), 0)
	}
	s.locks[name] = f
	return &localLease{store: s, name: name}, nil
}

type localLease struct {
	store *LocalStore
	name  string
	once  sync.Once
}

func (l *localLease) Release(context.Context) error {
	var err error
	l.once.Do(func() {
		l.store.mu.Lock()
		defer l.store.mu.Unlock()
		f, ok := l.store.locks[l.name]
		if !ok {
			return
		}
		delete(l.store.locks, l.name)
		if uerr := unlockFile(f); uerr != nil {
			err = storageErr("unlock", l.name, uerr)
		}
		f.Close()
	})
	return err
}
