// Package indexer owns an index's committed state. An Index publishes
// immutable snapshots through an atomic pointer; a single Writer mutates a
// private working set and commits it through the storage backend; Readers
// pin a snapshot until they are closed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/resilience"
)

type Index struct {
	backend  storage.Backend
	opts     Options
	analyzer *analysis.PerField
	logger   *slog.Logger

	current    atomic.Pointer[snapshot]
	writerHeld atomic.Bool
	closed     atomic.Bool

	// mu guards segs and serialises snapshot publication.
	mu   sync.Mutex
	segs map[string]*segRef
}

// Open loads the committed state of the index stored in backend. A nil
// backend keeps the index in memory.
func Open(ctx context.Context, backend storage.Backend, opts Options) (*Index, error) {
	if opts.Schema == nil {
		return nil, fmt.Errorf("index schema is required: %w", apperrors.ErrInvalidInput)
	}
	opts = opts.withDefaults()
	if backend == nil {
		backend = storage.NewMemoryStore()
	}
	analyzer, err := opts.analyzer()
	if err != nil {
		return nil, err
	}
	idx := &Index{
		backend:  backend,
		opts:     opts,
		analyzer: analyzer,
		logger:   opts.Logger.With("component", "indexer"),
		segs:     make(map[string]*segRef),
	}
	idx.current.Store(newSnapshot(0, 0, nil))
	if _, err := idx.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	return idx, nil
}

func (idx *Index) Schema() *document.Schema { return idx.opts.Schema }

// Analyzer is the per-field analyzer used at index time. Query parsers
// should analyze text with it.
func (idx *Index) Analyzer() *analysis.PerField { return idx.analyzer }

// Generation is the generation of the published snapshot.
func (idx *Index) Generation() uint64 { return idx.current.Load().generation }

// Refresh publishes the stored manifest when it is newer than the current
// snapshot. It lets a process that does not own the writer observe commits
// made elsewhere. It reports whether a new snapshot was published.
func (idx *Index) Refresh(ctx context.Context) (bool, error) {
	if idx.closed.Load() {
		return false, apperrors.ErrClosed
	}
	var snap *snapshot
	cfg := idx.opts.Retry
	// A concurrent commit may delete a segment listed by the manifest we
	// just read; reading the manifest again resolves it.
	cfg.Retryable = func(err error) bool { return errors.Is(err, apperrors.ErrNotFound) }
	err := resilience.Retry(ctx, "index refresh", cfg, func() error {
		m, err := idx.readManifest(ctx)
		if err != nil {
			return err
		}
		if m.Generation <= idx.Generation() {
			return nil
		}
		snap, err = idx.load(ctx, m)
		return err
	})
	if err != nil || snap == nil {
		return false, err
	}
	published := idx.publish(snap)
	if published {
		idx.logger.Info("index refreshed", "generation", snap.generation, "segments", len(snap.views))
	}
	return published, nil
}

// load decodes the segments listed by m, reusing those already in memory,
// and builds a snapshot from them.
func (idx *Index) load(ctx context.Context, m *manifest) (*snapshot, error) {
	refs := make([]*segRef, len(m.Segments))
	views := make([]view, len(m.Segments))
	release := func() {
		for _, r := range refs {
			if r != nil {
				r.ref.Release()
			}
		}
	}

	for i, ms := range m.Segments {
		live, err := decodeLive(ms.Live, ms.MaxDoc)
		if err != nil {
			return nil, apperrors.Storage("decode", ms.ID, err)
		}
		views[i].live = live
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, ms := range m.Segments {
		if r := idx.cachedSegRef(ms.ID); r != nil {
			refs[i] = r
			continue
		}
		g.Go(func() error {
			data, err := idx.backend.Get(gctx, blobKey(ms.ID))
			if err != nil {
				return err
			}
			seg, err := segment.Decode(data)
			if err != nil {
				return apperrors.Storage("decode", ms.ID, err)
			}
			if seg.MaxDoc() != ms.MaxDoc || seg.ID() != ms.ID {
				return apperrors.Storage("decode", ms.ID,
					fmt.Errorf("segment %s/%d does not match manifest %s/%d", seg.ID(), seg.MaxDoc(), ms.ID, ms.MaxDoc))
			}
			refs[i] = idx.newSegRef(seg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		release()
		return nil, err
	}

	for i := range views {
		views[i].ref = refs[i]
	}
	snap := newSnapshot(m.Generation, m.NextSegment, views)
	release()
	return snap, nil
}

// publish installs snap if it is newer than the current snapshot and drops
// the index's reference to the one it replaces. A stale snap is released.
func (idx *Index) publish(snap *snapshot) bool {
	idx.mu.Lock()
	old := idx.current.Load()
	if idx.closed.Load() || snap.generation <= old.generation {
		idx.mu.Unlock()
		snap.ref.Release()
		return false
	}
	idx.current.Store(snap)
	idx.mu.Unlock()

	old.ref.Release()
	idx.opts.Metrics.Snapshot(len(snap.views), snap.leaves.NumDocs())
	return true
}

// acquire pins the current snapshot. It retries when a commit swaps the
// pointer between the load and the acquire.
func (idx *Index) acquire() (*snapshot, error) {
	for {
		if idx.closed.Load() {
			return nil, apperrors.ErrClosed
		}
		s := idx.current.Load()
		if s.ref.TryAcquire() {
			return s, nil
		}
	}
}

// OpenReader returns a Reader over the current snapshot.
func (idx *Index) OpenReader() (*Reader, error) {
	s, err := idx.acquire()
	if err != nil {
		return nil, err
	}
	return &Reader{idx: idx, snap: s}, nil
}

// Reopen returns a Reader over the current snapshot when it is newer than
// r's, otherwise r itself. The caller still owns r.
func (idx *Index) Reopen(r *Reader) (*Reader, error) {
	if r != nil && r.Generation() >= idx.Generation() {
		return r, nil
	}
	return idx.OpenReader()
}

// OpenWriter takes the exclusive writer lease. A second writer, in this
// process or another process sharing a Locker backend, fails with
// ErrWriterLockConflict until the first is closed.
func (idx *Index) OpenWriter(ctx context.Context) (*Writer, error) {
	if idx.closed.Load() {
		return nil, apperrors.ErrClosed
	}
	if !idx.writerHeld.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("index writer already open: %w", apperrors.ErrWriterLockConflict)
	}
	var lease storage.Lease
	if locker, ok := idx.backend.(storage.Locker); ok {
		l, err := locker.Lock(ctx, idx.opts.LockName, idx.opts.Owner)
		if err != nil {
			idx.writerHeld.Store(false)
			return nil, err
		}
		lease = l
	}
	fail := func(err error) (*Writer, error) {
		if lease != nil {
			lease.Release(context.WithoutCancel(ctx))
		}
		idx.writerHeld.Store(false)
		return nil, err
	}

	// Another process may have committed since this index last loaded.
	if _, err := idx.Refresh(ctx); err != nil {
		return fail(err)
	}
	snap, err := idx.acquire()
	if err != nil {
		return fail(err)
	}
	defer snap.ref.Release()

	w := newWriter(idx, snap, lease)
	idx.removeOrphans(ctx, snap)
	idx.logger.Info("writer opened", "owner", idx.opts.Owner, "generation", snap.generation)
	return w, nil
}

// removeOrphans deletes segment blobs that no manifest references, left
// behind by commits that failed after writing segments.
func (idx *Index) removeOrphans(ctx context.Context, snap *snapshot) {
	ids, err := idx.backend.List(ctx, segmentPrefix)
	if err != nil {
		idx.logger.Warn("listing segments failed", "error", err)
		return
	}
	live := snap.segmentIDs()
	for _, key := range ids {
		id, ok := strings.CutSuffix(key, segment.FileExt)
		if !ok || live[id] {
			continue
		}
		if err := idx.backend.Delete(ctx, key); err != nil {
			idx.logger.Warn("deleting orphan segment failed", "blob", key, "error", err)
			continue
		}
		idx.logger.Info("orphan segment deleted", "blob", key)
	}
}

func (idx *Index) put(ctx context.Context, key string, data []byte) error {
	return resilience.Retry(ctx, "put "+key, idx.opts.Retry, func() error {
		return idx.backend.Put(ctx, key, data)
	})
}

// Close drops the index's reference to the current snapshot. Open readers
// stay valid until they are closed; new readers and writers are refused.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	idx.mu.Lock()
	cur := idx.current.Load()
	idx.mu.Unlock()
	cur.ref.Release()
	return nil
}
