package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// entry is one segment of the writer's working set. live is shared with
// the published snapshot until the first deletion clones it.
type entry struct {
	ref     *segRef
	live    *roaring.Bitmap
	owned   bool
	pending bool
}

// Writer buffers additions and deletions against a private working set and
// publishes it on Commit. It is safe for concurrent use.
type Writer struct {
	idx    *Index
	lease  storage.Lease
	logger *slog.Logger

	mu          sync.Mutex
	buf         *index.MemoryIndex
	entries     []*entry
	nextSegment uint64
	// obsolete lists committed segments dropped from the working set.
	// Their blobs are deleted once a manifest without them is published.
	obsolete []string
	dirty    bool
	closed   bool
}

func newWriter(idx *Index, snap *snapshot, lease storage.Lease) *Writer {
	w := &Writer{
		idx:    idx,
		lease:  lease,
		logger: idx.logger.With("owner", idx.opts.Owner),
		buf:    index.NewMemoryIndex(idx.opts.Schema, idx.analyzer),
	}
	w.resetTo(snap)
	return w
}

// resetTo rebuilds the working set from snap, dropping every change.
func (w *Writer) resetTo(snap *snapshot) {
	for _, e := range w.entries {
		e.ref.ref.Release()
	}
	w.entries = w.entries[:0]
	for _, v := range snap.views {
		v.ref.ref.Acquire()
		w.entries = append(w.entries, &entry{ref: v.ref, live: v.live})
	}
	w.nextSegment = max(w.nextSegment, snap.nextSegment)
	w.obsolete = nil
	w.dirty = false
	w.buf.Reset()
}

func (w *Writer) check() error {
	if w.closed {
		return fmt.Errorf("index writer: %w", apperrors.ErrClosed)
	}
	return nil
}

// AddDocument validates doc against the schema and buffers it. The
// returned id is the doc's position in the writer's working view, which is
// also its reader doc id after the next commit unless a merge or a
// DeleteAll intervenes. Segments whose docs are all deleted keep their
// place in the doc id space until a merge rewrites them.
func (w *Writer) AddDocument(doc document.Document) (int, error) {
	if err := w.idx.opts.Schema.Validate(doc); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return 0, err
	}
	return w.addLocked(doc), nil
}

func (w *Writer) addLocked(doc document.Document) int {
	local, recovered := w.buf.AddDocument(doc)
	for _, field := range recovered {
		w.logger.Warn("analyzer failed, field indexed as empty", "field", field)
	}
	w.idx.opts.Metrics.DocIndexed()
	w.dirty = true
	id := w.maxDocEntries() + int(local)

	opts := w.idx.opts
	if w.buf.DocCount() >= opts.MaxBufferedDocs ||
		(opts.MaxBufferedBytes > 0 && w.buf.Size() >= opts.MaxBufferedBytes) {
		w.flushLocked()
	}
	return id
}

// UpdateDocument deletes the docs matching term and adds doc in their
// place.
func (w *Writer) UpdateDocument(ctx context.Context, term index.Term, doc document.Document) (int, error) {
	if err := w.idx.opts.Schema.Validate(doc); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return 0, err
	}
	if _, err := w.deleteLocked(ctx, query.NewTerm(term.Field, term.Text)); err != nil {
		return 0, err
	}
	return w.addLocked(doc), nil
}

// DeleteTerm deletes every doc whose field contains text.
func (w *Writer) DeleteTerm(ctx context.Context, field, text string) (int, error) {
	return w.DeleteDocuments(ctx, query.NewTerm(field, text))
}

// DeleteDocuments marks the live docs matching q deleted and returns how
// many were newly deleted. Buffered docs are flushed first so they are
// visible to q.
func (w *Writer) DeleteDocuments(ctx context.Context, q query.Query) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return 0, err
	}
	return w.deleteLocked(ctx, q)
}

func (w *Writer) deleteLocked(ctx context.Context, q query.Query) (int, error) {
	w.flushLocked()
	leaves := w.leaves()
	weight, err := q.CreateWeight(leaves)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i, leaf := range leaves {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		s := weight.Scorer(leaf)
		if s == nil {
			continue
		}
		var docs []uint32
		for d := s.Next(); d != query.NoMoreDocs; d = s.Next() {
			docs = append(docs, uint32(d))
		}
		if len(docs) == 0 {
			continue
		}
		e := w.entries[i]
		if !e.owned {
			e.live = e.live.Clone()
			e.owned = true
		}
		for _, d := range docs {
			if e.live.CheckedRemove(d) {
				deleted++
			}
		}
	}
	if deleted > 0 {
		w.dirty = true
		w.idx.opts.Metrics.DocsDeleted(deleted)
		w.logger.Debug("documents deleted", "query", q.String(), "count", deleted)
	}
	return deleted, nil
}

// DeleteAll drops every document, buffered or committed.
func (w *Writer) DeleteAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return err
	}
	deleted := w.buf.DocCount()
	w.buf.Reset()
	for _, e := range w.entries {
		deleted += int(e.live.GetCardinality())
		w.dropEntry(e)
	}
	w.entries = nil
	w.dirty = true
	w.idx.opts.Metrics.DocsDeleted(deleted)
	w.logger.Info("all documents deleted", "count", deleted)
	return nil
}

// dropEntry removes e from the index's future: a committed segment's blob
// becomes obsolete, a pending one is simply forgotten.
func (w *Writer) dropEntry(e *entry) {
	if !e.pending {
		w.obsolete = append(w.obsolete, e.ref.seg.ID())
	}
	e.ref.ref.Release()
}

// flushLocked seals the buffer into a pending segment.
func (w *Writer) flushLocked() {
	if w.buf.DocCount() == 0 {
		return
	}
	start := time.Now()
	w.nextSegment++
	seg := segment.New(segmentID(w.nextSegment), w.buf.Snapshot())
	w.buf.Reset()
	w.entries = append(w.entries, &entry{
		ref:     w.idx.newSegRef(seg),
		live:    segment.AllLive(seg),
		owned:   true,
		pending: true,
	})
	w.idx.opts.Metrics.Flush("ok")
	w.logger.Info("segment flushed",
		"segment", seg.ID(),
		"terms", seg.TermCount(),
		"docs", seg.MaxDoc(),
		"bytes", seg.SizeBytes(),
		"took", time.Since(start),
		"active_segments", len(w.entries),
	)
}

// Flush seals buffered documents into a pending segment without
// committing.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return err
	}
	w.flushLocked()
	return nil
}

func (w *Writer) leaves() segment.Leaves {
	leaves := make(segment.Leaves, len(w.entries))
	docBase := 0
	for i, e := range w.entries {
		leaves[i] = segment.NewLeaf(e.ref.seg, e.live, docBase)
		docBase += leaves[i].MaxDoc()
	}
	return leaves
}

func (w *Writer) maxDocEntries() int {
	n := 0
	for _, e := range w.entries {
		n += e.ref.seg.MaxDoc()
	}
	return n
}

// NumDocs counts live docs in the working view, buffered docs included.
func (w *Writer) NumDocs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.buf.DocCount()
	for _, e := range w.entries {
		n += int(e.live.GetCardinality())
	}
	return n
}

// MaxDoc counts every doc in the working view, deleted ones included.
func (w *Writer) MaxDoc() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxDocEntries() + w.buf.DocCount()
}

// HasUncommittedChanges reports whether Commit would publish anything.
func (w *Writer) HasUncommittedChanges() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// ForceMerge merges the working set down to at most maxSegments segments
// and rewrites any remaining segment that carries deletions. The result is
// published by the next Commit.
func (w *Writer) ForceMerge(ctx context.Context, maxSegments int) error {
	if maxSegments < 1 {
		return fmt.Errorf("max segments %d: %w", maxSegments, apperrors.ErrInvalidInput)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return err
	}
	w.flushLocked()
	if len(w.entries) > maxSegments {
		w.mergeRange(maxSegments-1, len(w.entries))
	}
	for i := 0; i < len(w.entries); {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := w.entries[i]
		if int(e.live.GetCardinality()) < e.ref.seg.MaxDoc() {
			// the rewritten entry, if any, lands at i and has no deletions
			w.mergeRange(i, i+1)
			continue
		}
		i++
	}
	return nil
}

// mergeRange replaces entries[from:to] by a single merged segment. The
// relative order of surviving docs is kept.
func (w *Writer) mergeRange(from, to int) {
	start := time.Now()
	leaves := w.leaves()[from:to]
	w.nextSegment++
	merged := segment.Merge(segmentID(w.nextSegment), leaves)

	var ids []string
	for _, e := range w.entries[from:to] {
		ids = append(ids, e.ref.seg.ID())
		w.dropEntry(e)
	}
	rest := append([]*entry{}, w.entries[to:]...)
	w.entries = w.entries[:from]
	if merged.MaxDoc() > 0 {
		w.entries = append(w.entries, &entry{
			ref:     w.idx.newSegRef(merged),
			live:    segment.AllLive(merged),
			owned:   true,
			pending: true,
		})
	}
	w.entries = append(w.entries, rest...)
	w.dirty = true
	w.idx.opts.Metrics.Merge()
	w.logger.Info("segments merged",
		"sources", ids,
		"segment", merged.ID(),
		"docs", merged.MaxDoc(),
		"took", time.Since(start),
	)
}

// Commit flushes the buffer, persists new segments and the manifest, and
// publishes the working set as a new snapshot. On a storage error nothing
// is published and the pending changes are kept for a later Commit.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return err
	}
	if !w.dirty {
		return nil
	}
	start := time.Now()
	w.flushLocked()
	if t := w.idx.opts.MergeThreshold; t > 0 && len(w.entries) > t {
		w.mergeRange(0, len(w.entries))
	}

	gen, err := w.persist(ctx)
	if err != nil {
		w.idx.opts.Metrics.Commit("error", time.Since(start))
		w.logger.Error("commit failed", "error", err)
		return fmt.Errorf("commit: %w", err)
	}

	views := make([]view, len(w.entries))
	for i, e := range w.entries {
		views[i] = view{ref: e.ref, live: e.live}
		e.owned = false
		e.pending = false
	}
	snap := newSnapshot(gen, w.nextSegment, views)
	if !w.idx.publish(snap) {
		w.logger.Warn("commit not published", "generation", gen)
	}

	obsolete := w.obsolete
	w.obsolete = nil
	w.dirty = false
	for _, id := range obsolete {
		if err := w.idx.backend.Delete(ctx, blobKey(id)); err != nil {
			w.logger.Warn("deleting obsolete segment failed", "segment", id, "error", err)
		}
	}

	w.idx.opts.Metrics.Commit("ok", time.Since(start))
	w.logger.Info("commit published",
		"generation", gen,
		"segments", len(views),
		"live_docs", snap.leaves.NumDocs(),
		"took", time.Since(start),
	)
	return nil
}

// persist writes pending segments, then the manifest. It returns the new
// generation.
func (w *Writer) persist(ctx context.Context) (uint64, error) {
	compression := w.idx.opts.Compression
	m := &manifest{
		Version:     manifestVersion,
		Generation:  w.idx.Generation() + 1,
		NextSegment: w.nextSegment,
		CommittedAt: time.Now().UTC(),
	}
	for _, e := range w.entries {
		seg := e.ref.seg
		if e.pending {
			data, err := segment.Encode(seg, compression)
			if err != nil {
				return 0, err
			}
			if err := w.idx.put(ctx, blobKey(seg.ID()), data); err != nil {
				return 0, err
			}
		}
		live, err := encodeLive(e.live, seg.MaxDoc())
		if err != nil {
			return 0, fmt.Errorf("encoding live docs of %s: %w", seg.ID(), err)
		}
		m.Segments = append(m.Segments, manifestSegment{ID: seg.ID(), MaxDoc: seg.MaxDoc(), Live: live})
	}
	if err := w.idx.writeManifest(ctx, m); err != nil {
		return 0, err
	}
	return m.Generation, nil
}

// Rollback discards every change since the last commit.
func (w *Writer) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(); err != nil {
		return err
	}
	snap, err := w.idx.acquire()
	if err != nil {
		return err
	}
	defer snap.ref.Release()
	w.resetTo(snap)
	w.logger.Info("writer rolled back", "generation", snap.generation)
	return nil
}

// StartCommitLoop commits every interval while there are uncommitted
// changes, and once more when ctx is done. onCommit, when set, is called
// after each successful commit with the published generation.
func (w *Writer) StartCommitLoop(ctx context.Context, interval time.Duration, onCommit func(context.Context, uint64)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	commit := func(ctx context.Context) {
		if !w.HasUncommittedChanges() {
			return
		}
		if err := w.Commit(ctx); err != nil {
			w.logger.Error("periodic commit failed", "error", err)
			return
		}
		if onCommit != nil {
			onCommit(ctx, w.idx.Generation())
		}
	}
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("commit loop stopping, performing final commit")
				commit(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				commit(ctx)
			}
		}
	}()
	return done
}

// Close releases the writer lease. Uncommitted changes are discarded.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for _, e := range w.entries {
		e.ref.ref.Release()
	}
	w.entries = nil
	w.buf.Reset()

	var err error
	if w.lease != nil {
		err = w.lease.Release(ctx)
	}
	w.idx.writerHeld.Store(false)
	w.logger.Info("writer closed")
	return err
}
