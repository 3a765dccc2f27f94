package indexer

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/refcnt"
)

// segRef counts the holders of a decoded segment: snapshots and the
// writer's working set. The last release evicts it from the index cache.
type segRef struct {
	seg *segment.Segment
	ref *refcnt.Counter
}

func (idx *Index) newSegRef(seg *segment.Segment) *segRef {
	r := &segRef{seg: seg}
	r.ref = refcnt.New(func() {
		idx.mu.Lock()
		if idx.segs[seg.ID()] == r {
			delete(idx.segs, seg.ID())
		}
		idx.mu.Unlock()
		idx.logger.Debug("segment released", "segment", seg.ID())
	})
	idx.mu.Lock()
	idx.segs[seg.ID()] = r
	idx.mu.Unlock()
	return r
}

// cachedSegRef returns an extra reference to an already decoded segment.
func (idx *Index) cachedSegRef(id string) *segRef {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	r, ok := idx.segs[id]
	if !ok || !r.ref.TryAcquire() {
		return nil
	}
	return r
}

// view is a segment together with the live docs a snapshot sees.
type view struct {
	ref  *segRef
	live *roaring.Bitmap
}

// snapshot is an immutable committed state. The index holds one reference
// to the current snapshot; every open Reader holds another.
type snapshot struct {
	generation  uint64
	nextSegment uint64
	views       []view
	leaves      segment.Leaves
	ref         *refcnt.Counter
}

// newSnapshot acquires a reference on every segment of views.
func newSnapshot(generation, nextSegment uint64, views []view) *snapshot {
	s := &snapshot{generation: generation, nextSegment: nextSegment, views: views}
	docBase := 0
	for _, v := range views {
		v.ref.ref.Acquire()
		leaf := segment.NewLeaf(v.ref.seg, v.live, docBase)
		s.leaves = append(s.leaves, leaf)
		docBase += leaf.MaxDoc()
	}
	s.ref = refcnt.New(func() {
		for _, v := range s.views {
			v.ref.ref.Release()
		}
	})
	return s
}

func (s *snapshot) segmentIDs() map[string]bool {
	ids := make(map[string]bool, len(s.views))
	for _, v := range s.views {
		ids[v.ref.seg.ID()] = true
	}
	return ids
}
