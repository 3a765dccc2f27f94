package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

const (
	manifestKey     = "manifest.json"
	manifestVersion = 1
	segmentPrefix   = "seg_"
)

// manifest is the committed state of an index: the ordered segment list
// with live docs. Writing it is the commit point.
type manifest struct {
	Version     int               `json:"version"`
	Generation  uint64            `json:"generation"`
	NextSegment uint64            `json:"next_segment"`
	Segments    []manifestSegment `json:"segments"`
	CommittedAt time.Time         `json:"committed_at"`
}

type manifestSegment struct {
	ID     string `json:"id"`
	MaxDoc int    `json:"max_doc"`
	// Live is the portable roaring serialisation of the live docs. It is
	// omitted when every doc is live.
	Live []byte `json:"live,omitempty"`
}

func segmentID(n uint64) string {
	return fmt.Sprintf("%s%06d", segmentPrefix, n)
}

func blobKey(id string) string {
	return id + segment.FileExt
}

func encodeLive(live *roaring.Bitmap, maxDoc int) ([]byte, error) {
	if live == nil || int(live.GetCardinality()) == maxDoc {
		return nil, nil
	}
	return live.MarshalBinary()
}

func decodeLive(data []byte, maxDoc int) (*roaring.Bitmap, error) {
	live := roaring.New()
	if data == nil {
		live.AddRange(0, uint64(maxDoc))
		return live, nil
	}
	if err := live.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if !live.IsEmpty() && int(live.Maximum()) >= maxDoc {
		return nil, fmt.Errorf("live doc %d beyond max doc %d", live.Maximum(), maxDoc)
	}
	return live, nil
}

// readManifest returns the stored manifest, or an empty generation-zero
// manifest when the index has never been committed.
func (idx *Index) readManifest(ctx context.Context) (*manifest, error) {
	data, err := idx.backend.Get(ctx, manifestKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Storage("decode", manifestKey, err)
	}
	if m.Version != manifestVersion {
		return nil, apperrors.Storage("decode", manifestKey, fmt.Errorf("unsupported manifest version %d", m.Version))
	}
	return &m, nil
}

func (idx *Index) writeManifest(ctx context.Context, m *manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return idx.put(ctx, manifestKey, data)
}
