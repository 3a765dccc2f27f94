// Package executor runs queries against a reader: each leaf is searched
// concurrently into a bounded collector and the per-leaf results are
// merged into the global top K.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

// checkEvery is how many docs a leaf scan processes between context
// checks.
const checkEvery = 4096

type Hit struct {
	DocID  int               `json:"doc_id"`
	Score  float64           `json:"score"`
	Fields document.Document `json:"fields"`
}

type TopDocs struct {
	TotalHits int   `json:"total_hits"`
	Hits      []Hit `json:"hits"`
}

// Searcher executes queries against one reader.
type Searcher struct {
	reader  query.IndexReader
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(reader query.IndexReader, logger *slog.Logger, m *metrics.Metrics) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		reader:  reader,
		logger:  logger.With("component", "query-executor"),
		metrics: m,
	}
}

func (s *Searcher) Reader() query.IndexReader { return s.reader }

// Search returns the k best live docs for q, ordered by sort or by score
// when sort is nil, with their stored fields.
func (s *Searcher) Search(ctx context.Context, q query.Query, k int, sort *query.Sort) (*TopDocs, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, apperrors.ErrInvalidInput)
	}
	start := time.Now()
	weight, err := q.CreateWeight(s.reader)
	if err != nil {
		return nil, err
	}

	leaves := s.reader.Leaves()
	less := merger.BySort(sort)
	lists := make([][]merger.Hit, len(leaves))
	totals := make([]int, len(leaves))

	g, gctx := errgroup.WithContext(ctx)
	for i, leaf := range leaves {
		g.Go(func() error {
			hits, total, err := searchLeaf(gctx, weight, leaf, k, sort, less)
			lists[i], totals[i] = hits, total
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.Search("error", "miss", 0, time.Since(start))
		return nil, err
	}

	top := &TopDocs{Hits: []Hit{}}
	for _, n := range totals {
		top.TotalHits += n
	}
	for _, h := range merger.Merge(lists, k, less) {
		leaf, local, _ := segment.Leaves(leaves).Locate(h.DocID)
		fields, err := leaf.StoredFields(local)
		if err != nil {
			return nil, err
		}
		top.Hits = append(top.Hits, Hit{DocID: h.DocID, Score: h.Score, Fields: fields})
	}

	resultType := "hit"
	if top.TotalHits == 0 {
		resultType = "zero_result"
	}
	s.metrics.Search(resultType, "miss", len(top.Hits), time.Since(start))
	s.logger.Debug("query executed",
		"query", q.String(),
		"sort", sort.String(),
		"total_hits", top.TotalHits,
		"results", len(top.Hits),
		"took", time.Since(start),
	)
	return top, nil
}

func searchLeaf(ctx context.Context, w query.Weight, leaf *segment.Leaf, k int, sort *query.Sort, less merger.Less) ([]merger.Hit, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	sc := w.Scorer(leaf)
	if sc == nil {
		return nil, 0, nil
	}
	top := merger.NewTopK(k, less)
	needsFields := sort.NeedsFields()
	total := 0
	for d := sc.Next(); d != query.NoMoreDocs; d = sc.Next() {
		total++
		if total%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		h := merger.Hit{DocID: leaf.DocBase() + d, Score: sc.Score()}
		if sort != nil {
			var doc document.Document
			if needsFields {
				doc, _ = leaf.StoredFields(d)
			}
			h.Keys = sort.Keys(doc, h.Score)
		}
		top.Collect(h)
	}
	return top.Results(), total, nil
}

// Count returns the number of live docs matching q.
func (s *Searcher) Count(ctx context.Context, q query.Query) (int, error) {
	weight, err := q.CreateWeight(s.reader)
	if err != nil {
		return 0, err
	}
	leaves := s.reader.Leaves()
	counts := make([]int, len(leaves))
	g, gctx := errgroup.WithContext(ctx)
	for i, leaf := range leaves {
		g.Go(func() error {
			sc := weight.Scorer(leaf)
			if sc == nil {
				return nil
			}
			for d := sc.Next(); d != query.NoMoreDocs; d = sc.Next() {
				counts[i]++
				if counts[i]%checkEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
