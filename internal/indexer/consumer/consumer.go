// Package consumer connects the index to Kafka. The ingest side turns
// IngestEvents into Writer calls and announces each commit on the
// index-complete topic; the search side refreshes its reader when such an
// announcement arrives.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/metrics"
)

type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// IngestEvent is the message format of the document-ingest topic. ID is
// the value of the id field; it is required for update and delete and,
// when set on add, is stored in the id field unless Fields already carry
// one.
type IngestEvent struct {
	Op     Op               `json:"op"`
	ID     string           `json:"id"`
	Fields []document.Field `json:"fields"`
}

// IndexCommitted is published on the index-complete topic after each
// successful commit.
type IndexCommitted struct {
	Generation  uint64    `json:"generation"`
	CommittedAt time.Time `json:"committed_at"`
}

// Writer is the subset of indexer.Writer the ingest loop drives.
type Writer interface {
	AddDocument(doc document.Document) (int, error)
	UpdateDocument(ctx context.Context, term index.Term, doc document.Document) (int, error)
	DeleteTerm(ctx context.Context, field, text string) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Options struct {
	// IDField names the field that identifies a document. Defaults to "id".
	IDField string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Ingester applies ingest events to a Writer.
type Ingester struct {
	writer  Writer
	idField string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewIngester(w Writer, opts Options) *Ingester {
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{
		writer:  w,
		idField: opts.IDField,
		logger:  opts.Logger.With("component", "index-consumer"),
		metrics: opts.Metrics,
	}
}

// Handle is a kafka.MessageHandler. Malformed or schema-violating events
// are logged and acknowledged so they do not block the partition; any
// other failure is returned and the offset stays uncommitted.
func (in *Ingester) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[IngestEvent](value)
	if err != nil {
		in.logger.Error("failed to decode ingest event", "key", string(key), "error", err)
		in.metrics.IngestEvent("unknown", "invalid")
		return nil
	}
	if err := in.Apply(ctx, event); err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrSchemaViolation) {
			in.logger.Warn("rejected ingest event", "op", event.Op, "id", event.ID, "error", err)
			in.metrics.IngestEvent(string(event.Op), "invalid")
			return nil
		}
		in.metrics.IngestEvent(string(event.Op), "error")
		return err
	}
	in.metrics.IngestEvent(string(event.Op), "ok")
	return nil
}

// Apply performs one event against the writer.
func (in *Ingester) Apply(ctx context.Context, event IngestEvent) error {
	switch event.Op {
	case OpAdd:
		doc := in.document(event)
		docID, err := in.writer.AddDocument(doc)
		if err != nil {
			return fmt.Errorf("adding document %q: %w", event.ID, err)
		}
		in.logger.Debug("document added", "id", event.ID, "doc_id", docID)
	case OpUpdate:
		if event.ID == "" {
			return fmt.Errorf("update without id: %w", apperrors.ErrInvalidInput)
		}
		docID, err := in.writer.UpdateDocument(ctx, index.Term{Field: in.idField, Text: event.ID}, in.document(event))
		if err != nil {
			return fmt.Errorf("updating document %q: %w", event.ID, err)
		}
		in.logger.Debug("document updated", "id", event.ID, "doc_id", docID)
	case OpDelete:
		if event.ID == "" {
			return fmt.Errorf("delete without id: %w", apperrors.ErrInvalidInput)
		}
		n, err := in.writer.DeleteTerm(ctx, in.idField, event.ID)
		if err != nil {
			return fmt.Errorf("deleting document %q: %w", event.ID, err)
		}
		in.logger.Debug("document deleted", "id", event.ID, "deleted", n)
	default:
		return fmt.Errorf("unknown op %q: %w", event.Op, apperrors.ErrInvalidInput)
	}
	return nil
}

func (in *Ingester) document(event IngestEvent) document.Document {
	doc := document.Document{Fields: append([]document.Field(nil), event.Fields...)}
	if event.ID != "" && !doc.Has(in.idField) {
		doc.Fields = append([]document.Field{{Name: in.idField, Value: event.ID}}, doc.Fields...)
	}
	return doc
}

// CommitNotifier returns an onCommit callback for Writer.StartCommitLoop
// that publishes an IndexCommitted event. Publish failures are logged; the
// commit itself has already succeeded.
func CommitNotifier(p Publisher, logger *slog.Logger) func(context.Context, uint64) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "commit-notifier")
	return func(ctx context.Context, generation uint64) {
		event := kafka.Event{
			Key:   strconv.FormatUint(generation, 10),
			Value: IndexCommitted{Generation: generation, CommittedAt: time.Now().UTC()},
		}
		if err := p.Publish(ctx, event); err != nil {
			logger.Error("failed to announce commit", "generation", generation, "error", err)
			return
		}
		logger.Info("commit announced", "generation", generation)
	}
}

// Refresher is implemented by indexer.ReaderManager.
type Refresher interface {
	MaybeRefresh(ctx context.Context) (bool, error)
}

// RefreshOnCommit returns a kafka.MessageHandler for the index-complete
// topic that refreshes r. Events are only a trigger: the reader always
// moves to the newest stored generation, so lost or reordered events are
// harmless.
func RefreshOnCommit(r Refresher, logger *slog.Logger) kafka.MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "index-refresher")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[IndexCommitted](value)
		if err != nil {
			logger.Warn("ignoring malformed commit event", "key", string(key), "error", err)
			return nil
		}
		changed, err := r.MaybeRefresh(ctx)
		if err != nil {
			return fmt.Errorf("refreshing reader for generation %d: %w", event.Generation, err)
		}
		logger.Info("reader refreshed", "announced_generation", event.Generation, "changed", changed)
		return nil
	}
}
