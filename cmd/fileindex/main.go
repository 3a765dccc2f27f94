// Command fileindex indexes the text files under a directory into a local
// index and runs one query against it.
//
//	fileindex -src ./data -index ./index -q consectetur
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
)

var fileSchema = document.MustSchema(
	document.TextField("id"),
	document.FieldSpec{Name: "contents", Stored: true, Indexed: true, Tokenized: true, StoreTermVectors: true},
	document.StringField("path"),
	document.StringField("filename"),
)

type options struct {
	src         string
	indexDir    string
	ext         string
	field       string
	query       string
	sort        string
	limit       int
	reset       bool
	compression string
}

func main() {
	var o options
	flag.StringVar(&o.src, "src", "", "directory of files to index; empty only searches")
	flag.StringVar(&o.indexDir, "index", "index", "index directory")
	flag.StringVar(&o.ext, "ext", ".txt", "file extension to index; empty indexes every file")
	flag.StringVar(&o.field, "field", "contents", "default query field")
	flag.StringVar(&o.query, "q", "", "query to run after indexing")
	flag.StringVar(&o.sort, "sort", "", "sort spec, e.g. filename or -id:numeric")
	flag.IntVar(&o.limit, "n", 10, "number of hits to print")
	flag.BoolVar(&o.reset, "reset", false, "delete every document before indexing")
	flag.StringVar(&o.compression, "compression", "none", "segment compression: none, zstd or lz4")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger.Setup(*level, "text")
	if err := run(context.Background(), o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fileindex: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	backend, err := storage.NewLocalStore(o.indexDir)
	if err != nil {
		return err
	}
	opts := indexer.Options{Schema: fileSchema, Logger: slog.Default()}
	switch c := segment.Compression(o.compression); c {
	case "", segment.CompressionNone, segment.CompressionZstd, segment.CompressionLZ4:
		opts.Compression = c
	default:
		return fmt.Errorf("unknown compression %q", o.compression)
	}
	idx, err := indexer.Open(ctx, backend, opts)
	if err != nil {
		return err
	}
	defer idx.Close()

	if o.src != "" || o.reset {
		w, err := idx.OpenWriter(ctx)
		if err != nil {
			return err
		}
		n, err := indexFiles(ctx, w, o)
		if err != nil {
			w.Close(ctx)
			return err
		}
		if err := w.Commit(ctx); err != nil {
			w.Close(ctx)
			return err
		}
		if err := w.Close(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "indexed %d files, generation %d\n", n, idx.Generation())
	}

	if o.query == "" {
		return nil
	}
	return searchFiles(ctx, idx, o, out)
}

// indexFiles adds every matching file under o.src, replacing any earlier
// copy with the same path. Ids continue after the writer's MaxDoc.
func indexFiles(ctx context.Context, w *indexer.Writer, o options) (int, error) {
	if o.reset {
		if err := w.DeleteAll(); err != nil {
			return 0, err
		}
	}
	if o.src == "" {
		return 0, nil
	}
	nextID := w.MaxDoc() + 1
	count := 0
	err := filepath.WalkDir(o.src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if o.ext != "" && !strings.EqualFold(filepath.Ext(path), o.ext) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		doc := document.New(
			"id", strconv.Itoa(nextID),
			"contents", string(data),
			"path", path,
			"filename", d.Name(),
		)
		if _, err := w.UpdateDocument(ctx, index.Term{Field: "path", Text: path}, doc); err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		nextID++
		count++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("source directory %q does not exist", o.src)
	}
	return count, err
}

func searchFiles(ctx context.Context, idx *indexer.Index, o options, out io.Writer) error {
	p := parser.New(o.field, idx.Analyzer())
	p.Schema = idx.Schema()
	q, err := p.Parse(o.query)
	if err != nil {
		return err
	}
	sort, err := query.ParseSort(o.sort)
	if err != nil {
		return err
	}
	r, err := idx.OpenReader()
	if err != nil {
		return err
	}
	defer r.Close()

	top, err := executor.New(r, slog.Default(), nil).Search(ctx, q, o.limit, sort)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d hits for %s\n", top.TotalHits, q)
	for _, h := range top.Hits {
		fmt.Fprintf(out, "%6.3f  %s  %s\n", h.Score, h.Fields.Get("filename"), h.Fields.Get("path"))
	}
	return nil
}
