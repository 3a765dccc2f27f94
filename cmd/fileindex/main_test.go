package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var files = map[string]string{
	"file1.txt": "Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"file2.txt": "Sed ut perspiciatis unde omnis iste natus error sit voluptatem.",
	"file3.txt": "Nemo enim ipsam voluptatem quia voluptas sit aspernatur aut odit.",
	"notes.md":  "consectetur in a file that is not indexed",
}

func writeFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	return dir
}

func runOK(t *testing.T, o options) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	return out.String()
}

func TestIndexAndSearchFiles(t *testing.T) {
	src := writeFiles(t)
	indexDir := t.TempDir()

	out := runOK(t, options{src: src, indexDir: indexDir, ext: ".txt", field: "contents", query: "consectetur", limit: 10})
	assert.Contains(t, out, "indexed 3 files, generation 1")
	assert.Contains(t, out, "1 hits for contents:consectetur")
	assert.Contains(t, out, "file1.txt")
	assert.NotContains(t, out, "notes.md")

	out = runOK(t, options{indexDir: indexDir, field: "contents", query: "sit", sort: "filename", limit: 10})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "file1.txt")
	assert.Contains(t, lines[3], "file3.txt")

	out = runOK(t, options{indexDir: indexDir, field: "contents", query: "filename:file2.txt", limit: 10})
	assert.Contains(t, out, "1 hits")
}

func TestReindexReplacesByPath(t *testing.T) {
	src := writeFiles(t)
	indexDir := t.TempDir()
	runOK(t, options{src: src, indexDir: indexDir, ext: ".txt"})

	require.NoError(t, os.WriteFile(filepath.Join(src, "file2.txt"), []byte("consectetur now appears here"), 0o644))
	out := runOK(t, options{src: src, indexDir: indexDir, ext: ".txt", compression: "lz4", field: "contents", query: "*:*", limit: 10})
	assert.Contains(t, out, "indexed 3 files, generation 2")
	assert.Contains(t, out, "3 hits")

	out = runOK(t, options{indexDir: indexDir, field: "contents", query: "consectetur", sort: "filename", limit: 10})
	assert.Contains(t, out, "2 hits")

	out = runOK(t, options{indexDir: indexDir, reset: true, field: "contents", query: "*:*", limit: 10})
	assert.Contains(t, out, "0 hits")
}

func TestMissingSourceDirectory(t *testing.T) {
	err := run(context.Background(), options{src: filepath.Join(t.TempDir(), "nope"), indexDir: t.TempDir()}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestQueryErrorIsReported(t *testing.T) {
	err := run(context.Background(), options{indexDir: t.TempDir(), field: "contents", query: `"open`, limit: 10}, &bytes.Buffer{})
	require.Error(t, err)
}
