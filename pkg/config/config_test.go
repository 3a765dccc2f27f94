package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "zstd", cfg.Index.Compression)
	assert.Len(t, cfg.Schema.Fields, 3)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
index:
  maxBufferedDocs: 50
  commitInterval: 2s
storage:
  backend: memory
schema:
  fields:
    - name: title
      stored: true
      indexed: true
      tokenized: true
      analyzer: english
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("SP_SERVER_PORT", "9999")
	t.Setenv("SP_KAFKA_BROKERS", "a:1,b:2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Index.MaxBufferedDocs)
	assert.Equal(t, 2*time.Second, cfg.Index.CommitInterval)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	require.Len(t, cfg.Schema.Fields, 1)
	assert.Equal(t, "english", cfg.Schema.Fields[0].Analyzer)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Backend = "tape"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Index.Compression = "lz4"
	assert.NoError(t, cfg.Validate())
	cfg.Index.Compression = "brotli"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Search.DefaultOperator = "xor"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Schema.Fields = append(cfg.Schema.Fields, FieldConfig{Name: "id", Stored: true})
	assert.Error(t, cfg.Validate())
}
