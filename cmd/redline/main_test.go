package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/hupe1980/redline"
	"github.com/hupe1980/redline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, gojson.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCLI_DocumentLifecycle(t *testing.T) {
	local := []string{"--backend", "local", "--root", t.TempDir(), "--log-level", "error"}
	cli := func(args ...string) (string, error) {
		return run(t, append(append([]string{}, local...), args...)...)
	}

	out, err := cli("create", "--title", "memo", "The cat sat on the mat.")
	require.NoError(t, err)
	doc := decode[model.Document](t, out)
	assert.Equal(t, "memo", doc.Title)
	assert.Equal(t, int64(1), doc.Version)

	out, err = cli("redline", "range", doc.ID, "4", "7", "dog")
	require.NoError(t, err)
	batch := decode[batchView](t, out)
	require.Len(t, batch.Outcomes, 1)
	assert.Equal(t, redline.KindOK, batch.Outcomes[0].Kind)
	assert.Equal(t, int64(2), batch.Outcomes[0].Version)

	edits := filepath.Join(t.TempDir(), "edits.json")
	require.NoError(t, os.WriteFile(edits, []byte(`[
		{"document_id": "`+doc.ID+`", "target": "the", "occurrence": 1, "replacement": "a"},
		{"document_id": "`+doc.ID+`", "target": "zebra", "occurrence": 1, "replacement": "x"}
	]`), 0o644))
	out, err = cli("redline", "target", "--edits", edits)
	require.NoError(t, err)
	batch = decode[batchView](t, out)
	assert.Equal(t, redline.KindOK, batch.Outcomes[0].Kind)
	assert.Equal(t, redline.KindTargetNotFound, batch.Outcomes[1].Kind)
	assert.NotEmpty(t, batch.Outcomes[1].Error)

	out, err = cli("get", doc.ID)
	require.NoError(t, err)
	got := decode[model.Document](t, out)
	assert.Equal(t, "The dog sat on a mat.", got.Text)
	assert.Equal(t, int64(3), got.Version)

	out, err = cli("append", doc.ID, " Fin.")
	require.NoError(t, err)
	assert.Equal(t, "The dog sat on a mat. Fin.", decode[model.Document](t, out).Text)

	out, err = cli("search", "--buffer", "4", "dog")
	require.NoError(t, err)
	hits := decode[[]model.SearchHit](t, out)
	require.Len(t, hits, 1)
	assert.Equal(t, model.SearchHit{DocumentID: doc.ID, Offset: 4, Context: "The dog sat"}, hits[0])

	out, err = cli("search", "--document", doc.ID, "--buffer", "0", "mat")
	require.NoError(t, err)
	hits = decode[[]model.SearchHit](t, out)
	require.Len(t, hits, 1)
	assert.Equal(t, 17, hits[0].Offset)

	out, err = cli("list")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, strings.TrimSpace(out))

	out, err = cli("locks", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0")

	_, err = cli("delete", doc.ID)
	require.NoError(t, err)

	_, err = cli("get", doc.ID)
	assert.ErrorIs(t, err, redline.ErrNotFound)

	out, err = cli("search", "dog")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestCLI_UsageErrors(t *testing.T) {
	base := []string{"--backend", "memory"}

	_, err := run(t, append(base, "redline", "range", "id", "1")...)
	assert.Error(t, err)

	_, err = run(t, append(base, "redline", "range", "id", "x", "2", "r")...)
	assert.Error(t, err)

	_, err = run(t, "--backend", "nope", "list")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestCLI_ConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: memory
lock:
  ttl: 1m
compression: zstd
`), 0o644))

	out, err := run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: memory")
	assert.Contains(t, out, "ttl: 1m0s")
	assert.Contains(t, out, "compression: zstd")
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "redline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: s3+dynamodb
s3:
  bucket: docs
  prefix: redline/
  lock_table: redline-locks
lock:
  timeout: 2s
  polls_per_second: 20
log:
  level: debug
  format: json
`), 0o644))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3+dynamodb", cfg.Backend)
	assert.Equal(t, "docs", cfg.S3.Bucket)
	assert.Equal(t, "redline-locks", cfg.S3.LockTable)
	assert.Equal(t, 2*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, DefaultConfig().Lock.TTL, cfg.Lock.TTL)
	assert.Equal(t, 20.0, cfg.Lock.PollsPerSecond)
	assert.Equal(t, 8, cfg.Index.Workers)

	opts, err := cfg.storeOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_InvalidOptions(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"codec":       func(c *Config) { c.Codec = "xml" },
		"compression": func(c *Config) { c.Compression = "brotli" },
		"log level":   func(c *Config) { c.Log.Level = "loud" },
		"log format":  func(c *Config) { c.Log.Format = "xml" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := cfg.storeOptions()
			assert.Error(t, err)
		})
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Backend = "badger"
	cfg.Badger.InMemory = true
	s, closeFn, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NoError(t, closeFn())

	for name, mutate := range map[string]func(*Config){
		"unknown":      func(c *Config) { c.Backend = "tape" },
		"local root":   func(c *Config) { c.Backend = "local"; c.Local.Root = "" },
		"s3 bucket":    func(c *Config) { c.Backend = "s3" },
		"minio config": func(c *Config) { c.Backend = "minio" },
		"gcs bucket":   func(c *Config) { c.Backend = "gcs" },
		"badger path":  func(c *Config) { c.Backend = "badger" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, _, err := openBackend(ctx, cfg)
			assert.Error(t, err)
		})
	}
}
