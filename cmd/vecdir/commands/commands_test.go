package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecdir"
	"github.com/hupe1980/vecdir/blobstore"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "colors")

	out, err := runCmd(t, "create", path, "--dims", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	// Idempotent.
	_, err = runCmd(t, "create", path, "-d", "3")
	require.NoError(t, err)

	_, err = runCmd(t, "insert", path, "red", "1,0,0")
	require.NoError(t, err)

	input := writeFile(t, dir, "in.jsonl", `{"id":"green","vector":[0,1,0]}

{"id":"blue","vector":[0,0,2]}
`)
	out, err = runCmd(t, "import", path, "-f", input, "--normalize", "--build")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 vectors")

	out, err = runCmd(t, "search", path, "-q", "0.6,0.8,0", "-k", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "green")
	assert.Contains(t, lines[2], "red")

	out, err = runCmd(t, "--json", "search", path, "-q", "0,0,1", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"blue"`)
	assert.Contains(t, out, `"score":1`)

	out, err = runCmd(t, "delete", path, "red")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted red")

	out, err = runCmd(t, "delete", path, "red")
	require.NoError(t, err)
	assert.Contains(t, out, "red not found")

	out, err = runCmd(t, "build", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 vectors")

	out, err = runCmd(t, "--json", "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"count":2`)
	assert.Contains(t, out, `"dimensions":3`)
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c")

	_, err := runCmd(t, "create", path)
	require.ErrorContains(t, err, "--dims is required")

	_, err = runCmd(t, "create", path, "--dims", "2", "--metric", "l2")
	var metricErr *vecdir.ErrUnsupportedMetric
	require.ErrorAs(t, err, &metricErr)

	_, err = runCmd(t, "stats", path)
	require.ErrorIs(t, err, vecdir.ErrCollectionNotFound)

	_, err = runCmd(t, "create", path, "--dims", "2")
	require.NoError(t, err)

	_, err = runCmd(t, "insert", path, "a", "1,x")
	require.ErrorContains(t, err, "vector component 1")

	_, err = runCmd(t, "insert", path, "a", "1,0,0")
	var dimErr *vecdir.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)

	_, err = runCmd(t, "search", path, "-q", "1,0", "-k", "0")
	require.ErrorIs(t, err, vecdir.ErrInvalidK)

	_, err = runCmd(t, "insert", path, "z", "0,0", "--normalize")
	require.ErrorContains(t, err, "zero vector")

	bad := writeFile(t, dir, "bad.jsonl", "{\"id\":\"a\",\"vector\":[1,0]}\nnot json\n")
	_, err = runCmd(t, "import", path, "-f", bad)
	require.ErrorContains(t, err, "line 2")

	_, err = runCmd(t, "import", path)
	require.ErrorContains(t, err, "-f")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	mirror := filepath.Join(dir, "mirror")
	cfgPath := writeFile(t, dir, "vecdir.yaml", `
log_level: error
durability: async
compression: zstd
codec: json
max_concurrent_builds: 2
index:
  builder: flat
mirror:
  type: local
  local:
    root: `+mirror+`
`)
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	for _, p := range []string{a, b} {
		_, err := runCmd(t, "-c", cfgPath, "create", p, "--dims", "2")
		require.NoError(t, err)
		_, err = runCmd(t, "-c", cfgPath, "insert", p, "x", "1,0")
		require.NoError(t, err)
	}

	out, err := runCmd(t, "-c", cfgPath, "build", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "built "+a)
	assert.Contains(t, out, "built "+b)

	store := blobstore.NewLocalStore(mirror)
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	// Loading the flat index with the default HNSW builder is refused.
	_, err = runCmd(t, "stats", a)
	require.ErrorIs(t, err, vecdir.ErrCorruptPersistedState)

	out, err = runCmd(t, "-c", cfgPath, "stats", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "COUNT")
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)

		opts, err := cfg.Options(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, opts)
	})

	t.Run("Overrides", func(t *testing.T) {
		p := writeFile(t, t.TempDir(), "c.yaml", "index:\n  ef_search: 128\n")
		cfg, err := LoadConfig(p)
		require.NoError(t, err)
		assert.Equal(t, 128, cfg.Index.EFSearch)
		assert.Equal(t, DefaultConfig().Index.M, cfg.Index.M)
		assert.Equal(t, "sync", cfg.Durability)
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, body := range map[string]string{
			"durability":  "durability: sometimes\n",
			"compression": "compression: gzip\n",
			"builder":     "index:\n  builder: ivf\n",
			"log level":   "log_level: loud\n",
			"log format":  "log_format: xml\n",
			"mirror":      "mirror:\n  type: ftp\n",
			"local root":  "mirror:\n  type: local\n",
			"s3 bucket":   "mirror:\n  type: s3\n",
		} {
			t.Run(name, func(t *testing.T) {
				p := writeFile(t, t.TempDir(), "c.yaml", body)
				cfg, err := LoadConfig(p)
				require.NoError(t, err)
				_, err = cfg.Options(context.Background())
				require.Error(t, err)
			})
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		p := writeFile(t, t.TempDir(), "c.yaml", "index: [")
		_, err := LoadConfig(p)
		require.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 1, 2.5 ,-3")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, v)

	_, err = parseVector("")
	require.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}
