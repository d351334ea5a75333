package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func collect(t *testing.T, c *Collector, root string) []FileItem {
	t.Helper()
	out := make(chan FileItem, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Collect(context.Background(), "r1", root, out)
		close(out)
	}()
	var items []FileItem
	for item := range out {
		items = append(items, item)
	}
	require.NoError(t, <-errCh)
	return items
}

func TestCollector_ExcludesMatchingGlobsAndPrunesDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "vendor/dep.go", "package dep")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}")

	cfg := config.Default(root)
	cfg.Exclude = []string{"vendor/**", "node_modules/**"}
	c := NewCollector(cfg)

	items := collect(t, c, root)
	byPath := map[string]FileItem{}
	for _, it := range items {
		byPath[it.RelPath] = it
	}

	require.Contains(t, byPath, "main.go")
	assert.False(t, byPath["main.go"].IsExcluded)

	if it, ok := byPath["vendor/dep.go"]; ok {
		assert.True(t, it.IsExcluded)
	}
	if it, ok := byPath["node_modules/pkg/index.js"]; ok {
		assert.True(t, it.IsExcluded)
	}
}

func TestCollector_IncludeAllowListRestrictsToMatchingExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "README.md", "# hi")

	cfg := config.Default(root)
	cfg.Include = []string{"**/*.go"}
	c := NewCollector(cfg)

	items := collect(t, c, root)
	for _, it := range items {
		if it.RelPath == "main.go" {
			assert.False(t, it.IsExcluded)
		}
		if it.RelPath == "README.md" {
			assert.True(t, it.IsExcluded)
		}
	}
}

func TestCollector_MaxFileBytesZeroMeansUnlimited(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 1<<20)
	writeFile(t, root, "big.txt", string(big))

	cfg := config.Default(root)
	cfg.Ingest.MaxFileBytes = 0
	c := NewCollector(cfg)

	items := collect(t, c, root)
	require.Len(t, items, 1)
	assert.False(t, items[0].IsExcluded)
}

func TestCollector_OverSizeFileExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", "0123456789")

	cfg := config.Default(root)
	cfg.Ingest.MaxFileBytes = 4
	c := NewCollector(cfg)

	items := collect(t, c, root)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsExcluded)
}

func TestFilePriority_TiersMatchExtensionFamilies(t *testing.T) {
	assert.Equal(t, 10, filePriority(".go"))
	assert.Equal(t, 8, filePriority(".java"))
	assert.Equal(t, 5, filePriority(".md"))
	assert.Equal(t, 1, filePriority(".xyz"))
}
