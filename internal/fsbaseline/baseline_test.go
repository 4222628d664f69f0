package fsbaseline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vas-solutus/arcad/internal/types"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestCaptureAndDiff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "etc/hostname"), "box")
	writeFile(t, filepath.Join(root, "var/log/app.log"), "boot\n")

	baseline, errs := Capture("c1", root)
	require.Empty(t, errs)
	assert.NotEmpty(t, baseline.Entries)

	// no changes yet
	diffs, err := Diff(baseline, root)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	// modify, add, delete
	writeFile(t, filepath.Join(root, "var/log/app.log"), "boot\nrunning\n")
	writeFile(t, filepath.Join(root, "tmp/new.txt"), "fresh")
	require.NoError(t, os.Remove(filepath.Join(root, "etc/hostname")))

	diffs, err = Diff(baseline, root)
	require.NoError(t, err)

	byPath := make(map[string]types.ChangeKind)
	for _, d := range diffs {
		byPath[d.Path] = d.Kind
	}
	assert.Equal(t, types.ChangeModified, byPath[filepath.Join("var/log/app.log")])
	assert.Equal(t, types.ChangeAdded, byPath[filepath.Join("tmp/new.txt")])
	assert.Equal(t, types.ChangeDeleted, byPath[filepath.Join("etc/hostname")])
}
