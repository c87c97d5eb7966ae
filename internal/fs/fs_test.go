package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultyFS_WriteFault(t *testing.T) {
	dir := t.TempDir()

	ffs := NewFaultyFS(nil)
	ffs.AddRule(".tmp", Fault{FailOnWrite: true})

	f, err := ffs.OpenFile(filepath.Join(dir, "data.tmp"), os.O_WRONLY|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("payload"))
	assert.Error(t, err)

	// Files not matching a rule are untouched.
	ok, err := ffs.OpenFile(filepath.Join(dir, "data.csv"), os.O_WRONLY|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer ok.Close()

	_, err = ok.Write([]byte("payload"))
	assert.NoError(t, err)
}

func TestFaultyFS_RenameFault(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.tmp")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	ffs := NewFaultyFS(nil)
	ffs.AddRule(".tmp", Fault{FailOnRename: true})

	assert.Error(t, ffs.Rename(src, filepath.Join(dir, "a")))
}
