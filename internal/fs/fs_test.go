package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	require.NoError(t, WriteFileAtomic(nil, path, func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	require.NoError(t, WriteFileAtomic(Default, path, func(w io.Writer) error {
		_, err := w.Write([]byte("second"))
		return err
	}))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomic_FillError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o644))

	boom := errors.New("boom")
	err := WriteFileAtomic(nil, path, func(io.Writer) error { return boom })
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()

	t.Run("FailOnRename", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("target.bin", Fault{FailAfterBytes: -1, FailOnRename: true})

		path := filepath.Join(dir, "target.bin")
		err := WriteFileAtomic(ffs, path, func(w io.Writer) error {
			_, err := w.Write([]byte("x"))
			return err
		})
		require.ErrorIs(t, err, ErrInjected)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("FailAfterBytes", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		custom := errors.New("disk full")
		ffs.AddRule("limited", Fault{FailAfterBytes: 4, Err: custom})

		f, err := ffs.OpenFile(filepath.Join(dir, "limited.log"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Write([]byte("abcd"))
		require.NoError(t, err)
		_, err = f.Write([]byte("e"))
		require.ErrorIs(t, err, custom)
	})

	t.Run("FailOnSync", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("sync.log", Fault{FailAfterBytes: -1, FailOnSync: true})

		f, err := ffs.OpenFile(filepath.Join(dir, "sync.log"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer f.Close()
		require.ErrorIs(t, f.Sync(), ErrInjected)

		ffs.ClearRules()
		g, err := ffs.OpenFile(filepath.Join(dir, "sync.log"), os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer g.Close()
		require.NoError(t, g.Sync())
	})
}
