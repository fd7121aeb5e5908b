package vfs

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernsim/internal/klog"
)

func newFS() *FS {
	return New(klog.New(128, io.Discard).Logger("vfs"))
}

func TestFS_CreateReadRoundTrip(t *testing.T) {
	fs := newFS()
	require.NoError(t, fs.CreateFile("/motd", []byte("welcome")))

	got, err := fs.ReadFile("/motd")
	require.NoError(t, err)
	assert.Equal(t, []byte("welcome"), got)
}

func TestFS_CreateOverwritesExistingFile(t *testing.T) {
	fs := newFS()
	require.NoError(t, fs.CreateFile("/f", []byte("one")))
	require.NoError(t, fs.CreateFile("/f", []byte("two")))

	got, err := fs.ReadFile("/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestFS_MkdirAndNesting(t *testing.T) {
	fs := newFS()
	require.NoError(t, fs.Mkdir("/etc"))
	require.NoError(t, fs.CreateFile("/etc/motd", []byte("hi")))

	got, err := fs.ReadFile("/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	info, err := fs.Stat("/etc")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestFS_Errors(t *testing.T) {
	fs := newFS()
	require.NoError(t, fs.Mkdir("/d"))
	require.NoError(t, fs.CreateFile("/d/f", []byte("x")))

	_, err := fs.ReadFile("/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.ReadFile("/d")
	assert.ErrorIs(t, err, ErrIsDir)

	assert.ErrorIs(t, fs.Mkdir("/d"), ErrExists)
	assert.ErrorIs(t, fs.CreateFile("/d", nil), ErrIsDir)
	assert.ErrorIs(t, fs.Mkdir("/missing/sub"), ErrNotFound)

	_, err = fs.List("/d/f")
	assert.ErrorIs(t, err, ErrNotDir)

	_, err = fs.ReadFile("/d/f/deeper")
	assert.ErrorIs(t, err, ErrNotDir)

	assert.ErrorIs(t, fs.CreateFile("relative", nil), ErrBadPath)
	assert.ErrorIs(t, fs.Mkdir("/d/../x"), ErrBadPath)
}

func TestFS_PathErrorCarriesOpAndPath(t *testing.T) {
	fs := newFS()
	_, err := fs.ReadFile("/nope")
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "read", pe.Op)
	assert.Equal(t, "/nope", pe.Path)
}

func TestFS_ListSortedByName(t *testing.T) {
	fs := newFS()
	for _, name := range []string{"/c", "/a", "/b"} {
		require.NoError(t, fs.CreateFile(name, []byte("x")))
	}
	require.NoError(t, fs.Mkdir("/z"))

	entries, err := fs.List("/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a", "b", "c", "z"}, names)
	assert.True(t, entries[3].IsDir)
	assert.Equal(t, 1, entries[0].Size)
}

func TestFS_ReadReturnsCopy(t *testing.T) {
	fs := newFS()
	require.NoError(t, fs.CreateFile("/f", []byte("abc")))

	got, err := fs.ReadFile("/f")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := fs.ReadFile("/f")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFS_ConcurrentDisjointWriters(t *testing.T) {
	fs := newFS()
	const dirs = 4
	const files = 50
	for d := 0; d < dirs; d++ {
		require.NoError(t, fs.Mkdir(fmt.Sprintf("/d%d", d)))
	}

	var wg sync.WaitGroup
	for d := 0; d < dirs; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			for i := 0; i < files; i++ {
				path := fmt.Sprintf("/d%d/f%d", d, i)
				if err := fs.CreateFile(path, []byte(path)); err != nil {
					t.Errorf("create %s: %v", path, err)
				}
			}
		}(d)
	}
	wg.Wait()

	for d := 0; d < dirs; d++ {
		entries, err := fs.List(fmt.Sprintf("/d%d", d))
		require.NoError(t, err)
		assert.Len(t, entries, files)
	}
	got, err := fs.ReadFile("/d0/f7")
	require.NoError(t, err)
	assert.Equal(t, []byte("/d0/f7"), got)
}
