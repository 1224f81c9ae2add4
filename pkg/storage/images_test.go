package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
)

type fakeDownloader struct {
	calls int32
	data  []byte
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"https://wx1.sinaimg.cn/large/abc.jpg":        "jpg",
		"https://wx1.sinaimg.cn/large/abc.PNG":        "png",
		"https://host/a.gif?x=1":                      "gif",
		"https://host/a.webp":                         "webp",
		"https://host/a.jpeg":                         "jpg",
		"https://host/noext":                          "jpg",
		"https://host/path.png/actually.bmp?fmt=.png": "jpg",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtensionFor(in), in)
	}
}

func TestFilenameFor(t *testing.T) {
	assert.Equal(t, "5001_1.jpg", FilenameFor("http://x/a.jpg", "5001", "1"))
	assert.Equal(t, "5001_rt_2.png", FilenameFor("http://x/a.png", "5001", "rt_2"))
	assert.Equal(t, "a_b_1.jpg", FilenameFor("http://x/a", "a/b", "1"))
}

func TestSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDownloader{data: []byte("jpeg bytes")}
	store, err := NewImageStore(dir, d, logger.NewNopLogger())
	require.NoError(t, err)

	first, err := store.Save(context.Background(), "http://img/a.jpg", "5001", "1")
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "http://img/a.jpg", "5001", "1")
	require.NoError(t, err)

	assert.Equal(t, "5001_1.jpg", first.Filename)
	assert.False(t, first.Cached)
	assert.Equal(t, first.Filename, second.Filename)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&d.calls))

	data, err := store.Read(first.Filename)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestSaveSkipsFilesFromEarlierRuns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7_1.png"), []byte("old"), 0644))

	d := &fakeDownloader{data: []byte("new")}
	store, err := NewImageStore(dir, d, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	res, err := store.Save(context.Background(), "http://img/x.png", "7", "1")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int32(0), atomic.LoadInt32(&d.calls))
}

func TestSaveFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDownloader{err: errs.FromStatus(404)}
	store, err := NewImageStore(dir, d, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "http://img/a.jpg", "9", "1")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, store.Exists("9_1.jpg"))
}

func TestConcurrentSavesShareOneFetch(t *testing.T) {
	d := &fakeDownloader{data: []byte("x")}
	store, err := NewImageStore(t.TempDir(), d, logger.NewNopLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Save(context.Background(), "http://img/a.gif", "1", "1")
			assert.NoError(t, err)
			assert.Equal(t, "1_1.gif", res.Filename)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&d.calls))
}

func TestFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"2_1.jpg", "1_1.png", "notes.txt", ".1_2.jpg.123.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}
	store, err := NewImageStore(dir, nil, logger.NewNopLogger())
	require.NoError(t, err)

	files, err := store.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"1_1.png", "2_1.jpg"}, files)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
