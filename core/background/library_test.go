package background

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/model"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestSelectPicksOnlyVideoFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "minecraft", "a.mp4"))
	touch(t, filepath.Join(root, "minecraft", "b.MOV"))
	touch(t, filepath.Join(root, "minecraft", "notes.txt"))

	lib := NewLibrary(root, rand.New(rand.NewSource(1)))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		clip, err := lib.Select("minecraft")
		require.NoError(t, err)
		assert.Equal(t, "minecraft", clip.Category)
		seen[filepath.Base(clip.Path)] = true
	}
	assert.Equal(t, map[string]bool{"a.mp4": true, "b.MOV": true}, seen)
}

func TestSelectMissingCategory(t *testing.T) {
	lib := NewLibrary(t.TempDir(), nil)

	_, err := lib.Select("subway")
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
}

func TestSelectEmptyCategory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "empty", "readme.md"))
	lib := NewLibrary(root, nil)

	_, err := lib.Select("empty")
	var missing *model.ResourceMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "background clip", missing.Kind)
}

func TestSelectRejectsTraversal(t *testing.T) {
	lib := NewLibrary(t.TempDir(), nil)
	for _, c := range []string{"", "..", "../etc", `a\b`} {
		_, err := lib.Select(c)
		assert.True(t, errors.Is(err, model.ErrInput), "category %q", c)
	}
}

func TestCategories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "minecraft", "a.mp4"))
	touch(t, filepath.Join(root, "minecraft", "b.webm"))
	touch(t, filepath.Join(root, "subway", "c.mp4"))
	touch(t, filepath.Join(root, ".cache", "d.mp4"))
	touch(t, filepath.Join(root, "loose.mp4"))

	cats, err := NewLibrary(root, nil).Categories()
	require.NoError(t, err)
	assert.Equal(t, []CategoryInfo{{Name: "minecraft", Clips: 2}, {Name: "subway", Clips: 1}}, cats)
}

func TestCategoriesMissingRoot(t *testing.T) {
	cats, err := NewLibrary(filepath.Join(t.TempDir(), "nope"), nil).Categories()
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  Minecraft:
    - https://example.com/mc1
    - https://example.com/mc2
default:
  - https://example.com/any
`), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/mc1", "https://example.com/mc2"}, c.URLs("minecraft"))
	assert.Equal(t, []string{"https://example.com/any"}, c.URLs("subway"))

	empty, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Empty(t, empty.URLs("minecraft"))
}

func TestLoadCatalogInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: [unclosed"), 0644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, category, dir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(dir, "fetched.mp4")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte("x"), 0644)
}

func TestSelectorFetchesWhenMissing(t *testing.T) {
	root := t.TempDir()
	fetcher := &fakeFetcher{}
	sel := NewSelector(NewLibrary(root, nil), fetcher)

	clip, err := sel.Select(context.Background(), "minecraft")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "minecraft", "fetched.mp4"), clip.Path)

	// the fetched clip now serves from the library
	_, err = sel.Select(context.Background(), "minecraft")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestSelectorFetchFailureKeepsMissingError(t *testing.T) {
	sel := NewSelector(NewLibrary(t.TempDir(), nil), &fakeFetcher{err: errors.New("offline")})

	_, err := sel.Select(context.Background(), "minecraft")
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
	assert.Contains(t, err.Error(), "offline")
}

func TestSelectorDoesNotFetchOnInputError(t *testing.T) {
	fetcher := &fakeFetcher{}
	sel := NewSelector(NewLibrary(t.TempDir(), nil), fetcher)

	_, err := sel.Select(context.Background(), "../x")
	assert.True(t, errors.Is(err, model.ErrInput))
	assert.Zero(t, fetcher.calls)
}

func TestYTDLPWithoutSources(t *testing.T) {
	y := NewYTDLP("yt-dlp", &Catalog{}, nil)

	_, err := y.Fetch(context.Background(), "minecraft", t.TempDir())
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
}

func TestWatchReportsNewClips(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "minecraft"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 20*time.Millisecond, func() { changed <- struct{}{} })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	touch(t, filepath.Join(root, "minecraft", "new.mp4"))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
	cancel()
	require.NoError(t, <-done)
}
