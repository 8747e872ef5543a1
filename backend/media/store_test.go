package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	logger := zerolog.Nop()
	store, err := NewDiskStore(t.TempDir(), &logger)
	require.NoError(t, err)
	return store
}

func TestDiskStoreSave(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save([]byte("fake png bytes"), "cat photo.PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/"))
	assert.True(t, strings.HasSuffix(ref, ".png"), "extension is kept, lowercased")

	onDisk := filepath.Join(store.Dir(), strings.TrimPrefix(ref, "/uploads/"))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake png bytes"), data)
}

func TestDiskStoreUniqueRefs(t *testing.T) {
	store := newTestStore(t)

	ref1, err := store.Save([]byte("a"), "same.jpg")
	require.NoError(t, err)
	ref2, err := store.Save([]byte("b"), "same.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)
}

func TestDiskStoreRejections(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save([]byte("x"), "malware.exe")
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = store.Save([]byte("x"), "noextension")
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = store.Save(nil, "cat.png")
	assert.ErrorIs(t, err, ErrEmptyUpload)
}
