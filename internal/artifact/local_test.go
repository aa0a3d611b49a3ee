package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Put(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "job-1/captions/en.srt", []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), "expected file URL, got %s", url)

	data, err := os.ReadFile(filepath.Join(base, "job-1", "captions", "en.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "00:00:00,000")
}

func TestLocalStore_DistinctKeysDoNotCollide(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	urlA, err := store.Put(ctx, "job-1/translations/fr.srt", []byte("a"))
	require.NoError(t, err)
	urlB, err := store.Put(ctx, "job-1/translations/es.srt", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, urlA, urlB)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside", []byte("x"))
	require.Error(t, err)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "put", se.Op)
}
