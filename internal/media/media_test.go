package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVideoExtension(t *testing.T) {
	assert.True(t, IsVideoExtension(".mp4"))
	assert.True(t, IsVideoExtension(".MKV"))
	assert.True(t, IsVideoExtension(".webm"))
	assert.False(t, IsVideoExtension(".mp3"))
	assert.False(t, IsVideoExtension(".wav"))
	assert.False(t, IsVideoExtension(""))
}

func TestContentTypeForExtension(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentTypeForExtension(".mp3"))
	assert.Equal(t, "audio/wav", ContentTypeForExtension(".WAV"))
	assert.Equal(t, "audio/ogg", ContentTypeForExtension(".ogg"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExtension(".xyz"))
}

func TestNeedsConversion(t *testing.T) {
	n := NewNormalizer(t.TempDir(), 24*1024*1024)

	// Video always converts, regardless of size
	assert.True(t, n.NeedsConversion(1024, ".mp4"))
	// Small audio passes through
	assert.False(t, n.NeedsConversion(1024, ".mp3"))
	// Oversized audio converts
	assert.True(t, n.NeedsConversion(50*1024*1024, ".mp3"))
	// Exactly at the ceiling passes through
	assert.False(t, n.NeedsConversion(24*1024*1024, ".mp3"))
}

func TestNormalizePassthrough(t *testing.T) {
	n := NewNormalizer(t.TempDir(), 24*1024*1024)
	data := []byte("small audio payload")

	out, contentType, err := n.Normalize(context.Background(), data, ".mp3")
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.Equal(t, "audio/mpeg", contentType)
}

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 1, ChunkCount(600, 600))
	assert.Equal(t, 2, ChunkCount(601, 600))
	assert.Equal(t, 3, ChunkCount(1500, 600))
	assert.Equal(t, 1, ChunkCount(0.5, 600))
	assert.Equal(t, 0, ChunkCount(0, 600))
	assert.Equal(t, 0, ChunkCount(100, 0))
}

func TestChunkOffset(t *testing.T) {
	assert.Equal(t, 0.0, ChunkOffset(0, 600))
	assert.Equal(t, 600.0, ChunkOffset(1, 600))
	assert.Equal(t, 3000.0, ChunkOffset(5, 600))
}

func TestChunkOffsetsAreMonotonic(t *testing.T) {
	// Reassembled timestamps must keep ordering across chunk boundaries:
	// any timestamp in chunk i is below any timestamp in chunk i+1.
	window := 600.0
	for i := 0; i < 10; i++ {
		endOfChunk := ChunkOffset(i, window) + window
		startOfNext := ChunkOffset(i+1, window)
		assert.LessOrEqual(t, endOfChunk, startOfNext+1e-9)
	}
}

func TestFetchHTTP(t *testing.T) {
	payload := []byte("binary media bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), server.URL+"/media/file.mp3")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearing.mp3")
	require.NoError(t, os.WriteFile(path, []byte("local bytes"), 0644))

	data, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("local bytes"), data)
}

func TestFetchMissingLocalFile(t *testing.T) {
	_, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}
