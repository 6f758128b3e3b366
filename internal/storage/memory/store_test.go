package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	t.Parallel()

	store := New()
	url, err := store.Put(context.Background(), "users/u1/img.png", "image/png", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "memory://users/u1/img.png", url)

	data, ok := store.Get("users/u1/img.png")
	require.True(t, ok)
	assert.Equal(t, []byte("bytes"), data)
	assert.Equal(t, 1, store.Len())
}

func TestPutRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.Put(context.Background(), "", "image/png", []byte("x"))
	require.Error(t, err)
}

func TestPutCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("original")
	_, err := store.Put(context.Background(), "k", "image/png", payload)
	require.NoError(t, err)

	payload[0] = 'X'
	data, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), data)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	_, err := store.Put(ctx, "k", "image/png", []byte("x"))
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}
