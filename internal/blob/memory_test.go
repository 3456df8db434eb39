package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	links := NewLinks("http://cam.local/", []byte("test-key"))
	store := NewMemory(links)

	url, err := store.Put(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg", bytes.NewReader([]byte("jpeg")), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, links.URL("patients/p1/Rodilla/2024-03-01_10-00-00.jpg"), url)

	obj, err := store.Open(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(4), obj.Size)

	ok, err := store.Exists(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg"))
	assert.ErrorIs(t, store.Delete(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg"), ErrNotFound)
	_, err = store.Open(ctx, "patients/p1/Rodilla/2024-03-01_10-00-00.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.Writes())
}

func TestMemory_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(NewLinks("http://cam.local", []byte("test-key")))
	uploaded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return uploaded })
	for _, p := range []string{"patients/p2/a.jpg", "patients/p1/b.jpg", "patients/p1/a.jpg", "other/x.jpg"} {
		_, err := store.Put(ctx, p, bytes.NewReader([]byte("x")), "image/jpeg")
		require.NoError(t, err)
	}

	entries, err := store.List(ctx, "patients/p1/")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Path: "patients/p1/a.jpg", UploadedAt: uploaded},
		{Path: "patients/p1/b.jpg", UploadedAt: uploaded},
	}, entries)
}
