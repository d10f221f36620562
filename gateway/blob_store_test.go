package gateway

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostPhotoPath(t *testing.T) {
	assert.Equal(t, "posts/abc.jpg", PostPhotoPath("abc"))
}

func TestFakeBlobStore(t *testing.T) {
	store := NewFakeBlobStore()
	ctx := context.Background()

	_, err := store.DownloadUrl(ctx, "posts/p1.jpg")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.Nil(t, store.Put(ctx, "posts/p1.jpg", bytes.NewReader([]byte{0xff, 0xd8}), "image/jpeg"))
	url, err := store.DownloadUrl(ctx, "posts/p1.jpg")
	require.Nil(t, err)
	assert.Equal(t, FakeBlobUrlPrefix+"posts/p1.jpg", url)

	b, ok := store.Object("posts/p1.jpg")
	assert.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8}, b)

	store.Fail(OpPut, ErrUnavailable)
	assert.NotNil(t, store.Put(ctx, "posts/p2.jpg", bytes.NewReader(nil), "image/jpeg"))
	assert.Equal(t, 1, store.Count())
}
