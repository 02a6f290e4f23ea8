package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalStoreSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	err = store.Save(ctx, "certificates/abc/original.pdf", strings.NewReader("%PDF-1.4 fake"))
	assert.NoError(t, err)

	data, err := ReadAll(ctx, store, "certificates/abc/original.pdf")
	assert.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	assert.NoError(t, store.Delete(ctx, "certificates/abc/original.pdf"))

	_, err = store.Open(ctx, "certificates/abc/original.pdf")
	assert.Error(t, err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Save(ctx, "../escape.pdf", strings.NewReader("x")))
	assert.Error(t, store.Save(ctx, "/abs/escape.pdf", strings.NewReader("x")))
}

func TestLocalStoreOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "k.pdf", strings.NewReader("v1")))
	assert.NoError(t, store.Save(ctx, "k.pdf", strings.NewReader("v2")))

	data, err := ReadAll(ctx, store, "k.pdf")
	assert.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
