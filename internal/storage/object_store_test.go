package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalObjectStorePutGet(t *testing.T) {
	store := NewLocalObjectStore(t.TempDir(), "http://localhost:8080/files/", zap.NewNop())
	ctx := context.Background()

	content := []byte("jpeg bytes")
	obj, err := store.Put(ctx, "bills/store-1/abc-bill.jpg", content, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/files/bills/store-1/abc-bill.jpg", obj.URL)
	assert.Equal(t, int64(len(content)), obj.Size)

	got, err := store.Get(ctx, "bills/store-1/abc-bill.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalObjectStoreGetMissing(t *testing.T) {
	store := NewLocalObjectStore(t.TempDir(), "http://localhost", zap.NewNop())

	_, err := store.Get(context.Background(), "bills/store-1/nope.jpg")
	require.Error(t, err)
}

func TestLocalObjectStoreRejectsTraversal(t *testing.T) {
	store := NewLocalObjectStore(t.TempDir(), "http://localhost", zap.NewNop())
	ctx := context.Background()

	_, err := store.Get(ctx, "../../etc/passwd")
	require.Error(t, err)

	_, err = store.Put(ctx, "/etc/evil", []byte("x"), "")
	require.Error(t, err)
}

func TestBillKey(t *testing.T) {
	key := BillKey("store-1", "my bill.jpg")

	assert.True(t, strings.HasPrefix(key, "bills/store-1/"))
	assert.True(t, strings.HasSuffix(key, "-my_bill.jpg"))

	// Same file name yields distinct keys on repeated uploads.
	assert.NotEqual(t, key, BillKey("store-1", "my bill.jpg"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bill.jpg", "bill.jpg"},
		{"../../../etc/passwd", "passwd"},
		{"my bill.xlsx", "my_bill.xlsx"},
		{"", "upload"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
