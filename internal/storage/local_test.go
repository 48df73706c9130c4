package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "uploads", 0, nil)
	require.NoError(t, err)

	content := "%PDF-1.4 fake invoice"
	att, err := store.Save(context.Background(), &domain.Upload{
		FileName: "../../etc/invoice 2024.pdf",
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
	})
	require.NoError(t, err)

	assert.Equal(t, "invoice_2024.pdf", att.FileName)
	assert.True(t, strings.HasPrefix(att.Path, "/uploads/"))
	assert.True(t, strings.HasSuffix(att.Path, "_invoice_2024.pdf"))
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, int64(len(content)), att.Size)

	onDisk := filepath.Join(dir, filepath.Base(att.Path))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	require.NoError(t, store.Delete(context.Background(), att))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Delete(context.Background(), att))
}

func TestLocalStoreRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads", 8, nil)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), &domain.Upload{
		FileName: "big.txt",
		Content:  strings.NewReader(strings.Repeat("x", 32)),
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Save(context.Background(), &domain.Upload{FileName: "empty.txt", Content: strings.NewReader("")})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"photo.png":            "photo.png",
		"C:\\Users\\a\\b.docx": "b.docx",
		"привет.txt":           "______.txt",
		"...":                  "file",
		"":                     "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}
