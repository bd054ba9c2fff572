package utils

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldExtension(t *testing.T) {
	assert.Equal(t, "jpg", FoldExtension(" .JPG"))
	assert.Equal(t, "png", FoldExtension("Png"))
	assert.Equal(t, "", FoldExtension(""))
}

func TestContainsFold(t *testing.T) {
	list := []string{"jpg", "jpeg", "PNG"}
	assert.True(t, ContainsFold(list, "png"))
	assert.True(t, ContainsFold(list, "JPG"))
	assert.False(t, ContainsFold(list, "gif"))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	isDir, ok, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, isDir)

	isDir, ok, err = Exists(file)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, isDir)

	_, ok, err = Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})
	r.Post("/warm/*", func(http.ResponseWriter, *http.Request) {})

	routes, err := Routes(r)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"GET /healthz", "POST /warm/*"}, routes)
}
