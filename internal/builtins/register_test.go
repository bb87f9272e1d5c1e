// ABOUTME: Tests for RegisterAll.
// ABOUTME: Checks pack composition with and without a document root.

package builtins

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

func toolNames(r *packs.Registry) []string {
	var names []string
	for tool := range r.List() {
		names = append(names, tool.Name)
	}
	return names
}

func TestRegisterAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("without files", func(t *testing.T) {
		b := packs.NewBuilder(logger)
		require.NoError(t, RegisterAll(b, store.DefaultCatalog(), Options{}))
		names := toolNames(b.Build())
		assert.Len(t, names, 8)
		assert.NotContains(t, names, "read_file")
	})

	t.Run("with files", func(t *testing.T) {
		b := packs.NewBuilder(logger)
		require.NoError(t, RegisterAll(b, store.DefaultCatalog(), Options{FilesRoot: t.TempDir()}))
		reg := b.Build()
		assert.Equal(t, 11, reg.Len())

		tool, err := reg.Resolve("read_file")
		require.NoError(t, err)
		assert.Equal(t, FilesPackID, tool.PackID)
	})

	t.Run("bad root", func(t *testing.T) {
		b := packs.NewBuilder(logger)
		err := RegisterAll(b, store.DefaultCatalog(), Options{FilesRoot: "/does/not/exist"})
		assert.Error(t, err)
	})
}
