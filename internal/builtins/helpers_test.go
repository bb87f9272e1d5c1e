// ABOUTME: Shared helpers for builtin pack tests.
// ABOUTME: Runs handlers against both a seeded SQLite store and the in-memory store.

package builtins

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// testStores returns a seeded SQLite store and a fixture-backed memory store.
func testStores(t *testing.T) map[string]store.Store {
	t.Helper()

	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "compliance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Seed(context.Background())
	require.NoError(t, err)

	memory, err := store.NewMemoryStoreWithFixtures()
	require.NoError(t, err)

	return map[string]store.Store{"sqlite": sqlite, "memory": memory}
}

func findHandler(pack *packs.BuiltinPack, name string) packs.ToolHandler {
	for _, tool := range pack.Tools {
		if tool.Name == name {
			return tool.Handler
		}
	}
	return nil
}

// call runs a handler with a fresh session, as the dispatcher would.
func call(t *testing.T, st store.Store, pack *packs.BuiltinPack, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	handler := findHandler(pack, name)
	require.NotNil(t, handler, "handler %s not found", name)

	sess, err := st.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	out, err := handler(context.Background(), sess, packs.Args(args))
	if err != nil {
		return nil, err
	}
	payload, ok := out.(map[string]any)
	require.True(t, ok, "expected map payload, got %T", out)
	return payload, nil
}

// requireNotFound asserts err is a not-found outcome with the given message.
func requireNotFound(t *testing.T, err error, message string) *packs.NotFoundError {
	t.Helper()
	require.Error(t, err)
	nf, ok := packs.IsNotFound(err)
	require.True(t, ok, "expected NotFoundError, got %v", err)
	require.Equal(t, message, nf.Message)
	return nf
}
