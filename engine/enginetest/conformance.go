// Package enginetest holds a shared conformance suite for engine.Engine
// implementations, so memengine and leveldbengine are exercised against the
// same behavior instead of duplicating assertions in each package's tests.
// It is a test-only dependency: nothing outside _test.go files should import
// it, which keeps testify out of the production import graph.
package enginetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coname/raftlog/engine"
)

// Suite runs a battery of engine-contract checks against eng.
func Suite(t *testing.T, eng engine.Engine) {
	t.Run("GetMissing", func(t *testing.T) {
		v, err := eng.Get([]byte("missing"))
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("SetGet", func(t *testing.T) {
		require.NoError(t, eng.Set([]byte("a"), []byte("1")))
		v, err := eng.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, eng.Set([]byte("b"), []byte("1")))
		require.NoError(t, eng.Set([]byte("b"), []byte("2")))
		v, err := eng.Get([]byte("b"))
		require.NoError(t, err)
		require.Equal(t, []byte("2"), v)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, eng.Set([]byte("c"), []byte("1")))
		require.NoError(t, eng.Delete([]byte("c")))
		v, err := eng.Get([]byte("c"))
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("DeleteMissingIsNotError", func(t *testing.T) {
		require.NoError(t, eng.Delete([]byte("never-existed")))
	})

	t.Run("ScanAscendingAndBounded", func(t *testing.T) {
		require.NoError(t, eng.Set([]byte("scan:1"), []byte("x")))
		require.NoError(t, eng.Set([]byte("scan:2"), []byte("y")))
		require.NoError(t, eng.Set([]byte("scan:3"), []byte("z")))
		require.NoError(t, eng.Set([]byte("scanz:4"), []byte("w")))

		it, err := eng.Scan([]byte("scan:"), []byte("scan;"))
		require.NoError(t, err)
		defer it.Close()

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		require.NoError(t, it.Err())
		require.Equal(t, []string{"scan:1", "scan:2", "scan:3"}, keys)
	})

	t.Run("FlushDoesNotError", func(t *testing.T) {
		require.NoError(t, eng.Flush())
	})

	t.Run("Status", func(t *testing.T) {
		status, err := eng.Status()
		require.NoError(t, err)
		require.NotEmpty(t, status.Name)
	})
}
