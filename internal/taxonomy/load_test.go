package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTempFile(t, `
version: "v2"
labels: [delivery, pricing, other]
fallback: other
other_category: Other
not_applicable: ["n.v.t."]
categories:
  delivery: Delivery
  pricing: Price
  other: Other
synonyms:
  bezorgtijd: delivery
`)

		tab, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "v2", tab.Version)

		got, known := tab.Normalize("bezorgtijd")
		assert.True(t, known)
		assert.Equal(t, "delivery", got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeTempFile(t, "labels: [unclosed")
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("no labels", func(t *testing.T) {
		path := writeTempFile(t, `version: "v2"`)
		_, err := LoadFile(path)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no labels")
	})

	t.Run("inconsistent table rejected", func(t *testing.T) {
		path := writeTempFile(t, `
version: "v2"
labels: [delivery]
fallback: missing
categories:
  delivery: Delivery
`)
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}
