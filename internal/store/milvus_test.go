package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterExpr(t *testing.T) {
	expr, err := filterExpr(nil)
	require.NoError(t, err)
	assert.Equal(t, "", expr)

	expr, err = filterExpr(map[string]string{"document_id": "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, `document_id == "doc-1"`, expr)

	expr, err = filterExpr(map[string]string{"chunk_index": "3"})
	require.NoError(t, err)
	assert.Equal(t, `chunk_index == 3`, expr)

	expr, err = filterExpr(map[string]string{"source": "manual"})
	require.NoError(t, err)
	assert.Equal(t, `metadata["source"] == "manual"`, expr)

	// deterministic ordering regardless of map iteration
	expr, err = filterExpr(map[string]string{"source": "manual", "document_id": "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, `document_id == "doc-1" && metadata["source"] == "manual"`, expr)
}

func TestFilterExprRejectsNonNumericChunkIndex(t *testing.T) {
	for _, v := range []string{"abc", `0 || user_id != ""`, "1; drop", ""} {
		_, err := filterExpr(map[string]string{"chunk_index": v})
		assert.Error(t, err, "value %q", v)
	}
}

func TestEscapeExpr(t *testing.T) {
	assert.Equal(t, `plain`, escapeExpr(`plain`))
	assert.Equal(t, `with \"quotes\"`, escapeExpr(`with "quotes"`))
	assert.Equal(t, `back\\slash`, escapeExpr(`back\slash`))
	assert.Equal(t, `both \\ and \"`, escapeExpr(`both \ and "`))
}
