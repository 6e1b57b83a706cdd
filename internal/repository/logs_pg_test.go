package repository

import (
	"strings"
	"testing"

	"github.com/logvault/logvault/internal/model"
	"github.com/stretchr/testify/assert"
)

// Repeated headers are stored as duplicate object keys in insertion
// order. A jsonb column would sort the keys and keep only the last
// duplicate, so the header columns must stay plain json.
func TestLogsSchemaHeaderColumnsStayTextPreserving(t *testing.T) {
	norm := strings.Join(strings.Fields(logsSchema), " ")
	assert.Contains(t, norm, "resp_headers JSON NOT NULL")
	assert.Contains(t, norm, "req_headers JSON NOT NULL")
	assert.NotContains(t, strings.ToUpper(norm), "JSONB")
}

func TestHeaderBlobKeepsRepeatedKeysInOrder(t *testing.T) {
	var h model.HeaderMap
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	v, err := h.Value()
	assert.NoError(t, err)
	assert.Equal(t, `{"Set-Cookie":["a=1"],"Set-Cookie":["b=2"]}`, v)

	var back model.HeaderMap
	assert.NoError(t, back.Scan(v))
	assert.Equal(t, h, back)
}
