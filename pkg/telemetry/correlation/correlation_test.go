package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "01HZZZ")
	ctx, cid := EnsureCorrelationID(ctx)

	assert.Equal(t, "01HZZZ", cid)
	assert.Equal(t, "01HZZZ", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())

	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
	assert.Equal(t, map[string]string{"correlation_id": cid}, Metadata(ctx))
}
