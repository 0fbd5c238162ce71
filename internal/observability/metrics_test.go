package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionMetrics_NoopProvider(t *testing.T) {
	am, err := NewActionMetrics()
	require.NoError(t, err)
	require.NotNil(t, am)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		am.RecordPerformed(ctx, "power-strike", 3*time.Millisecond)
		am.RecordFailed(ctx, "power-strike", "on_cooldown")
		am.RecordFizzled(ctx, "power-strike")
		am.RecordRegenTick(ctx, 0)
		am.RecordRegenTick(ctx, 4)
	})
}
