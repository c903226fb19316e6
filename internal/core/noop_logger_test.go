package core

import (
	"context"
	"testing"
)

// TestNoopLogger exercises every noop collaborator.
func TestNoopLogger(_ *testing.T) {
	logger := noopLogger{}

	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")

	ctx := context.Background()
	noopMetrics{}.Observe(ctx, "op", true, 0)
	_, span := noopTracer{}.Start(ctx, "op")
	span.End(nil)
}
