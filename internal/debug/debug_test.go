package debug

import (
	"context"
	"log/slog"
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
)

func TestInitTogglesLevel(t *testing.T) {
	ctx := context.Background()

	// Before Init everything is discarded and disabled.
	testutil.AssertEqual(t, Enabled(), false)
	Debug("dropped", "k", "v")

	Init(true)
	testutil.AssertEqual(t, Enabled(), true)
	testutil.AssertEqual(t, Logger().Enabled(ctx, slog.LevelDebug), true)

	Init(false)
	testutil.AssertEqual(t, Enabled(), false)
	testutil.AssertEqual(t, Logger().Enabled(ctx, slog.LevelDebug), false)

	scoped := With("engine", "sqlite")
	scoped.Debug("dropped too")
}
