package safego

import (
	"context"
	"fmt"
	"runtime/debug"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// Execute runs fn in a new goroutine, logging any panic with a stack trace
// under the given name.
func Execute(ctx context.Context, logger domain.Logger, goroutineName string, fn func()) {
	go func() {
		defer recoverAndLog(ctx, logger, goroutineName, nil)
		fn()
	}()
}

// Call runs fn on the current goroutine. A panic is logged and returned as
// recovered; nil means fn completed normally.
func Call(ctx context.Context, logger domain.Logger, name string, fn func()) (recovered any) {
	defer recoverAndLog(ctx, logger, name, &recovered)
	fn()
	return nil
}

func recoverAndLog(ctx context.Context, logger domain.Logger, name string, out *any) {
	r := recover()
	if r == nil {
		return
	}
	// ctx may already be cancelled; logging must still work.
	logCtx := ctx
	if ctx.Err() != nil {
		logCtx = context.Background()
	}
	logger.Error(logCtx, fmt.Sprintf("Panic recovered in %s", name),
		"panic_info", fmt.Sprintf("%v", r),
		"stacktrace", string(debug.Stack()),
	)
	if out != nil {
		*out = r
	}
}
