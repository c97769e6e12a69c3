package observability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// FlushTelemetry closes outbound sinks (event writer, cache clients) and then syncs logs.
// Metrics are pull-based and need no flush. Call during graceful shutdown after
// in-flight requests have drained. Sinks are closed in order; all are attempted.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, sinks ...io.Closer) error {
	var errs []error
	for _, s := range sinks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
