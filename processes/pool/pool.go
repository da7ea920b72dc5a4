// Package pool drives time-based flushes of the stream ingestion buffer.
package pool

import (
	"context"
	"log/slog"
	"time"
)

func StartPool(ctx context.Context, interval time.Duration, flush func(ctx context.Context, reason string) error) {
	slog.Info("Starting pool timer", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := flush(ctx, "time"); err != nil {
				slog.Warn("Flushing via pool failed", slog.Any("err", err))
			}
		}
	}
}
