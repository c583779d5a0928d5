package app

import (
	"context"
	"time"

	"github.com/ohq-tools/ohqtui/internal/live"
	"github.com/ohq-tools/ohqtui/internal/syncer"
)

const defaultFallbackInterval = 10 * time.Second

// StartFallbackRefresher launches a background goroutine that keeps
// bound resources fresh by polling while the push channel is down.
// While the channel is connected it does nothing: notifications drive
// freshness. It returns immediately.
func StartFallbackRefresher(ctx context.Context, push *live.Client, controller *syncer.Controller, interval time.Duration) {
	if interval <= 0 {
		interval = defaultFallbackInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if push.Connected() {
				continue
			}
			controller.PokeBound()
		}
	}()
}
