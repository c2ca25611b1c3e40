package correlation

import (
	"context"
	"time"

	"github.com/campushq/paycore/internal/correlation/domain"
	"github.com/campushq/paycore/internal/correlation/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("correlation",
	fx.Provide(store.New),
	fx.Invoke(runSweeper),
)

// runSweeper evicts expired pending orders in the background for the life
// of the process.
func runSweeper(lc fx.Lifecycle, st domain.Store, log *zap.Logger) {
	log = log.Named("correlation.sweeper")
	done := make(chan struct{})
	stopped := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(stopped)
				ticker := time.NewTicker(store.SweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
						if _, err := st.Sweep(ctx); err != nil {
							log.Warn("sweep failed", zap.Error(err))
						}
						cancel()
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			select {
			case <-stopped:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
