package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Run keeps the round clock moving: it ticks once to make sure a round exists, then
// every BroadcastInterval until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Tick(ctx); err != nil {
		return fmt.Errorf("failed to ensure round: %w", err)
	}

	ticker := a.clock.NewTicker(a.rules.BroadcastInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", a.rules.BroadcastInterval).Msg("round keeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("round keeper shutting down")
			return nil
		case <-ticker.Chan():
			if err := a.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("round tick failed")
			}
		}
	}
}
