package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often idle sessions are evicted.
const DefaultSweepInterval = time.Minute

// StartSweeper evicts expired sessions on a fixed schedule until ctx is done
// or the returned stop function is called.
func StartSweeper(ctx context.Context, m *Manager, interval time.Duration) (func(), error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := m.Sweep(ctx); n > 0 {
			log.Info().
				Int("expired", n).
				Int("active", m.Len()).
				Msg("vault_sessions_expired")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("registering session sweep every %s: %w", interval, err)
	}
	c.Start()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return cancel, nil
}
