package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const DefaultJanitorInterval = time.Hour

// StartJanitor periodically purges scoped values older than ttl.
func (s *SQLStore) StartJanitor(ctx context.Context, interval, ttl time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	go s.janitorLoop(ctx, interval, ttl, log)
}

func (s *SQLStore) janitorLoop(ctx context.Context, interval, ttl time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeOlderThan(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Error().Err(err).Msg("purge scoped store")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged stale scoped values")
			}
		}
	}
}
