package main

import (
	"context"
	"log"
	"time"

	"bancho/server/internal/multiplayer"
	"bancho/server/internal/session"
)

// RunMetrics logs session/match counts every interval until ctx is canceled.
func RunMetrics(ctx context.Context, sessions *session.Registry, matches *multiplayer.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clients := sessions.Count()
			live := matches.All()
			if clients > 0 || len(live) > 0 {
				log.Printf("[metrics] sessions=%d matches=%d", clients, len(live))
			}
		}
	}
}
