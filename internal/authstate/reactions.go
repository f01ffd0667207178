package authstate

import (
	"context"
	"log/slog"

	"github.com/stickynotes/stickynotes-server/internal/cache"
)

// ClearCacheOnSignOut purges the signed-out user's cache entries, and records
// the signed-in user, for every event on sub. It blocks until the
// subscription closes; run it in its own goroutine.
func ClearCacheOnSignOut(ctx context.Context, sub *Subscription, c *cache.Cache, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for event := range sub.C {
		switch event.Type {
		case EventSignedIn:
			if event.User != nil {
				c.RememberUser(ctx, event.User.ID)
			}
		case EventSignedOut:
			userID := ""
			if event.User != nil {
				userID = event.User.ID
			} else if remembered, ok := c.RememberedUser(ctx); ok {
				userID = remembered
			}
			if userID == "" {
				continue
			}
			c.ClearUserCache(ctx, userID)
			logger.Info("cleared cache after sign-out", slog.String("user_id", userID))
		}
	}
}
