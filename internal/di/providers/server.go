package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/stickynotes/stickynotes-server/internal/api"
	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/config"
	"github.com/stickynotes/stickynotes-server/internal/logger"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
	"github.com/stickynotes/stickynotes-server/internal/ratelimit"
	"github.com/stickynotes/stickynotes-server/internal/service"
)

// RateLimiterHandle wraps the per-client rate limiter with shutdown
// capability. Limiter is nil when rate limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.RateLimit.Enabled {
		log.Info("Rate limiting disabled by configuration")
		return &RateLimiterHandle{}, nil
	}

	limiter := ratelimit.PerInterval(cfg.RateLimit.Requests, cfg.RateLimit.Interval, cfg.RateLimit.Burst)
	log.Info("Rate limiting enabled",
		"requests", cfg.RateLimit.Requests,
		"interval", cfg.RateLimit.Interval,
		"burst", cfg.RateLimit.Burst,
	)
	return &RateLimiterHandle{Limiter: limiter}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Storage: do.MustInvoke[*service.Storage](i),
		Tokens:  do.MustInvoke[*auth.TokenService](i),
		Bus:     do.MustInvoke[*AuthBusHandle](i).Bus,
		Cache:   do.MustInvoke[*CacheHandle](i).Cache,
		Metrics: do.MustInvoke[*metrics.Metrics](i),
		Limiter: do.MustInvoke[*RateLimiterHandle](i).Limiter,
	}

	handler := api.NewServer(services, cfg.Server.CORSOrigins, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
