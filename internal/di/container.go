// Package di provides dependency injection configuration for the sticky notes
// server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/authstate"
	"github.com/stickynotes/stickynotes-server/internal/config"
	"github.com/stickynotes/stickynotes-server/internal/di/providers"
	"github.com/stickynotes/stickynotes-server/internal/logger"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
	"github.com/stickynotes/stickynotes-server/internal/query"
	"github.com/stickynotes/stickynotes-server/internal/service"
	"github.com/stickynotes/stickynotes-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideBackend)
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideQueryClient)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideStorage)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideAuthBus)
	do.Provide(injector, providers.ProvideAuthState)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[*providers.BackendHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*query.Client](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*service.Storage](injector)

	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.AuthBusHandle](injector)
	_ = do.MustInvoke[*authstate.Store](injector)

	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
