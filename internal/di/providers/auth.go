package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/authstate"
	"github.com/stickynotes/stickynotes-server/internal/config"
	"github.com/stickynotes/stickynotes-server/internal/logger"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Auth.KeyPath)
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"key_path", cfg.Auth.KeyPath,
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(authKey, cfg.Auth.TokenDuration)
}

// AuthBusHandle wraps the auth-state bus with its context for lifecycle
// management.
type AuthBusHandle struct {
	*authstate.Bus
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *AuthBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Bus.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideAuthBus starts the auth-state bus and wires the sign-out cache purge
// to it.
func ProvideAuthBus(i do.Injector) (*AuthBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)

	bus := authstate.NewBus(log.Component("authstate"), m)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)

	sub, err := bus.Subscribe()
	if err != nil {
		cancel()
		return nil, err
	}
	go authstate.ClearCacheOnSignOut(ctx, sub, cacheHandle.Cache, log.Component("cache"))

	log.Info("Auth-state bus started")

	return &AuthBusHandle{Bus: bus, cancel: cancel}, nil
}

// ProvideAuthState provides the app-state store, kept in step with the bus.
func ProvideAuthState(i do.Injector) (*authstate.Store, error) {
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*AuthBusHandle](i)

	st := authstate.NewStore(log.Component("authstate"))
	st.OnChange(func(s authstate.State) {
		uid := ""
		if s.User != nil {
			uid = s.User.ID
		}
		log.Debug("Auth state changed",
			slog.Bool("authenticated", s.IsAuthenticated),
			slog.String("user_id", uid),
			slog.String("auth_type", string(s.AuthType)),
		)
	})

	sub, err := busHandle.Subscribe()
	if err != nil {
		return nil, err
	}
	go st.Follow(sub)

	return st, nil
}
