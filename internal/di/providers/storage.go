package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/stickynotes/stickynotes-server/internal/api"
	"github.com/stickynotes/stickynotes-server/internal/cache"
	"github.com/stickynotes/stickynotes-server/internal/config"
	"github.com/stickynotes/stickynotes-server/internal/logger"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
	"github.com/stickynotes/stickynotes-server/internal/query"
	"github.com/stickynotes/stickynotes-server/internal/service"
	"github.com/stickynotes/stickynotes-server/internal/store"
	"github.com/stickynotes/stickynotes-server/internal/store/docstore"
	"github.com/stickynotes/stickynotes-server/internal/store/sqlite"
	"github.com/stickynotes/stickynotes-server/internal/validation"
)

// BackendHandle wraps the configured storage backend with shutdown capability.
type BackendHandle struct {
	store.Backend
}

// Shutdown implements do.Shutdownable.
func (h *BackendHandle) Shutdown() error {
	return h.Close()
}

// ProvideBackend opens the backend selected by STORAGE_BACKEND.
func ProvideBackend(i do.Injector) (*BackendHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	var (
		backend store.Backend
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		backend, err = sqlite.Open(cfg.Storage.SQLitePath(), log.Component("sqlite"),
			sqlite.WithCountMode(cfg.Storage.CountMode))
	case config.BackendDocstore:
		backend, err = docstore.Open(cfg.Storage.DocstorePath(), log.Component("docstore"),
			docstore.WithCountMode(cfg.Storage.CountMode))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Storage backend initialized", "backend", backend.Name())

	return &BackendHandle{Backend: store.Instrument(backend, m)}, nil
}

// CacheHandle wraps the local cache and the KV it writes to.
type CacheHandle struct {
	*cache.Cache
	kv cache.KV
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	if h.kv == nil {
		return nil
	}
	return h.kv.Close()
}

// ProvideCache provides the local read cache. A disabled cache is still a
// valid *cache.Cache; it misses every read.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	var kv cache.KV
	switch {
	case cfg.Cache.Disabled:
		log.Info("Local cache disabled by configuration")
	case cfg.Cache.InMemory:
		kv = cache.NewMemoryKV()
		log.Info("Local cache initialized", "in_memory", true)
	default:
		badgerKV, err := cache.OpenBadgerKV(cfg.Cache.Path)
		if err != nil {
			// The cache is advisory; run without it rather than refusing to start.
			log.WithError(err).WithFields(map[string]any{"path": cfg.Cache.Path}).
				Warn("Local cache unavailable, continuing without it")
			break
		}
		kv = badgerKV
		log.Info("Local cache initialized", "path", cfg.Cache.Path)
	}

	c := cache.New(kv, log.Component("cache"), cache.WithMetrics(m))
	return &CacheHandle{Cache: c, kv: kv}, nil
}

// ProvideQueryClient provides the cached-query client.
func ProvideQueryClient(i do.Injector) (*query.Client, error) {
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return query.NewClient(cacheHandle.Cache, log.Component("query"), query.WithMetrics(m)), nil
}

// ProvideValidator provides the input validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideStorage provides the storage facade. Over HTTP the current user is
// whoever the request's bearer token names.
func ProvideStorage(i do.Injector) (*service.Storage, error) {
	backendHandle := do.MustInvoke[*BackendHandle](i)
	queries := do.MustInvoke[*query.Client](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStorage(backendHandle.Backend, queries, api.RequestIdentity, v, log.Component("storage")), nil
}
