// Package provider opens the cart that belongs to an HTTP request: it resolves the cart id
// cookie, builds the storage adapter for the configured backend and returns an initialized
// manager.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/manager"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/store"
	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/metrics"
	"github.com/google/uuid"
)

// CartIDCookie carries the opaque id that keys server-side snapshots.
const CartIDCookie = "pf_cart_id"

// Deps are the shared clients a backend may need. Only the ones the configured backend
// uses must be set.
type Deps struct {
	Redis   storage.RedisClient
	DB      *db.Client
	Local   storage.KeyValueStore
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
}

type Provider struct {
	backend  string
	cart     config.CartConfig
	attrs    storage.CookieAttributes
	redisTTL time.Duration
	redis    storage.RedisClient
	db       *db.Client
	local    storage.KeyValueStore
	metrics  *metrics.CartMetrics
	log      *logger.Logger

	memory   *retained[*storage.Memory]
	sessions *retained[*storage.SessionKeyValueStore]
}

// New checks that deps cover the configured backend.
func New(cfg *config.Config, deps Deps) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch cfg.Cart.Backend {
	case config.BackendRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
	case config.BackendRecords:
		if deps.DB == nil {
			return nil, fmt.Errorf("records backend requires a database client")
		}
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	idleTTL := cfg.LocalKV.SessionIdleTTL
	newSession := func() *storage.SessionKeyValueStore {
		return storage.NewSessionKeyValueStore(storage.WithIdleTTL(idleTTL))
	}
	return &Provider{
		backend: cfg.Cart.Backend,
		cart:    cfg.Cart,
		attrs: storage.CookieAttributes{
			Path:     cfg.Cookie.Path,
			Domain:   cfg.Cookie.Domain,
			MaxAge:   cfg.Cookie.MaxAge,
			Secure:   cfg.Cookie.Secure,
			HTTPOnly: cfg.Cookie.HTTPOnly,
			SameSite: cfg.Cookie.SameSiteMode(),
		},
		redisTTL: cfg.Redis.CartTTL,
		redis:    deps.Redis,
		db:       deps.DB,
		local:    deps.Local,
		metrics:  deps.Metrics,
		log:      log,
		memory:   newRetained(idleTTL, storage.NewMemory, memoryIsEmpty),
		sessions: newRetained(idleTTL, newSession, sessionIsEmpty),
	}, nil
}

// Backend is the configured backend name.
func (p *Provider) Backend() string { return p.backend }

// Cart is an opened, initialized cart. Close it when the request is done.
type Cart struct {
	*manager.Manager
	ID string

	release func()
}

// Close detaches the manager, waits for pending writes and lets go of the in-process
// store backing the cart.
func (c *Cart) Close() {
	c.Manager.Close()
	c.Manager.Store().Close()
	if c.release != nil {
		c.release()
	}
}

// Open resolves (or issues) the cart id for r and loads its cart.
func (p *Provider) Open(w http.ResponseWriter, r *http.Request) (*Cart, error) {
	jar := storage.NewHTTPCookieJar(w, r, p.attrs)
	id, err := p.cartID(jar)
	if err != nil {
		return nil, err
	}

	ctx := p.log.WithField(r.Context(), "cart_id", id)
	adapter, release := p.adapter(jar, id)
	s := store.New(store.Options{
		Storage:          adapter,
		Currency:         p.cart.Currency,
		TaxRate:          p.cart.TaxRate,
		Shipping:         p.cart.Shipping,
		ValidateOnChange: store.Bool(p.cart.ValidateOnChange),
		StorageKey:       p.cart.StorageKey,
		Metadata:         &cart.StateMetadata{CartID: id, Currency: p.cart.Currency},
		Logger:           p.log,
		Metrics:          p.metrics,
		WriteTimeout:     p.cart.WriteTimeout,
	})
	m := manager.New(s, p.log)
	m.Subscribe(p.logEvent(ctx))
	if err := m.Initialize(ctx); err != nil {
		m.Close()
		s.Close()
		release()
		return nil, err
	}
	return &Cart{Manager: m, ID: id, release: release}, nil
}

// CartID returns the cart id carried by r, or "" when the request has none yet.
func CartID(r *http.Request) string {
	c, err := r.Cookie(CartIDCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func (p *Provider) cartID(jar storage.CookieJar) (string, error) {
	if raw, ok := jar.Cookie(CartIDCookie); ok {
		if _, err := uuid.Parse(raw); err == nil {
			return raw, nil
		}
	}
	id := uuid.NewString()
	if err := jar.SetCookie(CartIDCookie, id); err != nil {
		return "", fmt.Errorf("issue cart id cookie: %w", err)
	}
	return id, nil
}

// adapter builds the storage adapter for id. release must be called once the request is
// done with it.
func (p *Provider) adapter(jar storage.CookieJar, id string) (*storage.Adapter, func()) {
	key := scopedKey(p.cart.StorageKey, id)
	switch p.backend {
	case config.BackendCookie:
		return storage.Sync(storage.NewCookie(jar, p.cart.StorageKey)), func() {}
	case config.BackendRedis:
		return storage.Async(storage.NewRedis(p.redis, key, p.redisTTL)), func() {}
	case config.BackendRecords:
		return storage.Async(storage.NewRecords(p.db, key, p.cart.MaxSnapshotBytes)), func() {}
	case config.BackendLocal:
		if p.local != nil && storage.Probe(p.local) == nil {
			return storage.Sync(storage.NewLocalStorage(p.local, key)), func() {}
		}
		return storage.Default(nil, p.sessions.acquire(id), key), func() { p.sessions.release(id) }
	default:
		return storage.Sync(p.memory.acquire(id)), func() { p.memory.release(id) }
	}
}

func (p *Provider) logEvent(ctx context.Context) manager.Listener {
	return func(ev manager.Event) error {
		fields := map[string]any{
			"event_type": string(ev.Type),
			"item_count": ev.Cart.Totals.ItemCount,
		}
		if ev.ItemID != "" {
			fields["item_id"] = ev.ItemID
		}
		if ev.Type == manager.EventError {
			p.log.Warn(p.log.WithFields(ctx, fields), "cart.storage_degraded")
			return nil
		}
		p.log.Debug(p.log.WithFields(ctx, fields), "cart.event")
		return nil
	}
}

func scopedKey(storageKey, id string) string {
	return strings.Trim(storageKey, ":") + ":" + id
}
