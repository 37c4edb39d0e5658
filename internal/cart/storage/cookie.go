package storage

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

const (
	BackendCookie = "cookie"

	// MaxCookieBytes caps the URL-encoded payload.
	MaxCookieBytes = 4000
	// CookieItemCap is how many items survive when the payload overflows.
	CookieItemCap = 5
)

// CookieJar reads and writes named cookie values.
type CookieJar interface {
	Cookie(name string) (string, bool)
	SetCookie(name, value string) error
	DeleteCookie(name string) error
}

// Cookie persists the snapshot as one URL-encoded JSON cookie.
type Cookie struct {
	jar  CookieJar
	name string
}

func NewCookie(jar CookieJar, name string) *Cookie {
	return &Cookie{jar: jar, name: name}
}

func (c *Cookie) Backend() string { return BackendCookie }

func (c *Cookie) GetCart() (*cart.State, error) {
	raw, ok := c.jar.Cookie(c.name)
	if !ok || raw == "" {
		return nil, nil
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	state, err := decodeOrClear([]byte(decoded), func() error { return c.jar.DeleteCookie(c.name) })
	return state, storageError(cart.OpClear, BackendCookie, err)
}

// SaveCart writes the snapshot. A payload above MaxCookieBytes keeps only the first
// CookieItemCap items; if that still does not fit, item metadata is dropped as well.
func (c *Cookie) SaveCart(state cart.State) error {
	encoded, err := encodeCookie(state)
	if err != nil {
		return storageError(cart.OpSave, BackendCookie, err)
	}
	if len(encoded) > MaxCookieBytes {
		encoded, err = encodeCookie(cart.Truncate(state, CookieItemCap))
		if err != nil {
			return storageError(cart.OpSave, BackendCookie, err)
		}
	}
	if len(encoded) > MaxCookieBytes {
		encoded, err = encodeCookie(cart.Reduce(state, CookieItemCap))
		if err != nil {
			return storageError(cart.OpSave, BackendCookie, err)
		}
	}
	if len(encoded) > MaxCookieBytes {
		return storageError(cart.OpSave, BackendCookie,
			fmt.Errorf("%w: payload is %d bytes, limit %d", ErrQuotaExceeded, len(encoded), MaxCookieBytes))
	}
	return storageError(cart.OpSave, BackendCookie, c.jar.SetCookie(c.name, encoded))
}

func (c *Cookie) ClearCart() error {
	return storageError(cart.OpClear, BackendCookie, c.jar.DeleteCookie(c.name))
}

func encodeCookie(state cart.State) (string, error) {
	payload, err := cart.EncodeSnapshot(state)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return url.PathEscape(string(payload)), nil
}

// CookieAttributes are applied to every cookie an HTTPCookieJar writes.
type CookieAttributes struct {
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// HTTPCookieJar reads cookies from a request and writes them to the matching response.
// Values written during the request are visible to later reads.
type HTTPCookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	attrs   CookieAttributes
	mu      sync.Mutex
	pending map[string]*string
}

func NewHTTPCookieJar(w http.ResponseWriter, r *http.Request, attrs CookieAttributes) *HTTPCookieJar {
	return &HTTPCookieJar{r: r, w: w, attrs: attrs, pending: make(map[string]*string)}
}

func (j *HTTPCookieJar) Cookie(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if v, ok := j.pending[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPCookieJar) SetCookie(name, value string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cookie := j.cookie(name, value)
	cookie.MaxAge = int(j.attrs.MaxAge.Seconds())
	if err := cookie.Valid(); err != nil {
		return err
	}
	http.SetCookie(j.w, cookie)
	j.pending[name] = &value
	return nil
}

func (j *HTTPCookieJar) DeleteCookie(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cookie := j.cookie(name, "")
	cookie.MaxAge = -1
	http.SetCookie(j.w, cookie)
	j.pending[name] = nil
	return nil
}

func (j *HTTPCookieJar) cookie(name, value string) *http.Cookie {
	path := j.attrs.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   j.attrs.Domain,
		Secure:   j.attrs.Secure,
		HttpOnly: j.attrs.HTTPOnly,
		SameSite: j.attrs.SameSite,
	}
}

// MemoryCookieJar is a CookieJar backed by a map.
type MemoryCookieJar struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryCookieJar() *MemoryCookieJar {
	return &MemoryCookieJar{values: make(map[string]string)}
}

func (j *MemoryCookieJar) Cookie(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.values[name]
	return v, ok
}

func (j *MemoryCookieJar) SetCookie(name, value string) error {
	j.mu.Lock()
	j.values[name] = value
	j.mu.Unlock()
	return nil
}

func (j *MemoryCookieJar) DeleteCookie(name string) error {
	j.mu.Lock()
	delete(j.values, name)
	j.mu.Unlock()
	return nil
}
