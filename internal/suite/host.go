package suite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/Netflix/x-test/internal/bus"
)

// ErrPageNotFound is returned when no page is registered for an href.
var ErrPageNotFound = errors.New("page not found")

// Loader resolves a test href to the page that declares its contents.
type Loader interface {
	Load(href string) (SetupFunc, error)
}

// Registry is an in-memory Loader keyed by URL path. Query and fragment are
// ignored when matching, so flags carried on a root href do not affect lookup.
type Registry struct {
	mu    sync.RWMutex
	pages map[string]SetupFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]SetupFunc)}
}

// Register binds setup to the path of href, replacing any previous page.
func (r *Registry) Register(href string, setup SetupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[pagePath(href)] = setup
}

// Load implements Loader.
func (r *Registry) Load(href string) (SetupFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	setup, ok := r.pages[pagePath(href)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, href)
	}
	return setup, nil
}

func pagePath(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return u.Path
}

// Host owns the execution contexts of a run. At most one is live: opening a
// context tears down the previous one first. The last context stays up until
// Close.
type Host struct {
	bus    *bus.Bus
	loader Loader
	opts   []Option

	mu      sync.Mutex
	current *frame
}

type frame struct {
	suite  *Suite
	cancel context.CancelFunc
}

// NewHost creates a host. opts are applied to every suite it starts.
func NewHost(b *bus.Bus, loader Loader, opts ...Option) *Host {
	return &Host{bus: b, loader: loader, opts: opts}
}

// Open starts a fresh context for testID at href. The suite is subscribed to
// the bus before Open returns. A load failure is returned and nothing is
// started.
func (h *Host) Open(ctx context.Context, testID, href string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current.cancel()
		h.current = nil
	}

	setup, err := h.loader.Load(href)
	if err != nil {
		return fmt.Errorf("load %s: %w", href, err)
	}
	frameCtx, cancel := context.WithCancel(ctx)
	s := New(h.bus, testID, href, h.opts...)
	s.Start(frameCtx, setup)
	h.current = &frame{suite: s, cancel: cancel}
	return nil
}

// live returns the live suite, or nil.
func (h *Host) live() *Suite {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	return h.current.suite
}

// Close tears down the live context, if any.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current.cancel()
		h.current = nil
	}
}
