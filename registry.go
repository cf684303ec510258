package gstdecoder

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// FactoryName is the key this decoder registers itself under.
const FactoryName = "gstreamer"

// FactoryFunc builds a decoder bound to the given runtime.
type FactoryFunc func(rt *Runtime) *VideoDecoder

// Registry maps decoder factory names to constructors. The host's player
// consults it at stream-open time; which factory actually gets used is
// governed by the host's settings, not by registration order.
type Registry struct {
	mu        sync.Mutex
	factories map[string]FactoryFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FactoryFunc)}
}

// Register adds a factory under the given name. Registering the same name
// twice is an error.
func (g *Registry) Register(name string, fn FactoryFunc) error {
	if name == "" {
		return fmt.Errorf("gst-decoder: factory name is required")
	}
	if fn == nil {
		return fmt.Errorf("gst-decoder: factory func is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.factories[name]; dup {
		return fmt.Errorf("gst-decoder: factory %q already registered", name)
	}
	g.factories[name] = fn

	slog.Debug("gst-decoder: factory registered", "name", name)
	return nil
}

// Names returns the registered factory names, sorted.
func (g *Registry) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.factories))
	for name := range g.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds a decoder from the named factory. It returns (nil, nil)
// when the runtime's settings disable this decoder family, so the caller
// can fall through to the next candidate without treating it as a failure.
// An unregistered name is an error.
func (g *Registry) Create(name string, rt *Runtime) (*VideoDecoder, error) {
	if rt == nil {
		return nil, fmt.Errorf("gst-decoder: runtime is required")
	}
	if !rt.settings.GetBool(SettingEnabled) {
		slog.Debug("gst-decoder: disabled by settings", "key", SettingEnabled)
		return nil, nil
	}

	g.mu.Lock()
	fn, ok := g.factories[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("gst-decoder: no factory registered as %q", name)
	}
	return fn(rt), nil
}

// RegisterDefault registers the standard decoder factory under FactoryName.
func RegisterDefault(g *Registry) error {
	return g.Register(FactoryName, NewVideoDecoder)
}
