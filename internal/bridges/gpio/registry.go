package gpio

import (
	"fmt"
	"sync"
)

// Provider supplies an ordered set of bindings.
type Provider interface {
	// Bindings returns the provider's bindings in declaration order.
	Bindings() []*Binding

	// ConfigFor returns the binding for item, if this provider has one.
	ConfigFor(item string) (*Binding, bool)
}

// Resolver maps a telemetry identity back to the binding that owns it.
// Pin numbers and sensor device ids are separate namespaces: a sensor
// whose id is "4" never answers for pin 4.
type Resolver interface {
	// ResolvePin scans input and output bindings for pin n.
	ResolvePin(n int) (*Binding, bool)

	// ResolveDevice scans temperature bindings for device id.
	ResolveDevice(id string) (*Binding, bool)
}

// ItemSet is a fixed Provider built from a list of bindings, typically
// loaded from an items file.
type ItemSet struct {
	bindings []*Binding
	byItem   map[string]*Binding
}

// NewItemSet builds an ItemSet. Item names must be unique.
func NewItemSet(bindings ...*Binding) (*ItemSet, error) {
	s := &ItemSet{
		bindings: make([]*Binding, 0, len(bindings)),
		byItem:   make(map[string]*Binding, len(bindings)),
	}
	for _, b := range bindings {
		if _, dup := s.byItem[b.Item]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, b.Item)
		}
		s.bindings = append(s.bindings, b)
		s.byItem[b.Item] = b
	}
	return s, nil
}

// Bindings returns the bindings in declaration order.
func (s *ItemSet) Bindings() []*Binding {
	out := make([]*Binding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// ConfigFor returns the binding for item.
func (s *ItemSet) ConfigFor(item string) (*Binding, bool) {
	b, ok := s.byItem[item]
	return b, ok
}

// Registry aggregates providers and answers every binding query the
// bridge makes: item lookup, endpoint enumeration and telemetry
// resolution.
//
// Resolution is a linear scan over all bindings of all providers in
// registration order, and the first match wins. Duplicated pin numbers
// or device ids are therefore allowed and deterministic.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: append([]Provider(nil), providers...)}
}

// AddProvider appends a provider; its bindings are scanned after those
// already registered.
func (r *Registry) AddProvider(p Provider) {
	r.mu.Lock()
	r.providers = append(r.providers, p)
	r.mu.Unlock()
}

// RemoveProvider drops a provider. Endpoints referenced only by its
// bindings are pruned on the next reconciliation.
func (r *Registry) RemoveProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.providers {
		if existing == p {
			r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
			return
		}
	}
}

// Bindings returns every binding of every provider in scan order.
func (r *Registry) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Binding
	for _, p := range r.providers {
		out = append(out, p.Bindings()...)
	}
	return out
}

// ConfigFor returns the binding for item from the first provider that
// declares it.
func (r *Registry) ConfigFor(item string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if b, ok := p.ConfigFor(item); ok {
			return b, true
		}
	}
	return nil, false
}

// ResolvePin returns the first input or output binding on pin n. An
// output may shadow a later input on the same pin; callers check the mode.
func (r *Registry) ResolvePin(n int) (*Binding, bool) {
	return r.find(func(b *Binding) bool {
		pin, ok := b.PinNumber()
		return ok && pin == n
	})
}

// ResolveDevice returns the first temperature binding for device id.
func (r *Registry) ResolveDevice(id string) (*Binding, bool) {
	return r.find(func(b *Binding) bool {
		dev, ok := b.SensorID()
		return ok && dev == id
	})
}

func (r *Registry) find(match func(*Binding) bool) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		for _, b := range p.Bindings() {
			if b.Role != nil && match(b) {
				return b, true
			}
		}
	}
	return nil, false
}

// Endpoints returns each distinct endpoint referenced by any binding, in
// first-seen order.
func (r *Registry) Endpoints() []Endpoint {
	seen := make(map[Endpoint]struct{})
	var out []Endpoint
	for _, b := range r.Bindings() {
		if _, ok := seen[b.Endpoint]; ok {
			continue
		}
		seen[b.Endpoint] = struct{}{}
		out = append(out, b.Endpoint)
	}
	return out
}

// Len returns the number of bindings across all providers.
func (r *Registry) Len() int {
	return len(r.Bindings())
}
