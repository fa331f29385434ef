package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("column type registry is frozen")

	// ErrTypeNotFound is returned for unknown type ids.
	ErrTypeNotFound = errors.New("column type not found")
)

// TypeMetadata describes a registered column type.
type TypeMetadata struct {
	// Definition is the registered implementation.
	Definition core.Definition

	// Capabilities summarises the optional contracts it implements.
	Capabilities core.Capabilities

	// RegisteredAt is when the type was first registered.
	RegisteredAt time.Time

	// UpdatedAt is when the entry was last replaced.
	UpdatedAt time.Time
}

// Registry maps type ids to column type definitions. It is written during
// startup and then frozen.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]*TypeMetadata
	frozen    bool
	lifecycle *LifecycleManager
}

// New creates an empty registry. A nil lifecycle manager gets a fresh one.
func New(lifecycle *LifecycleManager) *Registry {
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	return &Registry{
		types:     make(map[string]*TypeMetadata),
		lifecycle: lifecycle,
	}
}

// Register adds a definition, replacing any existing entry with the same id
// (last registration wins). It fails once the registry is frozen.
func (r *Registry) Register(def core.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %q: %w", idOf(def), ErrRegistryFrozen)
	}
	return r.put(def, false)
}

// Override replaces a definition after Freeze. It is the single explicit
// post-startup mutation; callers must serialize it themselves.
func (r *Registry) Override(def core.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(def, true)
}

func (r *Registry) put(def core.Definition, override bool) error {
	if def == nil {
		return fmt.Errorf("definition cannot be nil")
	}
	meta := def.Meta()
	if meta.ID == "" {
		return fmt.Errorf("definition id cannot be empty")
	}
	if meta.Name == "" {
		return fmt.Errorf("definition %q has no display name", meta.ID)
	}

	existing, replaced := r.types[meta.ID]
	if override && !replaced {
		return fmt.Errorf("override %q: %w", meta.ID, ErrTypeNotFound)
	}

	if err := r.lifecycle.ExecuteRegisterHooks(meta, replaced); err != nil {
		return fmt.Errorf("register hook failed for type %q: %w", meta.ID, err)
	}

	now := time.Now()
	entry := &TypeMetadata{
		Definition:   def,
		Capabilities: core.CapabilitiesOf(def),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if replaced {
		entry.RegisteredAt = existing.RegisteredAt
	}
	r.types[meta.ID] = entry
	return nil
}

// Freeze ends the startup phase. Subsequent Register calls fail.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}
	if err := r.lifecycle.ExecuteFreezeHooks(len(r.types)); err != nil {
		return fmt.Errorf("freeze hook failed: %w", err)
	}
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Get returns the definition for typeID. The bool is false for unknown ids;
// callers fall back to a generic cell.
func (r *Registry) Get(typeID string) (core.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.types[typeID]
	if !ok {
		return nil, false
	}
	return entry.Definition, true
}

// MustGet returns the definition or ErrTypeNotFound.
func (r *Registry) MustGet(typeID string) (core.Definition, error) {
	def, ok := r.Get(typeID)
	if !ok {
		return nil, fmt.Errorf("type %q: %w", typeID, ErrTypeNotFound)
	}
	return def, nil
}

// GetMetadata returns a copy of the registry entry for typeID.
func (r *Registry) GetMetadata(typeID string) (TypeMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.types[typeID]
	if !ok {
		return TypeMetadata{}, fmt.Errorf("type %q: %w", typeID, ErrTypeNotFound)
	}
	return *entry, nil
}

// List returns definitions ordered by category menu position, then display
// name, then id. An empty category lists every type.
func (r *Registry) List(category core.Category) []core.Definition {
	r.mu.RLock()
	defs := make([]core.Definition, 0, len(r.types))
	for _, entry := range r.types {
		if category == "" || entry.Definition.Meta().Category == category {
			defs = append(defs, entry.Definition)
		}
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		a, b := defs[i].Meta(), defs[j].Meta()
		if a.Category.Order() != b.Category.Order() {
			return a.Category.Order() < b.Category.Order()
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return defs
}

// Categories returns the categories that have at least one type, in menu
// order.
func (r *Registry) Categories() []core.Category {
	r.mu.RLock()
	present := make(map[core.Category]bool)
	for _, entry := range r.types {
		present[entry.Definition.Meta().Category] = true
	}
	r.mu.RUnlock()

	out := make([]core.Category, 0, len(present))
	for _, c := range core.Categories {
		if present[c] {
			out = append(out, c)
			delete(present, c)
		}
	}
	extra := make([]core.Category, 0, len(present))
	for c := range present {
		extra = append(extra, c)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// GetLifecycleManager returns the lifecycle manager associated with this registry.
func (r *Registry) GetLifecycleManager() *LifecycleManager {
	return r.lifecycle
}

func idOf(def core.Definition) string {
	if def == nil {
		return ""
	}
	return def.Meta().ID
}
