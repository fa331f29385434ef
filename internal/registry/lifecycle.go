package registry

import (
	"sync"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// LifecycleHook is notified of registry events. Hooks run synchronously
// under the registry lock and must not call back into the registry.
type LifecycleHook interface {
	// OnRegister is called before a definition is stored. replaced is true
	// when an existing entry with the same id is being replaced. Returning an
	// error aborts the registration.
	OnRegister(meta core.Meta, replaced bool) error

	// OnFreeze is called before the registry is frozen with the number of
	// registered types. Returning an error keeps the registry open.
	OnFreeze(count int) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook.
type LifecycleHookFunc struct {
	OnRegisterFunc func(meta core.Meta, replaced bool) error
	OnFreezeFunc   func(count int) error
}

// OnRegister calls the OnRegisterFunc if it's not nil.
func (f LifecycleHookFunc) OnRegister(meta core.Meta, replaced bool) error {
	if f.OnRegisterFunc != nil {
		return f.OnRegisterFunc(meta, replaced)
	}
	return nil
}

// OnFreeze calls the OnFreezeFunc if it's not nil.
func (f LifecycleHookFunc) OnFreeze(count int) error {
	if f.OnFreezeFunc != nil {
		return f.OnFreezeFunc(count)
	}
	return nil
}

// LifecycleManager holds the hooks of a registry.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]LifecycleHook, 0),
	}
}

// RegisterHook appends a hook. Hooks run in registration order.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteRegisterHooks runs every OnRegister hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteRegisterHooks(meta core.Meta, replaced bool) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnRegister(meta, replaced); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteFreezeHooks runs every OnFreeze hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteFreezeHooks(count int) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnFreeze(count); err != nil {
			return err
		}
	}
	return nil
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
