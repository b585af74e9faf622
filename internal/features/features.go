package features

import (
	"sort"
	"sync"
)

// Flag names understood by the storefront.
const (
	// FeatureCacheEnabled caches shipping quotes in the key-value store
	FeatureCacheEnabled = "cache_enabled"
	// FeatureEventHooksEnabled forwards offer changes to external subscribers
	FeatureEventHooksEnabled = "event_hooks_enabled"
	// FeatureSpecialTriggerDraws exposes the explicit special-offer trigger
	FeatureSpecialTriggerDraws = "special_trigger_draws"
	// FeatureShippingBreaker wraps the quote provider in a circuit breaker
	FeatureShippingBreaker = "shipping_breaker"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags. Unknown flags read as disabled.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates an empty feature flag manager.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]*FeatureFlag)}
}

// NewDefaultManager registers every storefront flag with the given overrides.
// Flags missing from overrides use their built-in default.
func NewDefaultManager(overrides map[string]bool) *Manager {
	m := NewManager()
	m.Register(FeatureCacheEnabled, true, "Cache shipping quotes")
	m.Register(FeatureEventHooksEnabled, true, "Publish offer changes to subscribers and Kafka")
	m.Register(FeatureSpecialTriggerDraws, false, "Allow explicit special-offer triggers")
	m.Register(FeatureShippingBreaker, true, "Trip a circuit breaker on a failing quote provider")

	for name, enabled := range overrides {
		m.Set(name, enabled)
	}
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	if m == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Set changes a registered flag. Unregistered names are ignored.
func (m *Manager) Set(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = enabled
	}
}

// Enable enables a feature flag.
func (m *Manager) Enable(name string) { m.Set(name, true) }

// Disable disables a feature flag.
func (m *Manager) Disable(name string) { m.Set(name, false) }

// List returns a snapshot of every flag, sorted by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
