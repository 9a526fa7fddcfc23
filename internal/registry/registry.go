// Package registry holds the named OCR engines and layout detectors
// available to pipeline runs.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/clerkops/formbench/internal/engine"
	"github.com/clerkops/formbench/internal/layout"
)

// Registry holds references to OCR engines and layout detectors.
// It provides thread-safe access and fails fast on unknown names.
type Registry struct {
	mu        sync.RWMutex
	engines   map[string]engine.Engine
	detectors map[string]layout.Detector
	logger    *slog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		engines:   make(map[string]engine.Engine),
		detectors: make(map[string]layout.Detector),
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterEngine registers an OCR engine under its own name.
func (r *Registry) RegisterEngine(e engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Name()] = e
	if r.logger != nil {
		r.logger.Info("registered OCR engine", "name", e.Name())
	}
}

// UnregisterEngine removes an OCR engine by name.
func (r *Registry) UnregisterEngine(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, name)
	if r.logger != nil {
		r.logger.Info("unregistered OCR engine", "name", name)
	}
}

// RegisterDetector registers a layout detector under its own name.
func (r *Registry) RegisterDetector(d layout.Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d.Name()] = d
	if r.logger != nil {
		r.logger.Info("registered layout detector", "name", d.Name())
	}
}

// UnregisterDetector removes a layout detector by name.
func (r *Registry) UnregisterDetector(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.detectors, name)
	if r.logger != nil {
		r.logger.Info("unregistered layout detector", "name", name)
	}
}

// Engine returns an OCR engine by name. Unknown names fail with an error
// listing the registered engines, so a bad request dies before any
// document work starts.
func (r *Registry) Engine(name string) (engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("OCR engine not found: %s (registered: %s)",
			name, strings.Join(sortedKeys(r.engines), ", "))
	}
	return e, nil
}

// Detector returns a layout detector by name, failing with the registered
// names on an unknown one.
func (r *Registry) Detector(name string) (layout.Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	if !ok {
		return nil, fmt.Errorf("layout detector not found: %s (registered: %s)",
			name, strings.Join(sortedKeys(r.detectors), ", "))
	}
	return d, nil
}

// ListEngines returns all registered engine names, sorted.
func (r *Registry) ListEngines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.engines)
}

// ListDetectors returns all registered detector names, sorted.
func (r *Registry) ListDetectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.detectors)
}

// HasEngine checks if an engine is registered.
func (r *Registry) HasEngine(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// HasDetector checks if a detector is registered.
func (r *Registry) HasDetector(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.detectors[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
