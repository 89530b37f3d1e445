package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/sttdata/pkg/provider/llm"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/storage"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures per provider kind.
type (
	STTFactory     func(ProviderEntry) (stt.Transcriber, error)
	LLMFactory     func(ProviderEntry) (llm.Provider, error)
	VADFactory     func(ProviderEntry, vad.Params) (vad.Detector, error)
	StorageFactory func(context.Context, ProviderEntry) (storage.ObjectStore, error)
)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     map[string]STTFactory
	llm     map[string]LLMFactory
	vad     map[string]VADFactory
	storage map[string]StorageFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:     make(map[string]STTFactory),
		llm:     make(map[string]LLMFactory),
		vad:     make(map[string]VADFactory),
		storage: make(map[string]StorageFactory),
	}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterVAD registers a voice activity detector factory under name.
func (r *Registry) RegisterVAD(name string, factory VADFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterStorage registers an object store factory under name.
func (r *Registry) RegisterStorage(name string, factory StorageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a detector using the factory registered under
// entry.Name, passing the binarisation parameters through.
func (r *Registry) CreateVAD(entry ProviderEntry, params vad.Params) (vad.Detector, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, params)
}

// CreateStorage instantiates an object store using the factory registered
// under entry.Name. ctx bounds credential and bucket lookups the factory
// performs.
func (r *Registry) CreateStorage(ctx context.Context, entry ProviderEntry) (storage.ObjectStore, error) {
	r.mu.RLock()
	factory, ok := r.storage[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// Names returns the sorted provider names registered for kind ("stt", "llm",
// "vad" or "storage"). Unknown kinds yield nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "stt":
		return slices.Sorted(maps.Keys(r.stt))
	case "llm":
		return slices.Sorted(maps.Keys(r.llm))
	case "vad":
		return slices.Sorted(maps.Keys(r.vad))
	case "storage":
		return slices.Sorted(maps.Keys(r.storage))
	}
	return nil
}
