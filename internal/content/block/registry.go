package block

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry maps each Kind to its Schema. It is filled at startup and read
// concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[Kind]Schema
	newID   func() string
}

func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[Kind]Schema),
		newID:   uuid.NewString,
	}
}

// NewDefaultRegistry returns a registry holding every built-in kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for kind, schema := range builtinSchemas() {
		if err := r.Register(kind, schema); err != nil {
			panic(err)
		}
	}
	return r
}

// SetIDGenerator replaces the block id source. Call it before the registry is shared.
func (r *Registry) SetIDGenerator(fn func() string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newID = fn
}

func (r *Registry) Register(kind Kind, schema Schema) error {
	if strings.TrimSpace(string(kind)) == "" {
		return errors.New("block kind must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[kind]; ok {
		return &DuplicateKindError{Kind: kind}
	}
	r.schemas[kind] = schema
	return nil
}

func (r *Registry) SchemaFor(kind Kind) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	if !ok {
		return Schema{}, &UnknownKindError{Kind: kind}
	}
	return s, nil
}

// Kinds lists registered kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *Registry) nextID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newID()
}
