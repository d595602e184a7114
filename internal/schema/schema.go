// Package schema validates free-form JSON profile fields against compiled
// JSON schemas.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

// Availability is the schema for a profile's availability document: either
// an object keyed by day, a list of slots, or null.
const Availability = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": ["object", "array", "null"],
	"additionalProperties": {
		"type": ["array", "string", "boolean", "object"],
		"items": {"type": ["string", "object"]}
	},
	"items": {"type": ["string", "object"]},
	"maxProperties": 31,
	"maxItems": 64
}`

// ErrInvalid wraps every document that fails its schema.
var ErrInvalid = errors.New("document does not match schema")

// Loader compiles named schemas once and caches them.
type Loader struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewLoader compiles every schema in sources, keyed by name.
func NewLoader(sources map[string]string) (*Loader, error) {
	l := &Loader{cache: make(map[string]*jsonschema.Schema)}
	for name, src := range sources {
		if err := l.Register(name, src); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Default returns a loader with the built-in profile schemas.
func Default() *Loader {
	l, err := NewLoader(map[string]string{"availability": Availability})
	if err != nil {
		panic(fmt.Sprintf("compile built-in schemas: %v", err))
	}
	return l
}

// Register compiles src and stores it under name, replacing any previous one.
func (l *Loader) Register(name, src string) error {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}
	l.mu.Lock()
	l.cache[name] = rs
	l.mu.Unlock()
	return nil
}

// GetSchema returns the compiled schema for name.
func (l *Loader) GetSchema(name string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[name]
	l.mu.RUnlock()
	return s, ok
}

// Validate checks doc against the named schema. An empty doc is treated as null.
func (l *Loader) Validate(ctx context.Context, name string, doc []byte) error {
	s, ok := l.GetSchema(name)
	if !ok {
		return fmt.Errorf("no schema named %q", name)
	}
	if len(doc) == 0 {
		doc = []byte("null")
	}
	if !json.Valid(doc) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalid)
	}

	verrs, err := s.ValidateBytes(ctx, doc)
	if err != nil {
		return fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, strings.TrimSpace(v.PropertyPath+" "+v.Message))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}
