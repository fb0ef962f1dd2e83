// SPDX-License-Identifier: Apache-2.0

// Package transform implements deterministic, pepper-keyed pseudonymization
// of text field values. Every transformer maps a nil field to nil. Every
// transformer except IncrementingConst, whose output depends on a
// per-transformer call counter, is a pure function of (pepper, input text)
// otherwise, so the same source row produces the same output across runs.
package transform

import (
	"encoding/json"
	"sync"
)

// Transformer rewrites one field value. A nil input always yields a nil
// output; implementations must not treat nil and empty string the same way.
type Transformer interface {
	Transform(text *string) (*string, error)
}

// Builder constructs a Transformer from its class configuration. ctx lets a
// transform reach other named transforms in the same document (Compose and
// JsonPath do this).
type Builder func(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error)

var registry = map[string]Builder{}

// Register adds a transform class to the registry. Called from init() of
// the files implementing each class.
func Register(class string, b Builder) {
	registry[class] = b
}

// Spec is one entry of a transform document's top-level registry: a class
// name plus its class-specific configuration.
type Spec struct {
	Class  string
	Config json.RawMessage
}

// Context builds and memoizes the named transforms of one transform
// document. Transforms are constructed lazily and on demand, since
// Compose/JsonPath's config can reference other named transforms in any
// order, including forward references and true cycles: building a name that
// is already mid-construction hands back a deferred binding — a thin
// indirection, backed by transformHandle — instead of recursing forever, so
// a cyclic declarative config becomes a real cycle in the instance graph
// rather than a construction-time error. Applying such a transform to an
// actual value still recurses (there is no base case to stop on), but that
// is a property of the configuration, not of construction.
type Context struct {
	mu       sync.Mutex
	specs    map[string]Spec
	pepper   []byte
	building map[string]bool
	built    map[string]Transformer
	handles  map[string]*transformHandle
}

// NewContext creates a Context over the given named transform specs. pepper
// is mixed into every transform's deterministic seed.
func NewContext(specs map[string]Spec, pepper []byte) *Context {
	return &Context{
		specs:    specs,
		pepper:   pepper,
		building: map[string]bool{},
		built:    map[string]Transformer{},
		handles:  map[string]*transformHandle{},
	}
}

// GetTransform returns the named transform, building it (and anything it
// depends on) on first use. A reference back to a name already under
// construction returns that name's transformHandle, resolved once the
// in-progress build completes.
func (c *Context) GetTransform(name string) (Transformer, error) {
	c.mu.Lock()
	if t, ok := c.built[name]; ok {
		c.mu.Unlock()
		return t, nil
	}
	if c.building[name] {
		h, ok := c.handles[name]
		if !ok {
			h = &transformHandle{}
			c.handles[name] = h
		}
		c.mu.Unlock()
		return h, nil
	}
	spec, ok := c.specs[name]
	if !ok {
		c.mu.Unlock()
		return nil, UnknownTransformError{Name: name}
	}
	c.building[name] = true
	c.mu.Unlock()

	builder, ok := registry[spec.Class]
	if !ok {
		c.mu.Lock()
		delete(c.building, name)
		c.mu.Unlock()
		return nil, UnknownTransformClassError{Class: spec.Class}
	}

	t, err := builder(c, c.pepper, spec.Config)

	c.mu.Lock()
	delete(c.building, name)
	if err == nil {
		c.built[name] = t
		if h, ok := c.handles[name]; ok {
			h.resolve(t)
			delete(c.handles, name)
		}
	}
	c.mu.Unlock()
	return t, err
}

// transformHandle is the deferred binding GetTransform hands out for a name
// that is still mid-construction: a placeholder Transformer that forwards
// to the real one once it exists. Safe to embed in another transform's
// fields before that real Transformer is known.
type transformHandle struct {
	mu       sync.RWMutex
	resolved Transformer
}

func (h *transformHandle) resolve(t Transformer) {
	h.mu.Lock()
	h.resolved = t
	h.mu.Unlock()
}

func (h *transformHandle) Transform(text *string) (*string, error) {
	h.mu.RLock()
	t := h.resolved
	h.mu.RUnlock()
	return t.Transform(text)
}

// Build resolves every named transform in the document eagerly, surfacing
// construction errors (unknown class, unknown transform name, broken config)
// up front instead of on first row. A cycle is not an error here: it builds
// as deferred bindings, as described on Context.
func (c *Context) Build() error {
	for name := range c.specs {
		if _, err := c.GetTransform(name); err != nil {
			return err
		}
	}
	return nil
}
