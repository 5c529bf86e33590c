package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fakexrm/fakexrm/pkg/ordering"
)

// TagName is the struct tag read by ReflectProvider.
const TagName = "xrm"

// Entity is implemented by generated early-bound model structs.
type Entity interface {
	EntityLogicalName() string
}

// ReflectProvider derives references from model struct tags:
//
//	type Contact struct {
//	    ParentCustomerID *EntityReference `xrm:"parentcustomerid,lookup=account|contact"`
//	}
//
// A lookup naming several targets yields one reference per target.
type ReflectProvider struct {
	mu    sync.RWMutex
	types map[ordering.TypeID][]ordering.Reference
}

// NewReflectProvider creates a provider and registers models.
func NewReflectProvider(models ...Entity) (*ReflectProvider, error) {
	p := &ReflectProvider{types: make(map[ordering.TypeID][]ordering.Reference)}
	for _, m := range models {
		if err := p.Register(m); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register parses the tags of model's struct type.
func (p *ReflectProvider) Register(model Entity) error {
	name := model.EntityLogicalName()
	if name == "" {
		return fmt.Errorf("model %T has an empty logical name", model)
	}

	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("model %T is not a struct", model)
	}

	id := ordering.TypeID(name)
	refs, err := structReferences(id, t, make(map[reflect.Type]bool))
	if err != nil {
		return fmt.Errorf("model %T: %w", model, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.types[id] = refs
	return nil
}

// Dependencies implements ordering.TypeDependencyProvider.
func (p *ReflectProvider) Dependencies(id ordering.TypeID) ([]ordering.Reference, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ordering.Reference(nil), p.types[id]...), nil
}

// Types returns the registered logical names in registration-independent
// sorted order.
func (p *ReflectProvider) Types() []ordering.TypeID {
	p.mu.RLock()
	table := make(map[ordering.TypeID][]ordering.Reference, len(p.types))
	for id, refs := range p.types {
		table[id] = refs
	}
	p.mu.RUnlock()
	return NewTableProvider(table).Types()
}

// structReferences collects the lookup references of t and its embedded
// structs. visiting holds the types on the current embedding path so that
// self-embedding types terminate.
func structReferences(owner ordering.TypeID, t reflect.Type, visiting map[reflect.Type]bool) ([]ordering.Reference, error) {
	if visiting[t] {
		return nil, nil
	}
	visiting[t] = true
	defer delete(visiting, t)

	var refs []ordering.Reference

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded, err := structReferences(owner, ft, visiting)
				if err != nil {
					return nil, err
				}
				refs = append(refs, embedded...)
				continue
			}
		}

		tag, ok := field.Tag.Lookup(TagName)
		if !ok || tag == "-" || !field.IsExported() {
			continue
		}

		attribute, targets, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		for _, target := range targets {
			refs = append(refs, ordering.Reference{
				Target:          target,
				Attribute:       attribute,
				SelfReferencing: target == owner,
			})
		}
	}

	return refs, nil
}

// parseTag splits `attr,lookup=a|b`. Tags without a lookup option describe
// plain attributes and return no targets.
func parseTag(tag string) (string, []ordering.TypeID, error) {
	parts := strings.Split(tag, ",")
	attribute := strings.TrimSpace(parts[0])
	if attribute == "" {
		return "", nil, fmt.Errorf("empty attribute name in tag %q", tag)
	}

	var targets []ordering.TypeID
	for _, opt := range parts[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(opt), "=")
		if key != "lookup" {
			continue
		}
		if !found || value == "" {
			return "", nil, fmt.Errorf("lookup option without target in tag %q", tag)
		}
		for _, target := range strings.Split(value, "|") {
			target = strings.TrimSpace(target)
			if target == "" {
				return "", nil, fmt.Errorf("empty lookup target in tag %q", tag)
			}
			targets = append(targets, ordering.TypeID(target))
		}
	}

	return attribute, targets, nil
}
