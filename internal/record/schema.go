package record

import (
	"fmt"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
)

// FieldKind classifies a declared field.
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldAttr
	FieldBelongsTo
	FieldHasMany
	FieldComputed
)

// Schema is the resolved set of models a Store is built on.
type Schema struct {
	models map[string]*Model
	order  []string
	hash   string
}

// Model is a resolved model declaration.
type Model struct {
	Spec     ir.ModelSpec
	attrs    map[string]ir.AttrSpec
	rels     map[string]*Relationship
	computed map[string]*Computed
}

// Relationship is a resolved relationship. InverseRel is nil for one-sided
// edges.
type Relationship struct {
	ir.RelationshipSpec
	Owner       *Model
	TargetModel *Model
	InverseRel  *Relationship
}

// Computed is a derived property declaration with parsed dependency keys.
type Computed struct {
	ir.ComputedSpec
	Owner *Model
	Paths []deppath.Path
}

// NewSchema resolves models: inverses are inferred where omitted, explicit
// inverses are checked for reciprocity and dependency keys are parsed.
func NewSchema(models []ir.ModelSpec) (*Schema, error) {
	models = ir.InferInverses(models)

	s := &Schema{models: make(map[string]*Model, len(models))}
	for _, spec := range models {
		if _, dup := s.models[spec.Name]; dup {
			return nil, &SchemaError{Model: spec.Name, Message: "declared twice"}
		}
		m := &Model{
			Spec:     spec,
			attrs:    make(map[string]ir.AttrSpec),
			rels:     make(map[string]*Relationship),
			computed: make(map[string]*Computed),
		}
		seen := make(map[string]bool)
		for _, name := range spec.FieldNames() {
			if seen[name] {
				return nil, &SchemaError{Model: spec.Name, Field: name, Message: "declared twice"}
			}
			seen[name] = true
		}
		for _, a := range spec.Attrs {
			m.attrs[a.Name] = a
		}
		for _, r := range spec.Relationships {
			m.rels[r.Name] = &Relationship{RelationshipSpec: r, Owner: m}
		}
		for _, c := range spec.Computed {
			paths, err := deppath.ParseAll(c.DependsOn)
			if err != nil {
				return nil, &SchemaError{Model: spec.Name, Field: c.Name, Message: err.Error()}
			}
			m.computed[c.Name] = &Computed{ComputedSpec: c, Owner: m, Paths: paths}
		}
		s.models[spec.Name] = m
		s.order = append(s.order, spec.Name)
	}

	for _, name := range s.order {
		if err := s.resolveRelationships(s.models[name]); err != nil {
			return nil, err
		}
	}

	hash, err := ir.SchemaHash(models)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	s.hash = hash

	return s, nil
}

func (s *Schema) resolveRelationships(m *Model) error {
	for _, r := range m.Spec.Relationships {
		rel := m.rels[r.Name]
		target, ok := s.models[r.Target]
		if !ok {
			return &SchemaError{Model: m.Spec.Name, Field: r.Name, Message: fmt.Sprintf("unknown target %q", r.Target)}
		}
		rel.TargetModel = target
		if r.Inverse == ir.NoInverse {
			continue
		}
		inv, ok := target.rels[r.Inverse]
		if !ok {
			return &SchemaError{Model: m.Spec.Name, Field: r.Name, Message: fmt.Sprintf("inverse %s.%s not declared", r.Target, r.Inverse)}
		}
		if inv.Target != m.Spec.Name {
			return &SchemaError{Model: m.Spec.Name, Field: r.Name, Message: fmt.Sprintf("inverse %s.%s points at %s", r.Target, r.Inverse, inv.Target)}
		}
		if inv.Inverse != r.Name {
			return &SchemaError{Model: m.Spec.Name, Field: r.Name, Message: fmt.Sprintf("inverse %s.%s is not reciprocal (pairs with %q)", r.Target, r.Inverse, inv.Inverse)}
		}
		rel.InverseRel = inv
	}
	return nil
}

// Model returns the resolved model for a type name.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Models returns every model in declaration order.
func (s *Schema) Models() []*Model {
	out := make([]*Model, len(s.order))
	for i, name := range s.order {
		out[i] = s.models[name]
	}
	return out
}

// Hash returns the content hash of the resolved models.
func (s *Schema) Hash() string {
	return s.hash
}

// Name returns the model's type name.
func (m *Model) Name() string {
	return m.Spec.Name
}

// Kind classifies a field name.
func (m *Model) Kind(field string) FieldKind {
	if _, ok := m.attrs[field]; ok {
		return FieldAttr
	}
	if r, ok := m.rels[field]; ok {
		if r.Kind == ir.HasMany {
			return FieldHasMany
		}
		return FieldBelongsTo
	}
	if _, ok := m.computed[field]; ok {
		return FieldComputed
	}
	return FieldUnknown
}

// Relationship returns a resolved relationship by name.
func (m *Model) Relationship(name string) (*Relationship, bool) {
	r, ok := m.rels[name]
	return r, ok
}

// Computed returns a derived property declaration by name.
func (m *Model) Computed(name string) (*Computed, bool) {
	c, ok := m.computed[name]
	return c, ok
}

// ComputedProperties returns derived properties in declaration order.
func (m *Model) ComputedProperties() []*Computed {
	out := make([]*Computed, 0, len(m.Spec.Computed))
	for _, c := range m.Spec.Computed {
		out = append(out, m.computed[c.Name])
	}
	return out
}
