package ir

// AttrKind is the declared kind of a model attribute.
type AttrKind string

const (
	AttrString AttrKind = "string"
	AttrInt    AttrKind = "int"
	AttrBool   AttrKind = "bool"
	AttrArray  AttrKind = "array"
	AttrObject AttrKind = "object"
	// AttrAny accepts any IR value (an untyped `attr()`).
	AttrAny AttrKind = "any"
)

// RelKind distinguishes the two relationship shapes.
type RelKind string

const (
	BelongsTo RelKind = "belongsTo"
	HasMany   RelKind = "hasMany"
)

// NoInverse is the Inverse value for a relationship explicitly declared
// without a reciprocal side.
const NoInverse = "-"

// ModelSpec is a compiled model declaration.
type ModelSpec struct {
	Name          string             `json:"name"`
	Attrs         []AttrSpec         `json:"attrs"`
	Relationships []RelationshipSpec `json:"relationships"`
	Computed      []ComputedSpec     `json:"computed"`
}

// AttrSpec declares a plain attribute.
type AttrSpec struct {
	Name string   `json:"name"`
	Kind AttrKind `json:"kind"`
}

// RelationshipSpec declares a typed edge to another model.
//
// Inverse is empty when it should be inferred, NoInverse when the
// relationship is one-sided, and the inverse field name otherwise.
type RelationshipSpec struct {
	Name    string  `json:"name"`
	Kind    RelKind `json:"kind"`
	Target  string  `json:"target"`
	Inverse string  `json:"inverse,omitempty"`
}

// ComputedSpec declares a derived property.
type ComputedSpec struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	Fn        string   `json:"fn"`
}

// Attr returns the attribute declaration with the given name.
func (m *ModelSpec) Attr(name string) (AttrSpec, bool) {
	for _, a := range m.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return AttrSpec{}, false
}

// Relationship returns the relationship declaration with the given name.
func (m *ModelSpec) Relationship(name string) (RelationshipSpec, bool) {
	for _, r := range m.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return RelationshipSpec{}, false
}

// ComputedProperty returns the derived property declaration with the given name.
func (m *ModelSpec) ComputedProperty(name string) (ComputedSpec, bool) {
	for _, c := range m.Computed {
		if c.Name == name {
			return c, true
		}
	}
	return ComputedSpec{}, false
}

// FieldNames returns every declared field name in declaration order:
// attributes, then relationships, then computed properties.
func (m *ModelSpec) FieldNames() []string {
	names := make([]string, 0, len(m.Attrs)+len(m.Relationships)+len(m.Computed))
	for _, a := range m.Attrs {
		names = append(names, a.Name)
	}
	for _, r := range m.Relationships {
		names = append(names, r.Name)
	}
	for _, c := range m.Computed {
		names = append(names, c.Name)
	}
	return names
}
