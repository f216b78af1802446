package compiler

import (
	"fmt"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
)

// schemaIndex looks models up by name.
type schemaIndex map[string]*ir.ModelSpec

func indexModels(models []ir.ModelSpec) schemaIndex {
	idx := make(schemaIndex, len(models))
	for i := range models {
		if _, dup := idx[models[i].Name]; dup {
			continue
		}
		idx[models[i].Name] = &models[i]
	}
	return idx
}

// computedRef is a derived property reached by a dependency path. Local is
// true when the path reached it without crossing a relationship, i.e. on the
// same record as the dependent.
type computedRef struct {
	Model string
	Name  string
	Local bool
}

func (r computedRef) node() string {
	return r.Model + "." + r.Name
}

// cursor is the static position reached while walking a path.
type cursor struct {
	model  *ir.ModelSpec
	many   bool
	local  bool
	opaque bool
	scalar ir.AttrKind
}

// resolvePath walks a parsed path over the schema starting at model and
// returns the derived properties it reaches. Attribute values and derived
// values have no declared shape, so anything after them is accepted
// unchecked.
func (idx schemaIndex) resolvePath(model *ir.ModelSpec, p deppath.Path) ([]computedRef, error) {
	var refs []computedRef
	cur := cursor{model: model, local: true}

	for _, seg := range p.Segments {
		if cur.scalar != "" {
			if seg.Kind == deppath.Members && cur.scalar == ir.AttrString {
				continue
			}
			return refs, fmt.Errorf("cannot follow %q past a %s attribute", seg.String(), cur.scalar)
		}
		if cur.opaque {
			continue
		}

		switch seg.Kind {
		case deppath.Field:
			if cur.many {
				return refs, fmt.Errorf("%q follows a collection; use @each or []", seg.Name)
			}
			next, ref, err := idx.step(cur, seg.Name)
			if err != nil {
				return refs, err
			}
			if ref != nil {
				refs = append(refs, *ref)
			}
			cur = next
		case deppath.Each:
			if !cur.many {
				return refs, fmt.Errorf("@each over %s, which is not a collection", cur.model.Name)
			}
			cur.many = false
		case deppath.Members:
			if !cur.many {
				return refs, fmt.Errorf("%s over %s, which is not a collection", seg.String(), cur.model.Name)
			}
		}
	}
	return refs, nil
}

func (idx schemaIndex) step(cur cursor, name string) (cursor, *computedRef, error) {
	m := cur.model
	if a, ok := m.Attr(name); ok {
		switch a.Kind {
		case ir.AttrString, ir.AttrInt, ir.AttrBool:
			return cursor{scalar: a.Kind}, nil, nil
		default:
			return cursor{opaque: true}, nil, nil
		}
	}
	if r, ok := m.Relationship(name); ok {
		target, ok := idx[r.Target]
		if !ok {
			return cursor{}, nil, fmt.Errorf("%s.%s targets unknown model %q", m.Name, name, r.Target)
		}
		return cursor{model: target, many: r.Kind == ir.HasMany}, nil, nil
	}
	if _, ok := m.ComputedProperty(name); ok {
		ref := &computedRef{Model: m.Name, Name: name, Local: cur.local}
		return cursor{opaque: true}, ref, nil
	}
	return cursor{}, nil, fmt.Errorf("%s has no field %q", m.Name, name)
}
