package record

import (
	"fmt"
	"reflect"

	"github.com/roach88/derive/internal/ir"
)

type resolvedField struct {
	name    string
	kind    FieldKind
	rel     *Relationship
	value   ir.IRValue
	ref     *Record
	members []*Record
}

// resolveFields validates every assignment in fields against rec's model.
// The result follows the model's declaration order so that writes apply
// deterministically.
func (s *Store) resolveFields(rec *Record, fields map[string]any) ([]resolvedField, error) {
	m := rec.model
	for name := range fields {
		if name == "id" {
			continue
		}
		switch m.Kind(name) {
		case FieldUnknown:
			return nil, &UnknownFieldError{Type: m.Name(), Field: name}
		case FieldComputed:
			return nil, &TypeMismatchError{Type: m.Name(), Field: name, Want: "a stored field", Got: "derived property"}
		}
	}

	var out []resolvedField
	for _, name := range m.Spec.FieldNames() {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		f := resolvedField{name: name, kind: m.Kind(name)}
		switch f.kind {
		case FieldAttr:
			spec, _ := m.Spec.Attr(name)
			v, err := ir.FromGo(raw)
			if err != nil {
				return nil, &TypeMismatchError{Type: m.Name(), Field: name, Want: string(spec.Kind), Got: err.Error()}
			}
			if !ir.Conforms(v, spec.Kind) {
				return nil, &TypeMismatchError{Type: m.Name(), Field: name, Want: string(spec.Kind), Got: fmt.Sprintf("%T", v)}
			}
			f.value = v
		case FieldBelongsTo:
			f.rel = m.rels[name]
			ref, err := s.resolveRef(rec, f.rel, raw)
			if err != nil {
				return nil, err
			}
			f.ref = ref
		case FieldHasMany:
			f.rel = m.rels[name]
			members, err := s.resolveMany(rec, f.rel, raw)
			if err != nil {
				return nil, err
			}
			f.members = members
		default:
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) resolveRef(rec *Record, rel *Relationship, v any) (*Record, error) {
	switch ref := v.(type) {
	case nil:
		return nil, nil
	case *Record:
		if ref == nil {
			return nil, nil
		}
		if ref.store != s {
			return nil, fmt.Errorf("%s.%s: record %s belongs to a different store", rec.key, rel.Name, ref.key)
		}
		if err := ref.checkLive(); err != nil {
			return nil, err
		}
		if ref.key.Type != rel.Target {
			return nil, &TypeMismatchError{Type: rec.key.Type, Field: rel.Name, Want: rel.Target, Got: ref.key.Type}
		}
		return ref, nil
	case string:
		target, ok := s.Peek(rel.Target, ref)
		if !ok {
			return nil, &UnknownRecordError{Type: rel.Target, ID: ref}
		}
		return target, nil
	case ir.IRString:
		return s.resolveRef(rec, rel, string(ref))
	case ir.IRNull:
		return nil, nil
	default:
		return nil, &TypeMismatchError{Type: rec.key.Type, Field: rel.Name, Want: rel.Target, Got: fmt.Sprintf("%T", v)}
	}
}

func (s *Store) resolveMany(rec *Record, rel *Relationship, v any) ([]*Record, error) {
	var items []any
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []*Record:
		for _, r := range list {
			items = append(items, r)
		}
	case []string:
		for _, id := range list {
			items = append(items, id)
		}
	case []any:
		items = list
	case ir.IRArray:
		for _, e := range list {
			items = append(items, e)
		}
	default:
		return nil, &TypeMismatchError{Type: rec.key.Type, Field: rel.Name, Want: "list of " + rel.Target, Got: fmt.Sprintf("%T", v)}
	}

	out := make([]*Record, 0, len(items))
	seen := make(map[*Record]bool, len(items))
	for _, item := range items {
		r, err := s.resolveRef(rec, rel, item)
		if err != nil {
			return nil, err
		}
		if r == nil || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) apply(rec *Record, f resolvedField, cs *changeSet) {
	switch f.kind {
	case FieldAttr:
		if reflect.DeepEqual(rec.attrs[f.name], f.value) {
			return
		}
		rec.attrs[f.name] = f.value
		cs.add(rec, f.name)
	case FieldBelongsTo:
		current := rec.refs[f.name]
		if current == f.ref {
			return
		}
		if current != nil {
			s.disconnect(rec, f.rel, current, cs)
		}
		if f.ref != nil {
			s.connect(rec, f.rel, f.ref, cs)
		}
	case FieldHasMany:
		c := rec.many[f.name]
		want := make(map[*Record]bool, len(f.members))
		for _, m := range f.members {
			want[m] = true
		}
		for _, m := range append([]*Record(nil), c.members...) {
			if !want[m] {
				s.disconnect(rec, f.rel, m, cs)
			}
		}
		for _, m := range f.members {
			s.connect(rec, f.rel, m, cs)
		}
		if c.reorder(f.members) {
			cs.add(rec, f.name)
		}
	}
}

// connect links owner.rel to target and maintains the inverse side.
func (s *Store) connect(owner *Record, rel *Relationship, target *Record, cs *changeSet) {
	s.attachSide(owner, rel, target, cs)
	if rel.InverseRel != nil {
		s.attachSide(target, rel.InverseRel, owner, cs)
	}
}

// disconnect unlinks owner.rel from target on both sides.
func (s *Store) disconnect(owner *Record, rel *Relationship, target *Record, cs *changeSet) {
	s.detachSide(owner, rel, target, cs)
	if rel.InverseRel != nil {
		s.detachSide(target, rel.InverseRel, owner, cs)
	}
}

func (s *Store) attachSide(owner *Record, rel *Relationship, target *Record, cs *changeSet) {
	if rel.Kind == ir.HasMany {
		if owner.many[rel.Name].add(target) {
			cs.add(owner, rel.Name)
		}
		return
	}
	current := owner.refs[rel.Name]
	if current == target {
		return
	}
	// A belongs-to holds one record; the displaced one loses its back link.
	if current != nil && rel.InverseRel != nil {
		s.detachSide(current, rel.InverseRel, owner, cs)
	}
	owner.refs[rel.Name] = target
	cs.add(owner, rel.Name)
}

func (s *Store) detachSide(owner *Record, rel *Relationship, target *Record, cs *changeSet) {
	if rel.Kind == ir.HasMany {
		if owner.many[rel.Name].remove(target) {
			cs.add(owner, rel.Name)
		}
		return
	}
	if owner.refs[rel.Name] == target {
		delete(owner.refs, rel.Name)
		cs.add(owner, rel.Name)
	}
}
