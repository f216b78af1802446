package record

import (
	"fmt"

	"github.com/roach88/derive/internal/ir"
)

// Key identifies a record.
type Key struct {
	Type string
	ID   string
}

func (k Key) String() string {
	return k.Type + ":" + k.ID
}

// Record is a single entity in the store.
type Record struct {
	store   *Store
	model   *Model
	key     Key
	attrs   map[string]ir.IRValue
	refs    map[string]*Record
	many    map[string]*Collection
	deleted bool
}

func newRecord(s *Store, m *Model, id string) *Record {
	r := &Record{
		store: s,
		model: m,
		key:   Key{Type: m.Name(), ID: id},
		attrs: make(map[string]ir.IRValue, len(m.Spec.Attrs)),
		refs:  make(map[string]*Record),
		many:  make(map[string]*Collection),
	}
	for _, a := range m.Spec.Attrs {
		r.attrs[a.Name] = ir.IRNull{}
	}
	for _, rs := range m.Spec.Relationships {
		rel := m.rels[rs.Name]
		if rel.Kind == ir.HasMany {
			r.many[rs.Name] = &Collection{owner: r, rel: rel}
		}
	}
	return r
}

// Key returns the record's identity.
func (r *Record) Key() Key { return r.key }

// Type returns the record's model name.
func (r *Record) Type() string { return r.key.Type }

// ID returns the record's id.
func (r *Record) ID() string { return r.key.ID }

// Model returns the record's resolved model.
func (r *Record) Model() *Model { return r.model }

// Store returns the owning store.
func (r *Record) Store() *Store { return r.store }

// Deleted reports whether the record has been removed from its store.
func (r *Record) Deleted() bool { return r.deleted }

func (r *Record) String() string { return r.key.String() }

func (r *Record) checkLive() error {
	if r.deleted {
		return &UnknownRecordError{Type: r.key.Type, ID: r.key.ID}
	}
	return nil
}

// Attr reads an attribute. Unset attributes read as IRNull.
func (r *Record) Attr(name string) (ir.IRValue, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if r.model.Kind(name) != FieldAttr {
		return nil, &UnknownFieldError{Type: r.key.Type, Field: name}
	}
	r.store.observer.FieldRead(r, name)
	return r.attrs[name], nil
}

// StringAttr reads a string attribute, returning "" when unset or not a string.
func (r *Record) StringAttr(name string) string {
	v, err := r.Attr(name)
	if err != nil {
		return ""
	}
	s, _ := v.(ir.IRString)
	return string(s)
}

// BelongsTo reads a belongs-to relationship. The result is nil when unlinked.
func (r *Record) BelongsTo(name string) (*Record, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	if r.model.Kind(name) != FieldBelongsTo {
		return nil, &UnknownFieldError{Type: r.key.Type, Field: name}
	}
	r.store.observer.FieldRead(r, name)
	return r.refs[name], nil
}

// HasMany returns the live collection for a has-many relationship.
func (r *Record) HasMany(name string) (*Collection, error) {
	if err := r.checkLive(); err != nil {
		return nil, err
	}
	c, ok := r.many[name]
	if !ok {
		return nil, &UnknownFieldError{Type: r.key.Type, Field: name}
	}
	r.store.observer.FieldRead(r, name)
	return c, nil
}

// Get reads any declared field. Attributes return ir.IRValue, belongs-to
// returns *Record (nil when unlinked), has-many returns *Collection and
// derived properties return whatever their compute function produced.
func (r *Record) Get(name string) (any, error) {
	switch r.model.Kind(name) {
	case FieldAttr:
		return r.Attr(name)
	case FieldBelongsTo:
		ref, err := r.BelongsTo(name)
		if err != nil || ref == nil {
			return nil, err
		}
		return ref, nil
	case FieldHasMany:
		return r.HasMany(name)
	case FieldComputed:
		if err := r.checkLive(); err != nil {
			return nil, err
		}
		if r.store.deriver == nil {
			return nil, fmt.Errorf("%s.%s: no deriver attached to store", r.key, name)
		}
		return r.store.deriver.Derive(r, name)
	default:
		return nil, &UnknownFieldError{Type: r.key.Type, Field: name}
	}
}

// Snapshot returns the record's stored fields as an IR object: attributes
// as-is, belongs-to as the linked id (or null), has-many as an id array.
// Snapshot does not report reads and does not evaluate derived properties.
func (r *Record) Snapshot() ir.IRObject {
	obj := ir.IRObject{"id": ir.IRString(r.key.ID)}
	for name, v := range r.attrs {
		obj[name] = v
	}
	for _, rs := range r.model.Spec.Relationships {
		if rs.Kind == ir.HasMany {
			ids := ir.IRArray{}
			for _, m := range r.many[rs.Name].members {
				ids = append(ids, ir.IRString(m.key.ID))
			}
			obj[rs.Name] = ids
			continue
		}
		if ref := r.refs[rs.Name]; ref != nil {
			obj[rs.Name] = ir.IRString(ref.key.ID)
		} else {
			obj[rs.Name] = ir.IRNull{}
		}
	}
	return obj
}
