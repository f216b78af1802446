package record

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/derive/internal/ir"
)

// IDGenerator produces ids for records created without one.
type IDGenerator func() string

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the default UUIDv7 id generator.
// Tests use it for deterministic ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// Store is the identity map of records plus relationship maintenance.
type Store struct {
	schema   *Schema
	records  map[Key]*Record
	order    map[string][]*Record
	observer Observer
	deriver  Deriver
	newID    IDGenerator
}

// NewStore resolves models into a schema and returns an empty store.
func NewStore(models []ir.ModelSpec, opts ...Option) (*Store, error) {
	schema, err := NewSchema(models)
	if err != nil {
		return nil, err
	}
	return NewStoreWithSchema(schema, opts...), nil
}

// NewStoreWithSchema returns an empty store over an already resolved schema.
func NewStoreWithSchema(schema *Schema, opts ...Option) *Store {
	s := &Store{
		schema:   schema,
		records:  make(map[Key]*Record),
		order:    make(map[string][]*Record),
		observer: nopObserver{},
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the store's resolved schema.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Attach installs the observer notified of reads and changes.
// Passing nil restores the no-op observer.
func (s *Store) Attach(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// SetDeriver installs the evaluator for derived properties.
func (s *Store) SetDeriver(d Deriver) {
	s.deriver = d
}

// Peek returns the record with the given type and id, if present.
func (s *Store) Peek(typ, id string) (*Record, bool) {
	r, ok := s.records[Key{Type: typ, ID: id}]
	return r, ok
}

// Find is Peek that reports a missing record as UnknownRecordError.
func (s *Store) Find(typ, id string) (*Record, error) {
	if _, ok := s.schema.Model(typ); !ok {
		return nil, &UnknownTypeError{Type: typ}
	}
	r, ok := s.Peek(typ, id)
	if !ok {
		return nil, &UnknownRecordError{Type: typ, ID: id}
	}
	return r, nil
}

// All returns the live records of a type in creation order.
func (s *Store) All(typ string) []*Record {
	out := make([]*Record, len(s.order[typ]))
	copy(out, s.order[typ])
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return len(s.records)
}

// Create adds a record. fields may contain "id" plus any declared attribute
// or relationship; derived properties cannot be assigned. Relationship values
// may be records, ids, or lists of either. Inverse sides are updated and the
// observer is notified before Create returns.
//
// All field values are resolved before anything is written, so a failed
// Create leaves the store unchanged.
func (s *Store) Create(typ string, fields map[string]any) (*Record, error) {
	m, ok := s.schema.Model(typ)
	if !ok {
		return nil, &UnknownTypeError{Type: typ}
	}

	var id string
	if raw, ok := fields["id"]; ok {
		str, isStr := raw.(string)
		if !isStr || str == "" {
			return nil, &TypeMismatchError{Type: typ, Field: "id", Want: "non-empty string", Got: fmt.Sprintf("%T", raw)}
		}
		id = str
	} else {
		id = s.newID()
	}
	if _, exists := s.records[Key{Type: typ, ID: id}]; exists {
		return nil, &DuplicateRecordError{Type: typ, ID: id}
	}

	rec := newRecord(s, m, id)
	resolved, err := s.resolveFields(rec, fields)
	if err != nil {
		return nil, err
	}

	s.records[rec.key] = rec
	s.order[typ] = append(s.order[typ], rec)

	cs := &changeSet{}
	for _, f := range resolved {
		s.apply(rec, f, cs)
	}

	errs := []error{s.observer.RecordCreated(rec)}
	errs = append(errs, s.notify(cs))
	if err := errors.Join(errs...); err != nil {
		return rec, err
	}
	return rec, nil
}

// Set writes a single field. Attributes take IR-compatible Go values;
// belongs-to takes a record, an id or nil; has-many takes a list of records
// or ids and replaces the membership in the given order.
func (s *Store) Set(rec *Record, field string, value any) error {
	if err := s.checkOwned(rec); err != nil {
		return err
	}
	resolved, err := s.resolveFields(rec, map[string]any{field: value})
	if err != nil {
		return err
	}
	cs := &changeSet{}
	s.apply(rec, resolved[0], cs)
	return s.notify(cs)
}

// AddTo appends member to a has-many relationship, maintaining the inverse.
func (s *Store) AddTo(rec *Record, field string, member any) error {
	rel, target, err := s.collectionMember(rec, field, member)
	if err != nil {
		return err
	}
	cs := &changeSet{}
	s.connect(rec, rel, target, cs)
	return s.notify(cs)
}

// RemoveFrom removes member from a has-many relationship, maintaining the
// inverse. Removing a non-member is a no-op.
func (s *Store) RemoveFrom(rec *Record, field string, member any) error {
	rel, target, err := s.collectionMember(rec, field, member)
	if err != nil {
		return err
	}
	cs := &changeSet{}
	s.disconnect(rec, rel, target, cs)
	return s.notify(cs)
}

// Delete unlinks rec from every relationship and removes it from the store.
// Later use of rec fails with UnknownRecordError.
func (s *Store) Delete(rec *Record) error {
	if err := s.checkOwned(rec); err != nil {
		return err
	}
	cs := &changeSet{}
	for _, rs := range rec.model.Spec.Relationships {
		rel := rec.model.rels[rs.Name]
		if rel.Kind == ir.HasMany {
			for _, m := range append([]*Record(nil), rec.many[rs.Name].members...) {
				s.disconnect(rec, rel, m, cs)
			}
			continue
		}
		if ref := rec.refs[rs.Name]; ref != nil {
			s.disconnect(rec, rel, ref, cs)
		}
	}

	// One-sided edges have no inverse to walk, so scan their owners.
	for _, m := range s.schema.Models() {
		for _, rs := range m.Spec.Relationships {
			rel := m.rels[rs.Name]
			if rel.Target != rec.key.Type || rel.InverseRel != nil {
				continue
			}
			for _, other := range s.order[m.Name()] {
				s.detachSide(other, rel, rec, cs)
			}
		}
	}

	delete(s.records, rec.key)
	list := s.order[rec.key.Type]
	for i, r := range list {
		if r == rec {
			s.order[rec.key.Type] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	rec.deleted = true

	// The deleted record's own fields are of no further interest; its
	// neighbours' collections and links are.
	live := &changeSet{}
	for _, c := range cs.entries {
		if c.rec != rec {
			live.add(c.rec, c.field)
		}
	}
	return errors.Join(s.notify(live), s.observer.RecordDeleted(rec))
}

func (s *Store) notify(cs *changeSet) error {
	var errs []error
	for _, c := range cs.entries {
		if err := s.observer.FieldChanged(c.rec, c.field); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) checkOwned(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	if rec.store != s {
		return fmt.Errorf("record %s belongs to a different store", rec.key)
	}
	return rec.checkLive()
}

func (s *Store) collectionMember(rec *Record, field string, member any) (*Relationship, *Record, error) {
	if err := s.checkOwned(rec); err != nil {
		return nil, nil, err
	}
	rel, ok := rec.model.rels[field]
	if !ok || rel.Kind != ir.HasMany {
		return nil, nil, &UnknownFieldError{Type: rec.key.Type, Field: field}
	}
	target, err := s.resolveRef(rec, rel, member)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, &TypeMismatchError{Type: rec.key.Type, Field: field, Want: rel.Target, Got: "nil"}
	}
	return rel, target, nil
}
