package record

// Observer receives every field read and field change made through a Store.
//
// FieldRead is called for attribute, relationship and collection reads so
// that an evaluating derived property can subscribe to what it actually
// touched. FieldChanged is called synchronously, once per changed
// (record, field) pair, after the whole mutation has been applied.
type Observer interface {
	FieldRead(rec *Record, field string)
	FieldChanged(rec *Record, field string) error
	RecordCreated(rec *Record) error
	RecordDeleted(rec *Record) error
}

// Deriver evaluates derived properties on behalf of Record.Get.
type Deriver interface {
	Derive(rec *Record, name string) (any, error)
}

type nopObserver struct{}

func (nopObserver) FieldRead(*Record, string)          {}
func (nopObserver) FieldChanged(*Record, string) error { return nil }
func (nopObserver) RecordCreated(*Record) error        { return nil }
func (nopObserver) RecordDeleted(*Record) error        { return nil }

// changeSet collects changed fields in first-touched order.
type changeSet struct {
	entries []change
	seen    map[change]bool
}

type change struct {
	rec   *Record
	field string
}

func (cs *changeSet) add(rec *Record, field string) {
	c := change{rec: rec, field: field}
	if cs.seen == nil {
		cs.seen = make(map[change]bool)
	}
	if cs.seen[c] {
		return
	}
	cs.seen[c] = true
	cs.entries = append(cs.entries, c)
}
