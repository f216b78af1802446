package record

// Collection is the live, order-preserving member list of a has-many
// relationship. It reflects links made anywhere in the store. Every read
// reports the owning field to the store's Observer.
type Collection struct {
	owner   *Record
	rel     *Relationship
	members []*Record
}

// Owner returns the record the collection belongs to.
func (c *Collection) Owner() *Record { return c.owner }

// Name returns the relationship name.
func (c *Collection) Name() string { return c.rel.Name }

func (c *Collection) touch() {
	c.owner.store.observer.FieldRead(c.owner, c.rel.Name)
}

// Len returns the number of members.
func (c *Collection) Len() int {
	c.touch()
	return len(c.members)
}

// At returns the i-th member.
func (c *Collection) At(i int) *Record {
	c.touch()
	return c.members[i]
}

// Records returns a copy of the member list.
func (c *Collection) Records() []*Record {
	c.touch()
	out := make([]*Record, len(c.members))
	copy(out, c.members)
	return out
}

// IDs returns member ids in order.
func (c *Collection) IDs() []string {
	c.touch()
	out := make([]string, len(c.members))
	for i, m := range c.members {
		out[i] = m.key.ID
	}
	return out
}

// Contains reports whether r is a member.
func (c *Collection) Contains(r *Record) bool {
	c.touch()
	return c.indexOf(r) >= 0
}

func (c *Collection) indexOf(r *Record) int {
	for i, m := range c.members {
		if m == r {
			return i
		}
	}
	return -1
}

func (c *Collection) add(r *Record) bool {
	if c.indexOf(r) >= 0 {
		return false
	}
	c.members = append(c.members, r)
	return true
}

func (c *Collection) remove(r *Record) bool {
	i := c.indexOf(r)
	if i < 0 {
		return false
	}
	c.members = append(c.members[:i], c.members[i+1:]...)
	return true
}

// reorder replaces the member order. order must hold exactly the current
// members. Reports whether anything moved.
func (c *Collection) reorder(order []*Record) bool {
	changed := len(order) != len(c.members)
	if !changed {
		for i := range order {
			if order[i] != c.members[i] {
				changed = true
				break
			}
		}
	}
	c.members = append(c.members[:0:0], order...)
	return changed
}

// Each calls fn for every member in order until fn returns false.
func (c *Collection) Each(fn func(i int, r *Record) bool) {
	c.touch()
	for i, m := range c.members {
		if !fn(i, m) {
			return
		}
	}
}
