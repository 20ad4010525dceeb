// Package aggregate implements the reading-list aggregation pipeline:
// pagination over the ownership service, batch resolution against the
// catalog, record merging, and statistics accumulation.
package aggregate

// Deduplicator tracks entry identifiers already admitted into a working
// set. Duplicates across pages are expected: the ownership service gives no
// stability guarantee for concurrent list mutation during pagination, so
// the same entry can appear on two pages.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit returns true the first time an identifier is seen and records it.
// Subsequent calls for the same identifier return false.
func (d *Deduplicator) Admit(id string) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Seen reports whether an identifier has been admitted.
func (d *Deduplicator) Seen(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// Len returns the number of admitted identifiers.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
