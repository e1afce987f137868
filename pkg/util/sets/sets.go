// Package sets provides a minimal string set.
package sets

// String is a set of strings.
type String map[string]struct{}

// NewString returns a set containing the given items.
func NewString(items ...string) String {
	s := String{}
	s.Insert(items...)
	return s
}

// Insert adds items to the set.
func (s String) Insert(items ...string) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// Delete removes items from the set, ignoring absent ones.
func (s String) Delete(items ...string) {
	for _, item := range items {
		delete(s, item)
	}
}

// Has reports whether item is in the set.
func (s String) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of items.
func (s String) Len() int { return len(s) }

// UnsortedList returns the items in arbitrary order.
func (s String) UnsortedList() []string {
	list := make([]string, 0, len(s))
	for item := range s {
		list = append(list, item)
	}
	return list
}
