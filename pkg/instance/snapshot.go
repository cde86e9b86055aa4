package instance

import "github.com/google/btree"

// Snapshot is a set of instances keyed and ordered by ID.
// Adding an ID twice keeps the later copy.
type Snapshot struct {
	tree *btree.BTreeG[Instance]
}

// NewSnapshot flattens instances into a Snapshot.
func NewSnapshot(instances []Instance) *Snapshot {
	s := &Snapshot{
		tree: btree.NewG[Instance](32, func(a, b Instance) bool {
			return a.ID < b.ID
		}),
	}
	for _, i := range instances {
		s.tree.ReplaceOrInsert(i)
	}
	return s
}

// Len returns the number of distinct instances.
func (s *Snapshot) Len() int {
	return s.tree.Len()
}

// Each calls fn for every instance in ascending ID order until fn returns false.
func (s *Snapshot) Each(fn func(Instance) bool) {
	s.tree.Ascend(fn)
}

// Filter returns the instances matching keep, in ascending ID order.
func (s *Snapshot) Filter(keep func(Instance) bool) []Instance {
	var out []Instance
	s.Each(func(i Instance) bool {
		if keep(i) {
			out = append(out, i)
		}
		return true
	})
	return out
}

// Get returns the instance with the given ID.
func (s *Snapshot) Get(id string) (Instance, bool) {
	return s.tree.Get(Instance{ID: id})
}
