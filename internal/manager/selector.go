package manager

import "github.com/yairfalse/ferry/pkg/instance"

// Selector identifies the manager instance by a single tag.
// Key and value must both match exactly.
type Selector struct {
	Key   string
	Value string
}

// DefaultSelector matches Name=manager.
func DefaultSelector() Selector {
	return Selector{Key: "Name", Value: "manager"}
}

// Matches reports whether i carries the manager tag.
func (s Selector) Matches(i instance.Instance) bool {
	v, ok := i.Tag(s.Key)
	return ok && v == s.Value
}

func (s Selector) String() string {
	return s.Key + "=" + s.Value
}
