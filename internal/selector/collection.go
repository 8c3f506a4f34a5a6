package selector

import "github.com/nickromney-org/ota-release-selector/pkg/types"

// Collection is a fixed-capacity list of selected releases, kept in the
// order their objects closed in the input.
type Collection struct {
	items    []types.Release
	capacity int
}

func newCollection(capacity int) *Collection {
	return &Collection{
		items:    make([]types.Release, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of releases collected
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Cap returns the maximum number of releases the collection holds
func (c *Collection) Cap() int {
	if c == nil {
		return 0
	}
	return c.capacity
}

// Full reports whether further releases would be dropped
func (c *Collection) Full() bool {
	return c.Len() >= c.Cap()
}

// Releases returns a copy of the collected releases
func (c *Collection) Releases() []types.Release {
	if c == nil {
		return nil
	}
	out := make([]types.Release, len(c.items))
	copy(out, c.items)
	return out
}

// add appends r unless the collection is full
func (c *Collection) add(r types.Release) bool {
	if c.Full() {
		return false
	}
	c.items = append(c.items, r)
	return true
}
