package state

// ConnectionSlots counts the remaining link capacity of every known node.
// Counters start at max and always stay within [0, max].
type ConnectionSlots struct {
	max   int
	slots map[NodeId]int
}

func NewConnectionSlots(max int) *ConnectionSlots {
	return &ConnectionSlots{
		max:   max,
		slots: make(map[NodeId]int),
	}
}

func (c *ConnectionSlots) Max() int {
	return c.max
}

func (c *ConnectionSlots) Get(node NodeId) int {
	if v, ok := c.slots[node]; ok {
		return v
	}
	return c.max
}

// Take consumes one slot of node, returning false if it has none left
func (c *ConnectionSlots) Take(node NodeId) bool {
	v := c.Get(node)
	if v <= 0 {
		return false
	}
	c.slots[node] = v - 1
	return true
}

// Release gives one slot back to node
func (c *ConnectionSlots) Release(node NodeId) {
	c.slots[node] = min(c.Get(node)+1, c.max)
}

// Restore resets node to full capacity
func (c *ConnectionSlots) Restore(node NodeId) {
	delete(c.slots, node)
}

// Snapshot returns every counter that has been touched since the last Restore
func (c *ConnectionSlots) Snapshot() map[NodeId]int {
	out := make(map[NodeId]int, len(c.slots))
	for n, v := range c.slots {
		out[n] = v
	}
	return out
}
