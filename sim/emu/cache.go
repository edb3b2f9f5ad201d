package emu

import "github.com/cache-sim/cache-sim/sim"

// cache is a fixed set of slots plus the per-tick access counts of every
// content requested since the counts were last cleared.
type cache struct {
	slots []sim.ContentID
	pos   map[sim.ContentID]int // content -> slot index
	freq  map[sim.ContentID]int // accesses since clearFrequencies

	freqBuf []float32
}

func newCache(capacity int) *cache {
	c := &cache{
		slots: make([]sim.ContentID, capacity),
		pos:   make(map[sim.ContentID]int, capacity),
		freq:  make(map[sim.ContentID]int),
	}
	c.reset()
	return c
}

// reset empties every slot and forgets all counts.
func (c *cache) reset() {
	for i := range c.slots {
		c.slots[i] = sim.NoContent
	}
	clear(c.pos)
	clear(c.freq)
}

func (c *cache) capacity() int { return len(c.slots) }

// size is the number of occupied slots.
func (c *cache) size() int { return len(c.pos) }

func (c *cache) contains(id sim.ContentID) bool {
	_, ok := c.pos[id]
	return ok
}

// hitTest counts an access to id and reports whether it is cached.
func (c *cache) hitTest(id sim.ContentID) bool {
	c.freq[id]++
	return c.contains(id)
}

// frequencies returns the access count of each id. The result is reused by the
// next call.
func (c *cache) frequencies(ids []sim.ContentID) []float32 {
	c.freqBuf = c.freqBuf[:0]
	for _, id := range ids {
		c.freqBuf = append(c.freqBuf, float32(c.freq[id]))
	}
	return c.freqBuf
}

func (c *cache) clearFrequencies() { clear(c.freq) }

// replace puts newID in the slot held by oldID, or in the first empty slot
// when oldID is NoContent.
func (c *cache) replace(newID, oldID sim.ContentID) {
	if c.contains(newID) {
		panic("emu: content is already cached")
	}
	idx := -1
	if oldID == sim.NoContent {
		for i, id := range c.slots {
			if id == sim.NoContent {
				idx = i
				break
			}
		}
	} else if i, ok := c.pos[oldID]; ok {
		idx = i
		delete(c.pos, oldID)
	}
	if idx < 0 {
		panic("emu: no slot to replace")
	}
	c.slots[idx] = newID
	c.pos[newID] = idx
}
