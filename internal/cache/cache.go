// Package cache keeps last received reading per category.
package cache

import (
	"sync"
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/wxrelay/wxproto"
)

// Cache starts empty; a category becomes available after first Record
// and stays available until process exit.
// Safe for concurrent use: Snapshot never observes half of Record.
type Cache struct {
	mu      sync.RWMutex
	avail   wxproto.Mask
	values  wxproto.Values
	updated [wxproto.MaxCategories]atomic_clock.Clock
}

func New() *Cache { return &Cache{} }

// Record overwrites value of category bit and marks it available.
func (c *Cache) Record(bit uint8, s wxproto.Section) {
	if bit >= wxproto.MaxCategories {
		panic("code error cache.Record bit out of range")
	}
	if s == nil {
		panic("code error cache.Record section=nil")
	}
	c.mu.Lock()
	c.values[bit] = s
	c.avail |= wxproto.Bit(bit)
	c.mu.Unlock()
	c.updated[bit].SetNow()
}

// Snapshot returns req AND available mask with corresponding values.
// Values outside returned mask are nil.
func (c *Cache) Snapshot(req wxproto.Mask) (wxproto.Mask, wxproto.Values) {
	var out wxproto.Values
	c.mu.RLock()
	defer c.mu.RUnlock()
	mask := req & c.avail
	for bit := uint8(0); bit < wxproto.MaxCategories; bit++ {
		if mask.Has(bit) {
			out[bit] = c.values[bit]
		}
	}
	return mask, out
}

func (c *Cache) Available() wxproto.Mask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avail
}

func (c *Cache) Get(bit uint8) (wxproto.Section, bool) {
	if bit >= wxproto.MaxCategories {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.values[bit]
	return s, s != nil
}

// Age is time since last Record of category, ok=false if never recorded.
func (c *Cache) Age(bit uint8) (time.Duration, bool) {
	if bit >= wxproto.MaxCategories || c.updated[bit].IsZero() {
		return 0, false
	}
	return atomic_clock.Since(&c.updated[bit]), true
}
