package memory

import (
	"container/list"
	"time"

	"github.com/embermind/recall/core"
)

// volatileTier is the bounded in-process tier: a map plus an access
// ordered list (front = most recent). Not safe for concurrent use;
// the Store's mutex guards it.
type volatileTier struct {
	entries  map[string]*list.Element
	order    *list.List
	capacity int
}

func newVolatileTier(capacity int) *volatileTier {
	return &volatileTier{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// add inserts an item, returning the evicted least-recently-used item
// when the tier was at capacity. The caller decides the evicted
// item's fate (demote or archive) outside the lock.
func (v *volatileTier) add(item *core.MemoryItem) *core.MemoryItem {
	if elem, ok := v.entries[item.ID]; ok {
		elem.Value = item
		v.order.MoveToFront(elem)
		return nil
	}

	var evicted *core.MemoryItem
	if v.order.Len() >= v.capacity {
		back := v.order.Back()
		if back != nil {
			evicted = back.Value.(*core.MemoryItem)
			v.order.Remove(back)
			delete(v.entries, evicted.ID)
		}
	}

	v.entries[item.ID] = v.order.PushFront(item)
	return evicted
}

// get returns the item and promotes it to most-recently-used.
func (v *volatileTier) get(id string) (*core.MemoryItem, bool) {
	elem, ok := v.entries[id]
	if !ok {
		return nil, false
	}
	v.order.MoveToFront(elem)
	return elem.Value.(*core.MemoryItem), true
}

func (v *volatileTier) remove(id string) {
	if elem, ok := v.entries[id]; ok {
		v.order.Remove(elem)
		delete(v.entries, id)
	}
}

func (v *volatileTier) len() int {
	return v.order.Len()
}

// items returns every resident item, most recently used first.
func (v *volatileTier) items() []*core.MemoryItem {
	out := make([]*core.MemoryItem, 0, v.order.Len())
	for elem := v.order.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(*core.MemoryItem))
	}
	return out
}

// expired returns items whose decay clock (time since last access)
// has run past maxAge.
func (v *volatileTier) expired(now time.Time, maxAge time.Duration) []*core.MemoryItem {
	var out []*core.MemoryItem
	for elem := v.order.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*core.MemoryItem)
		if now.Sub(item.LastAccessedAt) > maxAge {
			out = append(out, item)
		}
	}
	return out
}
