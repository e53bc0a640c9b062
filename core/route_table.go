package core

import (
	"fmt"
	"iter"
	"slices"

	"github.com/encodeous/babelcore/state"
)

// Kernel receives installation decisions for the forwarding plane.
type Kernel interface {
	AddRoute(r *state.Route) error
	DelRoute(r *state.Route) error
	// SwitchRoute replaces the installed route old with new for the same source.
	SwitchRoute(old, new *state.Route) error
}

// RouteTable holds every known route, grouped into slots of routes that share
// a source key. Slots are kept in ascending key order so that a slot can be
// located by binary search. Within a slot, routes keep insertion order, except
// that the installed route, if any, is at the head.
//
// RouteTable is not safe for concurrent use; it belongs to the dispatch goroutine.
type RouteTable struct {
	slots  [][]*state.Route
	kernel Kernel
	count  int
}

// NewRouteTable creates an empty table. kernel may be nil, in which case installation is only recorded on the routes.
func NewRouteTable(kernel Kernel) *RouteTable {
	return &RouteTable{kernel: kernel}
}

// RouteCompare compares key against the source of route, see state.SourceKey.Compare.
func RouteCompare(key state.SourceKey, route *state.Route) int {
	return key.Compare(route.Key())
}

// FindSlot locates the slot for key. When the key is absent, the returned index is where its slot would be inserted.
func (t *RouteTable) FindSlot(key state.SourceKey) (int, bool) {
	key.MustValid()
	lo, hi := 0, len(t.slots)-1
	for lo <= hi {
		m := int(uint(lo+hi) >> 1)
		c := RouteCompare(key, t.slots[m][0])
		if c == 0 {
			return m, true
		} else if c < 0 {
			hi = m - 1
		} else {
			lo = m + 1
		}
	}
	return lo, false
}

// Find returns the route for key learned from neigh, or nil.
func (t *RouteTable) Find(key state.SourceKey, neigh *state.Neighbour) *state.Route {
	idx, ok := t.FindSlot(key)
	if !ok {
		return nil
	}
	for _, r := range t.slots[idx] {
		if r.Neigh == neigh {
			return r
		}
	}
	return nil
}

// Insert links route into the table: a new slot is created at its ordered
// position, otherwise the route is appended to the end of its slot.
func (t *RouteTable) Insert(route *state.Route) *state.Route {
	if route.Src == nil {
		panic("inserting route without source")
	}
	if route.Installed {
		panic(fmt.Sprintf("inserting installed route %s", route))
	}
	idx, ok := t.FindSlot(route.Key())
	if ok {
		if slices.Contains(t.slots[idx], route) {
			panic(fmt.Sprintf("route %s inserted twice", route))
		}
		t.slots[idx] = append(t.slots[idx], route)
	} else {
		if len(t.slots) == cap(t.slots) {
			t.slots = slices.Grow(t.slots, max(state.InitialRouteSlots, cap(t.slots)))
		}
		t.slots = slices.Insert(t.slots, idx, []*state.Route{route})
	}
	t.count++
	return route
}

// Flush unlinks route, uninstalling it first if needed. The route is removed
// even when the kernel fails to delete it; the kernel error is returned.
func (t *RouteTable) Flush(route *state.Route) (bool, error) {
	idx, ok := t.FindSlot(route.Key())
	if !ok {
		return false, nil
	}
	chain := t.slots[idx]
	pos := slices.Index(chain, route)
	if pos == -1 {
		return false, nil
	}
	var err error
	if route.Installed {
		err = t.Uninstall(route)
		route.Installed = false
	}
	chain = slices.Delete(chain, pos, pos+1)
	if len(chain) == 0 {
		t.slots = slices.Delete(t.slots, idx, idx+1)
		t.shrink()
	} else {
		t.slots[idx] = chain
	}
	t.count--
	return true, err
}

// FlushNeighbour flushes every route learned from neigh and returns them.
func (t *RouteTable) FlushNeighbour(neigh *state.Neighbour) ([]*state.Route, error) {
	var victims []*state.Route
	for r := range t.Routes() {
		if r.Neigh == neigh {
			victims = append(victims, r)
		}
	}
	var firstErr error
	for _, r := range victims {
		_, err := t.Flush(r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return victims, firstErr
}

func (t *RouteTable) shrink() {
	c := cap(t.slots)
	if c <= state.InitialRouteSlots || len(t.slots) >= c/8 {
		return
	}
	slots := make([][]*state.Route, len(t.slots), max(state.InitialRouteSlots, c/2))
	copy(slots, t.slots)
	t.slots = slots
}

// Installed returns the installed route for key, or nil.
func (t *RouteTable) Installed(key state.SourceKey) *state.Route {
	idx, ok := t.FindSlot(key)
	if !ok {
		return nil
	}
	if head := t.slots[idx][0]; head.Installed {
		return head
	}
	return nil
}

// Install makes route the installed route of its slot, replacing the previous one.
func (t *RouteTable) Install(route *state.Route) error {
	idx, ok := t.FindSlot(route.Key())
	if !ok {
		panic(fmt.Sprintf("installing unknown route %s", route))
	}
	chain := t.slots[idx]
	pos := slices.Index(chain, route)
	if pos == -1 {
		panic(fmt.Sprintf("installing unknown route %s", route))
	}
	if route.Installed {
		return nil
	}
	if old := chain[0]; old.Installed {
		if t.kernel != nil {
			err := t.kernel.SwitchRoute(old, route)
			if err != nil {
				return fmt.Errorf("switch route %s: %w", route.Key(), err)
			}
		}
		old.Installed = false
	} else if t.kernel != nil {
		err := t.kernel.AddRoute(route)
		if err != nil {
			return fmt.Errorf("add route %s: %w", route.Key(), err)
		}
	}
	route.Installed = true
	copy(chain[1:pos+1], chain[:pos])
	chain[0] = route
	return nil
}

// Uninstall removes route from the kernel. It stays in the table.
func (t *RouteTable) Uninstall(route *state.Route) error {
	if !route.Installed {
		return nil
	}
	if t.kernel != nil {
		err := t.kernel.DelRoute(route)
		if err != nil {
			return fmt.Errorf("delete route %s: %w", route.Key(), err)
		}
	}
	route.Installed = false
	return nil
}

// Slot returns the routes of slot i. The slice must not be modified.
func (t *RouteTable) Slot(i int) []*state.Route {
	return t.slots[i]
}

// Slots is the number of distinct source keys.
func (t *RouteTable) Slots() int {
	return len(t.slots)
}

// Len is the number of routes.
func (t *RouteTable) Len() int {
	return t.count
}

// Routes iterates over every route in slot order. The table must not be modified during iteration.
func (t *RouteTable) Routes() iter.Seq[*state.Route] {
	return func(yield func(*state.Route) bool) {
		for _, chain := range t.slots {
			for _, r := range chain {
				if !yield(r) {
					return
				}
			}
		}
	}
}
