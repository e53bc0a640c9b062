package core

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/encodeous/babelcore/state"
	"github.com/goccy/go-yaml"
)

// RouteEntry is one route of a route dump.
type RouteEntry struct {
	Prefix    netip.Prefix
	Src       netip.Prefix `yaml:",omitempty"` // unset for source-agnostic routes
	Id        state.RouterId
	Neigh     netip.AddrPort
	Seqno     uint16 `yaml:",omitempty"`
	Metric    uint16
	Installed bool `yaml:",omitempty"`
}

// RouteDump is a yaml snapshot of a route table.
type RouteDump struct {
	Export state.ExportCfg `yaml:",omitempty"`
	Routes []RouteEntry
}

func ParseRouteDump(data []byte) (*RouteDump, error) {
	var d RouteDump
	err := yaml.Unmarshal(data, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (e RouteEntry) key() (state.SourceKey, error) {
	if !e.Prefix.IsValid() {
		return state.SourceKey{}, fmt.Errorf("invalid prefix %v", e.Prefix)
	}
	src := state.Prefix{}
	if e.Src.IsValid() {
		src = state.PrefixFrom(e.Src)
	}
	return state.MustSourceKey(state.PrefixFrom(e.Prefix), src), nil
}

// Load inserts the routes of the dump into a fresh table backed by a forwarding view.
func (d *RouteDump) Load() (*RouteTable, *Fib, error) {
	cfg := state.Config{Export: d.Export}
	fib := NewFib(cfg.ExportPrefixes())
	table := NewRouteTable(fib)
	sources := state.NewSourceTable()
	neighs := make(map[netip.AddrPort]*state.Neighbour)

	for i, e := range d.Routes {
		key, err := e.key()
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: %w", i, err)
		}
		neigh, ok := neighs[e.Neigh]
		if !ok {
			neigh = &state.Neighbour{Addr: e.Neigh}
			neighs[e.Neigh] = neigh
		}
		if table.Find(key, neigh) != nil {
			return nil, nil, fmt.Errorf("route %d: duplicate route %s via %s", i, key, neigh)
		}
		route := table.Insert(&state.Route{
			Src:       sources.Retain(key, e.Id),
			Neigh:     neigh,
			NextHop:   e.Neigh.Addr(),
			Seqno:     e.Seqno,
			Metric:    e.Metric,
			RefMetric: e.Metric,
		})
		if e.Installed {
			if table.Installed(key) != nil {
				return nil, nil, fmt.Errorf("route %d: %s already has an installed route", i, key)
			}
			err = table.Install(route)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	return table, fib, nil
}

// WriteSlots prints the table one slot per line, in table order.
func WriteSlots(w io.Writer, t *RouteTable) error {
	for i := range t.Slots() {
		slot := t.Slot(i)
		_, err := fmt.Fprintf(w, "%d\t%s\n", i, slot[0].Key())
		if err != nil {
			return err
		}
		for _, route := range slot {
			mark := " "
			if route.Installed {
				mark = "*"
			}
			_, err = fmt.Fprintf(w, "\t%s %s\n", mark, route)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
