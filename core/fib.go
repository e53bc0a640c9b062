package core

import (
	"net/netip"
	"slices"

	"github.com/encodeous/babelcore/state"
	"github.com/gaissmai/bart"
)

// Fib is the forwarding view of the installed routes. It implements Kernel.
// Destinations are matched by longest prefix first, then the source address
// is matched among the routes of that destination; source-agnostic routes sit
// at the zero prefix of the destination's address family. A route from 0.0.0.0/0
// shares that prefix with the source-agnostic route, so each inner prefix holds
// the routes sorted by key.
type Fib struct {
	dst    bart.Table[*bart.Table[[]*state.Route]]
	export bart.Table[netip.Prefix]
	count  int
}

// NewFib creates a forwarding view that only accepts destinations inside the
// export prefixes. The export prefixes must not overlap, see state.CoalescePrefix.
func NewFib(export []netip.Prefix) *Fib {
	f := &Fib{}
	for _, p := range export {
		f.export.Insert(p.Masked(), p.Masked())
	}
	return f
}

// Exported reports whether dst lies inside the export prefixes.
func (f *Fib) Exported(dst netip.Prefix) bool {
	outer, ok := f.export.Lookup(dst.Addr())
	return ok && outer.Bits() <= dst.Bits()
}

func anyPrefix(dst netip.Prefix) netip.Prefix {
	if dst.Addr().Is4() {
		return netip.PrefixFrom(netip.IPv4Unspecified(), 0)
	}
	return netip.PrefixFrom(netip.IPv6Unspecified(), 0)
}

func fibPrefixes(r *state.Route) (netip.Prefix, netip.Prefix) {
	key := r.Key()
	dst := key.Dst().Netip().Masked()
	if !key.IsSourceSpecific() {
		return dst, anyPrefix(dst)
	}
	return dst, key.Src().Netip().Masked()
}

func (f *Fib) AddRoute(r *state.Route) error {
	dst, src := fibPrefixes(r)
	if !f.Exported(dst) {
		return nil
	}
	inner, ok := f.dst.Get(dst)
	if !ok {
		inner = &bart.Table[[]*state.Route]{}
		f.dst.Insert(dst, inner)
	}
	routes, _ := inner.Get(src)
	routes = slices.Clone(routes)
	key := r.Key()
	idx := slices.IndexFunc(routes, func(cur *state.Route) bool {
		return cur.Key() == key
	})
	if idx == -1 {
		routes = append(routes, r)
		slices.SortFunc(routes, func(a, b *state.Route) int {
			return a.Key().Compare(b.Key())
		})
		f.count++
	} else {
		routes[idx] = r
	}
	inner.Insert(src, routes)
	return nil
}

func (f *Fib) DelRoute(r *state.Route) error {
	dst, src := fibPrefixes(r)
	inner, ok := f.dst.Get(dst)
	if !ok {
		return nil
	}
	routes, _ := inner.Get(src)
	idx := slices.Index(routes, r)
	if idx == -1 {
		return nil
	}
	routes = slices.Delete(slices.Clone(routes), idx, idx+1)
	f.count--
	if len(routes) > 0 {
		inner.Insert(src, routes)
		return nil
	}
	inner.Delete(src)
	if inner.Size() == 0 {
		f.dst.Delete(dst)
	}
	return nil
}

func (f *Fib) SwitchRoute(old, new *state.Route) error {
	err := f.DelRoute(old)
	if err != nil {
		return err
	}
	return f.AddRoute(new)
}

// Lookup returns the route packets from src to dst are forwarded along. An invalid src only matches routes that accept any source.
func (f *Fib) Lookup(dst, src netip.Addr) (*state.Route, bool) {
	dst = dst.Unmap()
	inner, ok := f.dst.Lookup(dst)
	if !ok {
		return nil, false
	}
	var routes []*state.Route
	if !src.IsValid() {
		routes, ok = inner.Get(anyPrefix(netip.PrefixFrom(dst, 0)))
	} else {
		routes, ok = inner.Lookup(src.Unmap())
	}
	if !ok || len(routes) == 0 {
		return nil, false
	}
	return routes[0], true
}

// Len is the number of routes in the forwarding view.
func (f *Fib) Len() int {
	return f.count
}
