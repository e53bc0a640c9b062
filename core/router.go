package core

// This file makes references to RFC 8966:
// https://datatracker.ietf.org/doc/html/rfc8966

import (
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/babelcore/state"
)

type BabelRouter struct {
	*state.State
	Table   *RouteTable
	Sources *state.SourceTable
	// Fib mirrors the installed routes
	Fib      *Fib
	Replay   *ReplayGuard
	Counters map[string]*PacketCounter
}

func (r *BabelRouter) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	r.Fib = NewFib(s.ExportPrefixes())
	r.Table = NewRouteTable(r.Fib)
	r.Sources = state.NewSourceTable()
	r.Replay = NewReplayGuard()
	r.Counters = make(map[string]*PacketCounter)
	for name := range s.Ifaces {
		c, err := NewPacketCounter()
		if err != nil {
			return err
		}
		r.Counters[name] = c
	}

	s.Log.Debug("schedule router tasks")
	s.Env.RepeatTask(func(s *state.State) error {
		r.RunGC(time.Now())
		return nil
	}, state.GcDelay)
	return nil
}

func (r *BabelRouter) Cleanup(s *state.State) error {
	var routes []*state.Route
	for route := range r.Table.Routes() {
		routes = append(routes, route)
	}
	for _, route := range routes {
		r.flush(route)
	}
	r.State = nil
	return nil
}

func (r *BabelRouter) flush(route *state.Route) {
	_, err := r.Table.Flush(route)
	if err != nil {
		r.Log.Warn("failed to uninstall flushed route", "route", route, "error", err)
	}
	r.Sources.Release(route.Src)
}

// HandleUpdate applies an update received from neigh.
func (r *BabelRouter) HandleUpdate(neigh *state.Neighbour, key state.SourceKey, id state.RouterId, seqno, metric uint16) *state.Route {
	// 3.5.3.  Route Acquisition
	//
	//   When a Babel node receives an update (prefix, plen, router-id, seqno,
	//   metric) from a neighbour neigh, it checks whether it already has a
	//   route table entry indexed by (prefix, plen, neigh).
	now := time.Now()
	route := r.Table.Find(key, neigh)
	if route == nil {
		//   *  if the metric is infinite (the update is a retraction of a route
		//      we do not know about), the update is ignored;
		if metric == state.INF {
			return nil
		}
		route = r.Table.Insert(&state.Route{
			Src:       r.Sources.Retain(key, id),
			Neigh:     neigh,
			NextHop:   neigh.Addr.Addr(),
			Seqno:     seqno,
			Metric:    metric,
			RefMetric: metric,
			ExpireAt:  now.Add(state.RouteExpiryTime),
		})
		r.Log.Debug("route added", "route", route)
	} else {
		//   *  otherwise, the entry's sequence number, advertised metric, metric,
		//      and router-id are updated, and if the advertised metric is not
		//      infinite, the route's expiry timer is reset
		if route.Src.Id != id {
			old := route.Src
			route.Src = r.Sources.Retain(key, id)
			r.Sources.Release(old)
		}
		route.Seqno = seqno
		route.Metric = metric
		route.RefMetric = metric
		if metric != state.INF {
			route.ExpireAt = now.Add(state.RouteExpiryTime)
		}
	}
	err := r.Select(key)
	if err != nil {
		r.Log.Warn("route selection failed", "key", key, "error", err)
	}
	return route
}

// Retract marks the route of neigh for key as retracted. It stays in the table until it expires.
func (r *BabelRouter) Retract(neigh *state.Neighbour, key state.SourceKey) {
	route := r.Table.Find(key, neigh)
	if route == nil {
		return
	}
	route.Metric = state.INF
	err := r.Select(key)
	if err != nil {
		r.Log.Warn("route selection failed", "key", key, "error", err)
	}
}

// Select installs the usable route with the smallest metric for key. Ties keep the installed route.
func (r *BabelRouter) Select(key state.SourceKey) error {
	// 3.6.  Route Selection
	//   *  a route with infinite metric (a retracted route) is never
	//      selected;
	idx, ok := r.Table.FindSlot(key)
	if !ok {
		return nil
	}
	var best *state.Route
	for _, route := range r.Table.Slot(idx) {
		if !route.Usable() {
			continue
		}
		if best == nil || route.Metric < best.Metric || (route.Metric == best.Metric && route.Installed) {
			best = route
		}
	}
	cur := r.Table.Installed(key)
	if best == nil {
		if cur != nil {
			r.Log.Debug("route retracted", "route", cur)
			return r.Table.Uninstall(cur)
		}
		return nil
	}
	if best == cur {
		return nil
	}
	r.Log.Debug("route selected", "route", best)
	return r.Table.Install(best)
}

// DropNeighbour flushes every route learned from neigh and forgets its authentication state.
func (r *BabelRouter) DropNeighbour(neigh *state.Neighbour) {
	routes, err := r.Table.FlushNeighbour(neigh)
	if err != nil {
		r.Log.Warn("failed to uninstall routes of neighbour", "neigh", neigh, "error", err)
	}
	r.reselect(routes)
	r.Replay.Forget(neigh)
}

func (r *BabelRouter) reselect(flushed []*state.Route) {
	keys := make([]state.SourceKey, 0, len(flushed))
	for _, route := range flushed {
		keys = append(keys, route.Key())
		r.Sources.Release(route.Src)
	}
	slices.SortFunc(keys, state.SourceKey.Compare)
	keys = slices.Compact(keys)
	for _, key := range keys {
		err := r.Select(key)
		if err != nil {
			r.Log.Warn("route selection failed", "key", key, "error", err)
		}
	}
}

func (r *BabelRouter) RunGC(now time.Time) {
	var expired []*state.Route
	for route := range r.Table.Routes() {
		if now.After(route.ExpireAt) {
			expired = append(expired, route)
		}
	}
	for _, route := range expired {
		_, err := r.Table.Flush(route)
		if err != nil {
			r.Log.Warn("failed to uninstall expired route", "route", route, "error", err)
		}
		r.Log.Debug("stale route dropped", "route", route)
	}
	r.reselect(expired)
	r.Replay.Purge()
}

// AuthenticatePacket checks a packet received from neigh on local. Packets are
// accepted when no key is configured on the interface. Otherwise the MAC check
// must pass and the packet counter must be fresh; a bad MAC is rejected.
func (r *BabelRouter) AuthenticatePacket(neigh *state.Neighbour, local netip.AddrPort, packet []byte) (PC, ReplayVerdict) {
	if neigh.Iface == nil || len(neigh.Iface.Keys) == 0 {
		return PC{}, ReplayAccept
	}
	if !VerifyPacket(neigh.Addr, local, packet, neigh.Iface.Keys) {
		r.Log.Debug("dropping packet with bad mac", "from", neigh)
		return PC{}, ReplayReject
	}
	hdr, _ := state.ParsePacketHeader(packet)
	pc, found, err := ParsePC(hdr.Body(packet))
	if err != nil || !found {
		r.Log.Debug("dropping authenticated packet without pc", "from", neigh, "error", err)
		return PC{}, ReplayReject
	}
	verdict := r.Replay.Check(neigh, pc)
	switch verdict {
	case ReplayAccept:
		r.Replay.Commit(neigh, pc)
	case ReplayReject:
		r.Log.Debug("dropping replayed packet", "from", neigh, "pc", pc.Counter)
	case ReplayChallenge:
		r.Log.Debug("neighbour must be challenged", "from", neigh)
	}
	return pc, verdict
}

// SignPacket adds a packet counter to the body of packet and signs it with the keys of iface.
func (r *BabelRouter) SignPacket(iface *state.Interface, local, dst netip.AddrPort, packet []byte) ([]byte, error) {
	if len(iface.Keys) == 0 {
		return packet, nil
	}
	counter, ok := r.Counters[iface.Name]
	if !ok {
		return nil, fmt.Errorf("no packet counter for interface %s", iface.Name)
	}
	hdr, err := state.ParsePacketHeader(packet)
	if err != nil {
		return nil, err
	}
	pc, err := counter.Next()
	if err != nil {
		return nil, err
	}
	body := pc.AppendTLV(slices.Clone(hdr.Body(packet)))
	if len(body) > state.MaxBodyLen {
		return nil, fmt.Errorf("body too long: %d", len(body))
	}
	hdr = state.NewPacketHeader(uint16(len(body)))
	out := make([]byte, 0, state.PacketHeaderSize+len(body)+len(iface.Keys)*(2+state.MaxHMACSize))
	out = append(out, hdr[:]...)
	out = append(out, body...)
	return SignPacket(local, dst, out, iface.Keys)
}
