package state

import (
	"fmt"
	"net/netip"
	"time"
)

// Neighbour is a router heard on an interface. Routes refer to it by pointer identity.
type Neighbour struct {
	Addr  netip.AddrPort
	Iface *Interface
}

func (n *Neighbour) String() string {
	if n.Iface == nil {
		return n.Addr.String()
	}
	return fmt.Sprintf("%s%%%s", n.Addr, n.Iface.Name)
}

// Route is a candidate path to a Source through one neighbour.
type Route struct {
	Src       *Source
	Neigh     *Neighbour
	NextHop   netip.Addr
	Seqno     uint16
	Metric    uint16 // metric through this neighbour
	RefMetric uint16 // metric advertised by the neighbour
	Installed bool
	ExpireAt  time.Time
}

func (r *Route) Key() SourceKey {
	return r.Src.SourceKey
}

// Usable reports whether the route may be selected.
func (r *Route) Usable() bool {
	return r.Metric < INF
}

func (r *Route) String() string {
	return fmt.Sprintf("%s via %s (router: %s, seqno: %d, metric: %d)", r.Key(), r.Neigh, r.Src.Id, r.Seqno, r.Metric)
}
