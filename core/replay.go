package core

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/netip"
	"slices"

	"github.com/encodeous/babelcore/state"
	"github.com/jellydator/ttlcache/v3"
)

// PC is the content of a packet counter TLV.
type PC struct {
	Counter uint32
	Index   []byte
}

func (p PC) AppendTLV(buf []byte) []byte {
	value := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(p.Index)), p.Counter)
	return state.AppendTLV(buf, state.MessagePC, append(value, p.Index...))
}

// ParsePC returns the first packet counter TLV of body.
func ParsePC(body []byte) (PC, bool, error) {
	var pc PC
	found := false
	var perr error
	err := state.WalkTLVs(body, func(typ byte, value []byte) bool {
		if typ != state.MessagePC {
			return true
		}
		if len(value) < 5 || len(value)-4 > state.MaxIndexLen {
			perr = fmt.Errorf("invalid pc tlv length %d", len(value))
			return false
		}
		pc.Counter = binary.BigEndian.Uint32(value)
		pc.Index = slices.Clone(value[4:])
		found = true
		return false
	})
	if err != nil {
		return PC{}, false, err
	}
	if perr != nil {
		return PC{}, false, perr
	}
	return pc, found, nil
}

type ReplayVerdict int

const (
	// ReplayAccept: same index, strictly larger counter.
	ReplayAccept ReplayVerdict = iota
	// ReplayReject: same index, counter not larger than the last accepted one.
	ReplayReject
	// ReplayChallenge: unknown neighbour or new index, the neighbour must be challenged.
	ReplayChallenge
)

func (v ReplayVerdict) String() string {
	switch v {
	case ReplayAccept:
		return "accept"
	case ReplayReject:
		return "reject"
	case ReplayChallenge:
		return "challenge"
	}
	return fmt.Sprintf("ReplayVerdict(%d)", int(v))
}

type replayKey struct {
	Addr  netip.AddrPort
	Iface string
}

type neighAuth struct {
	Index []byte
	PC    uint32
}

// ReplayGuard remembers the last (index, pc) accepted from each neighbour.
type ReplayGuard struct {
	cache *ttlcache.Cache[replayKey, neighAuth]
}

func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{
		cache: ttlcache.New[replayKey, neighAuth](
			ttlcache.WithTTL[replayKey, neighAuth](state.NeighbourAuthExpiry),
			ttlcache.WithDisableTouchOnHit[replayKey, neighAuth](),
		),
	}
}

func keyOf(neigh *state.Neighbour) replayKey {
	k := replayKey{Addr: neigh.Addr}
	if neigh.Iface != nil {
		k.Iface = neigh.Iface.Name
	}
	return k
}

func (g *ReplayGuard) Check(neigh *state.Neighbour, pc PC) ReplayVerdict {
	item := g.cache.Get(keyOf(neigh))
	if item == nil || item.IsExpired() {
		return ReplayChallenge
	}
	last := item.Value()
	if !bytes.Equal(last.Index, pc.Index) {
		return ReplayChallenge
	}
	if pc.Counter <= last.PC {
		return ReplayReject
	}
	return ReplayAccept
}

// Commit records pc as the last accepted counter of neigh.
func (g *ReplayGuard) Commit(neigh *state.Neighbour, pc PC) {
	g.cache.Set(keyOf(neigh), neighAuth{Index: slices.Clone(pc.Index), PC: pc.Counter}, ttlcache.DefaultTTL)
}

func (g *ReplayGuard) Forget(neigh *state.Neighbour) {
	g.cache.Delete(keyOf(neigh))
}

func (g *ReplayGuard) Purge() {
	g.cache.DeleteExpired()
}

func (g *ReplayGuard) Len() int {
	return g.cache.Len()
}

// PacketCounter generates the packet counters of outgoing packets on one interface.
type PacketCounter struct {
	index []byte
	pc    uint32
}

const pcIndexLen = 8

func NewPacketCounter() (*PacketCounter, error) {
	c := &PacketCounter{}
	return c, c.rekey()
}

func (c *PacketCounter) rekey() error {
	idx := make([]byte, pcIndexLen)
	_, err := rand.Read(idx)
	if err != nil {
		return fmt.Errorf("generate pc index: %w", err)
	}
	c.index = idx
	c.pc = 0
	return nil
}

// Next returns the counter for the next packet. A fresh index is drawn when the counter wraps.
func (c *PacketCounter) Next() (PC, error) {
	c.pc++
	if c.pc == 0 {
		err := c.rekey()
		if err != nil {
			return PC{}, err
		}
		c.pc = 1
	}
	return PC{Counter: c.pc, Index: slices.Clone(c.index)}, nil
}
