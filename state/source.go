package state

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// SourceKey identifies a (destination, source) pair. A SrcPlen of 0 means the entry applies to traffic from any source.
type SourceKey struct {
	Prefix    Addr
	Plen      uint8
	SrcPrefix Addr
	SrcPlen   uint8
}

func MustSourceKey(dst, src Prefix) SourceKey {
	k := SourceKey{Prefix: dst.Addr, Plen: dst.Plen, SrcPrefix: src.Addr, SrcPlen: src.Plen}
	k.MustValid()
	return k
}

// KeyFor builds a source-agnostic key.
func KeyFor(dst Prefix) SourceKey {
	return MustSourceKey(dst, Prefix{})
}

func (k SourceKey) Dst() Prefix {
	return Prefix{Addr: k.Prefix, Plen: k.Plen}
}

func (k SourceKey) Src() Prefix {
	return Prefix{Addr: k.SrcPrefix, Plen: k.SrcPlen}
}

func (k SourceKey) IsSourceSpecific() bool {
	return k.SrcPlen != 0
}

// MustValid panics when a prefix length is out of range.
func (k SourceKey) MustValid() {
	checkPlen(k.Plen)
	checkPlen(k.SrcPlen)
}

// Compare orders keys for the route table. Addresses are compared over the
// whole buffer, without masking by prefix length; a byte mismatch yields the
// difference of the first differing byte. A SrcPlen of 0 sorts after every
// non-zero SrcPlen for the same destination.
func (k SourceKey) Compare(o SourceKey) int {
	if c := compareBytes(k.Prefix, o.Prefix); c != 0 {
		return c
	}
	if c := comparePlen(k.Plen, o.Plen); c != 0 {
		return c
	}
	if (k.SrcPlen == 0) != (o.SrcPlen == 0) {
		if k.SrcPlen == 0 {
			return 1
		}
		return -1
	}
	if c := compareBytes(k.SrcPrefix, o.SrcPrefix); c != 0 {
		return c
	}
	return comparePlen(k.SrcPlen, o.SrcPlen)
}

func (k SourceKey) String() string {
	if k.SrcPlen == 0 {
		return k.Dst().String()
	}
	return fmt.Sprintf("%s from %s", k.Dst(), k.Src())
}

func compareBytes(a, b Addr) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return 0
}

func comparePlen(a, b uint8) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// RouterId is the 8-byte identifier of the router originating a route.
type RouterId [8]byte

func (id RouterId) String() string {
	parts := make([]string, len(id))
	for i, b := range id {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

func (id RouterId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RouterId) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(strings.ReplaceAll(string(text), ":", ""))
	if err != nil {
		return fmt.Errorf("invalid router-id %q: %w", text, err)
	}
	if len(raw) != len(id) {
		return fmt.Errorf("invalid router-id %q: expected %d bytes, got %d", text, len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// Source is shared by every route describing the same (destination, source) pair from the same origin.
type Source struct {
	SourceKey
	Id RouterId
	FD
	refs int
}

// FD is a feasibility distance.
type FD struct {
	Seqno  uint16
	Metric uint16
}

func (s *Source) Refs() int {
	return s.refs
}

func (s *Source) compare(key SourceKey, id RouterId) int {
	if c := s.SourceKey.Compare(key); c != 0 {
		return c
	}
	return bytes.Compare(s.Id[:], id[:])
}

// SourceTable interns Sources. Access must happen on the dispatch goroutine.
type SourceTable struct {
	sources []*Source
}

func NewSourceTable() *SourceTable {
	return &SourceTable{}
}

func (t *SourceTable) search(key SourceKey, id RouterId) (int, bool) {
	return slices.BinarySearchFunc(t.sources, key, func(s *Source, k SourceKey) int {
		return s.compare(k, id)
	})
}

// Find returns the interned Source, or nil.
func (t *SourceTable) Find(key SourceKey, id RouterId) *Source {
	key.MustValid()
	idx, ok := t.search(key, id)
	if !ok {
		return nil
	}
	return t.sources[idx]
}

// Retain returns the Source for (key, id), creating it if needed, and takes a reference on it.
func (t *SourceTable) Retain(key SourceKey, id RouterId) *Source {
	key.MustValid()
	idx, ok := t.search(key, id)
	if !ok {
		s := &Source{SourceKey: key, Id: id}
		t.sources = slices.Insert(t.sources, idx, s)
	}
	s := t.sources[idx]
	s.refs++
	return s
}

// Release drops a reference. The Source leaves the table once the last reference is gone.
func (t *SourceTable) Release(s *Source) {
	if s.refs <= 0 {
		panic(fmt.Sprintf("release of unreferenced source %s", s.SourceKey))
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	idx, ok := t.search(s.SourceKey, s.Id)
	if !ok || t.sources[idx] != s {
		panic(fmt.Sprintf("source %s is not interned", s.SourceKey))
	}
	t.sources = slices.Delete(t.sources, idx, idx+1)
}

func (t *SourceTable) Len() int {
	return len(t.sources)
}
