package state

import (
	"encoding/hex"
	"fmt"
	"net/netip"
)

// AddrSize is the width of every address buffer handled by the route table and the HMAC engine.
const AddrSize = 16

// MaxPlen is the largest valid prefix length.
const MaxPlen = 128

// Addr is a fixed-width address. IPv4 addresses are stored in IPv4-mapped IPv6 form.
type Addr [AddrSize]byte

func AddrFrom(a netip.Addr) Addr {
	return a.As16()
}

func MustParseAddr(s string) Addr {
	return AddrFrom(netip.MustParseAddr(s))
}

// Netip returns the address, unmapping IPv4-mapped values.
func (a Addr) Netip() netip.Addr {
	return netip.AddrFrom16(a).Unmap()
}

func (a Addr) IsV4() bool {
	return netip.AddrFrom16(a).Is4In6()
}

// Masked zeroes every bit past plen.
func (a Addr) Masked(plen uint8) Addr {
	checkPlen(plen)
	var out Addr
	full := int(plen) / 8
	copy(out[:full], a[:full])
	if rem := plen % 8; rem != 0 {
		out[full] = a[full] & (0xff << (8 - rem))
	}
	return out
}

func (a Addr) String() string {
	return a.Netip().String()
}

func (a Addr) Hex() string {
	return hex.EncodeToString(a[:])
}

// Prefix is an address and a prefix length over the 128-bit space.
type Prefix struct {
	Addr Addr
	Plen uint8
}

// PrefixFrom converts p into the 128-bit space; IPv4 prefixes gain 96 bits of length.
func PrefixFrom(p netip.Prefix) Prefix {
	plen := p.Bits()
	if plen < 0 {
		panic(fmt.Sprintf("invalid prefix %v", p))
	}
	if p.Addr().Is4() {
		plen += 96
	}
	return Prefix{Addr: AddrFrom(p.Addr()), Plen: uint8(plen)}
}

func MustParsePrefix(s string) Prefix {
	return PrefixFrom(netip.MustParsePrefix(s))
}

// Netip converts back to a netip.Prefix. IPv4-mapped prefixes of length >= 96 become IPv4 prefixes.
func (p Prefix) Netip() netip.Prefix {
	checkPlen(p.Plen)
	if p.Addr.IsV4() && p.Plen >= 96 {
		return netip.PrefixFrom(p.Addr.Netip(), int(p.Plen)-96)
	}
	return netip.PrefixFrom(netip.AddrFrom16(p.Addr), int(p.Plen))
}

// Canonical returns the prefix with trailing bits cleared.
func (p Prefix) Canonical() Prefix {
	return Prefix{Addr: p.Addr.Masked(p.Plen), Plen: p.Plen}
}

func (p Prefix) String() string {
	return p.Netip().String()
}

func checkPlen(plen uint8) {
	if plen > MaxPlen {
		panic(fmt.Sprintf("prefix length %d out of range", plen))
	}
}
