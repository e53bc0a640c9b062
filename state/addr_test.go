package state

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixFrom_V4(t *testing.T) {
	p := MustParsePrefix("10.0.0.0/8")
	assert.Equal(t, uint8(104), p.Plen)
	assert.True(t, p.Addr.IsV4())
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), p.Netip())
	assert.Equal(t, "10.0.0.0/8", p.String())
}

func TestPrefixFrom_V6(t *testing.T) {
	p := MustParsePrefix("2001:db8::/32")
	assert.Equal(t, uint8(32), p.Plen)
	assert.False(t, p.Addr.IsV4())
	assert.Equal(t, netip.MustParsePrefix("2001:db8::/32"), p.Netip())
}

func TestPrefix_ZeroIsDefaultV6(t *testing.T) {
	assert.Equal(t, netip.MustParsePrefix("::/0"), Prefix{}.Netip())
}

func TestAddr_Masked(t *testing.T) {
	a := MustParseAddr("2001:db8:ffff::1")
	assert.Equal(t, MustParseAddr("2001:db8::"), a.Masked(32))
	assert.Equal(t, MustParseAddr("2001:db8:f000::"), a.Masked(36))
	assert.Equal(t, a, a.Masked(128))
	assert.Equal(t, Addr{}, a.Masked(0))
}

func TestPrefix_Canonical(t *testing.T) {
	p := Prefix{Addr: MustParseAddr("10.1.2.3"), Plen: 96 + 16}
	assert.Equal(t, "10.1.0.0/16", p.Canonical().String())
}

func TestAddr_Hex(t *testing.T) {
	assert.Equal(t, "00000000000000000000ffff0a0003e3", MustParseAddr("10.0.3.227").Hex())
	assert.Equal(t, "10.0.3.227", MustParseAddr("::ffff:10.0.3.227").String())
}

func TestCheckPlen_Panics(t *testing.T) {
	assert.Panics(t, func() {
		Prefix{Plen: 129}.Netip()
	})
	assert.Panics(t, func() {
		Addr{}.Masked(200)
	})
}
