package state

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mappedPrefix(t *testing.T, a ...byte) Addr {
	t.Helper()
	var out Addr
	out[10], out[11] = 0xff, 0xff
	copy(out[12:], a)
	return out
}

func TestSourceKeyCompare_Equal(t *testing.T) {
	k := SourceKey{
		Prefix:    mappedPrefix(t, 10, 0, 3, 227),
		Plen:      128,
		SrcPrefix: mappedPrefix(t, 0, 0, 0, 0),
		SrcPlen:   96,
	}
	assert.Equal(t, 0, k.Compare(k))
}

func TestSourceKeyCompare_FirstDifferingByte(t *testing.T) {
	src := mappedPrefix(t, 0, 0, 0, 0)
	route := SourceKey{Prefix: mappedPrefix(t, 10, 0, 3, 227), Plen: 128, SrcPrefix: src, SrcPlen: 96}
	query := SourceKey{Prefix: mappedPrefix(t, 192, 168, 1, 101), Plen: 128, SrcPrefix: src, SrcPlen: 96}
	assert.Equal(t, 182, query.Compare(route))
	assert.Equal(t, -182, route.Compare(query))
}

func TestSourceKeyCompare_Plen(t *testing.T) {
	a := KeyFor(MustParsePrefix("10.0.0.0/8"))
	b := KeyFor(MustParsePrefix("10.0.0.0/16"))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
}

func TestSourceKeyCompare_SourceAgnosticLast(t *testing.T) {
	dst := MustParsePrefix("2001:db8::/32")
	agnostic := KeyFor(dst)
	specific := MustSourceKey(dst, MustParsePrefix("ffff::/16"))
	assert.Positive(t, agnostic.Compare(specific))
	assert.Negative(t, specific.Compare(agnostic))
}

func TestSourceKeyCompare_SourceBytesThenPlen(t *testing.T) {
	dst := MustParsePrefix("2001:db8::/32")
	a := MustSourceKey(dst, MustParsePrefix("2001:db8:1::/48"))
	b := MustSourceKey(dst, MustParsePrefix("2001:db8:2::/48"))
	c := MustSourceKey(dst, MustParsePrefix("2001:db8:2::/64"))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
}

func TestSourceKeyCompare_NoMasking(t *testing.T) {
	// trailing bits past the prefix length still take part in the ordering
	a := SourceKey{Prefix: MustParseAddr("2001:db8::1"), Plen: 32}
	b := SourceKey{Prefix: MustParseAddr("2001:db8::2"), Plen: 32}
	assert.Equal(t, -1, a.Compare(b))
}

func randomKeys(n int) []SourceKey {
	r := rand.New(rand.NewPCG(1, 2))
	keys := make([]SourceKey, 0, n)
	for range n {
		var k SourceKey
		// a small alphabet produces many ties
		for i := 12; i < AddrSize; i++ {
			k.Prefix[i] = byte(r.IntN(3))
			k.SrcPrefix[i] = byte(r.IntN(3))
		}
		k.Plen = uint8(r.IntN(3)) + 120
		if r.IntN(2) == 0 {
			k.SrcPlen = uint8(r.IntN(3)) + 120
		}
		keys = append(keys, k)
	}
	return keys
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func TestSourceKeyCompare_TotalOrder(t *testing.T) {
	keys := randomKeys(40)
	for _, a := range keys {
		for _, b := range keys {
			require.Equal(t, -sign(a.Compare(b)), sign(b.Compare(a)), "antisymmetry %s %s", a, b)
			if a.Compare(b) == 0 {
				require.Equal(t, a, b)
			}
			for _, c := range keys {
				if a.Compare(b) < 0 && b.Compare(c) < 0 {
					require.Negative(t, a.Compare(c), "transitivity %s %s %s", a, b, c)
				}
			}
		}
	}
}

func TestSourceKey_String(t *testing.T) {
	assert.Equal(t, "10.0.0.0/8", KeyFor(MustParsePrefix("10.0.0.0/8")).String())
	assert.Equal(t, "2001:db8::/32 from fd00::/8",
		MustSourceKey(MustParsePrefix("2001:db8::/32"), MustParsePrefix("fd00::/8")).String())
}

func TestMustSourceKey_PanicsOnBadPlen(t *testing.T) {
	assert.Panics(t, func() {
		MustSourceKey(Prefix{Plen: 129}, Prefix{})
	})
}

func TestRouterId_Text(t *testing.T) {
	id := RouterId{0x02, 0x16, 0x3e, 0xff, 0xfe, 0xc5, 0xe1, 0xef}
	text, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, id.String(), string(text))

	var back RouterId
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, id, back)

	assert.Error(t, back.UnmarshalText([]byte("02:16")))
	assert.Error(t, back.UnmarshalText([]byte("zz:16:3e:ff:fe:c5:e1:ef")))
}

func TestSourceTable_Refcount(t *testing.T) {
	st := NewSourceTable()
	key := KeyFor(MustParsePrefix("10.0.0.0/8"))
	a := RouterId{1}
	b := RouterId{2}

	s1 := st.Retain(key, a)
	s2 := st.Retain(key, a)
	assert.Same(t, s1, s2)
	assert.Equal(t, 2, s1.Refs())

	s3 := st.Retain(key, b)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, st.Len())

	st.Release(s1)
	assert.Same(t, s1, st.Find(key, a))
	st.Release(s1)
	assert.Nil(t, st.Find(key, a))
	assert.Equal(t, 1, st.Len())

	assert.Panics(t, func() {
		st.Release(s1)
	})
}

func TestSourceTable_Sorted(t *testing.T) {
	st := NewSourceTable()
	keys := randomKeys(30)
	for _, k := range keys {
		st.Retain(k, RouterId{})
	}
	slices.SortFunc(keys, SourceKey.Compare)
	keys = slices.Compact(keys)
	require.Equal(t, len(keys), st.Len())
	for _, k := range keys {
		assert.NotNil(t, st.Find(k, RouterId{}), k.String())
	}
}
