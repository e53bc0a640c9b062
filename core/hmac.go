package core

// Packet authentication as described in RFC 8967:
// https://datatracker.ietf.org/doc/html/rfc8967

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"
	"net/netip"

	"github.com/encodeous/babelcore/state"
	"golang.org/x/crypto/blake2s"
)

// PseudoHeaderSize is the length of the addressing part of the pseudo-header.
const PseudoHeaderSize = 2 * (state.AddrSize + 2)

// appendPseudoHeader appends src address, src port, dst address, dst port. IPv4 addresses are written IPv4-mapped.
func appendPseudoHeader(buf []byte, src, dst netip.AddrPort) []byte {
	for _, ap := range []netip.AddrPort{src, dst} {
		a := ap.Addr().As16()
		buf = append(buf, a[:]...)
		buf = binary.BigEndian.AppendUint16(buf, ap.Port())
	}
	return buf
}

func newMAC(key *state.Key) hash.Hash {
	if key.Destroyed() {
		panic(fmt.Sprintf("key %s used after destruction", key.Id))
	}
	switch key.Type {
	case state.AuthSHA256:
		return hmac.New(sha256.New, key.Value)
	case state.AuthBLAKE2s128:
		h, err := blake2s.New128(key.Value)
		if err != nil {
			panic(fmt.Sprintf("key %s: %v", key.Id, err))
		}
		return h
	}
	panic(fmt.Sprintf("key %s has unknown type %d", key.Id, key.Type))
}

// ComputeHMAC computes the authenticator of a packet with key. The packet
// body must not contain MAC TLVs. The result is key.Type.DigestSize() long.
func ComputeHMAC(src, dst netip.AddrPort, hdr state.PacketHeader, body []byte, key *state.Key) []byte {
	var out [state.MaxHMACSize]byte
	n := ComputeHMACInto(&out, src, dst, hdr, body, key)
	return out[:n:n]
}

// ComputeHMACInto writes the authenticator into out and returns its length.
func ComputeHMACInto(out *[state.MaxHMACSize]byte, src, dst netip.AddrPort, hdr state.PacketHeader, body []byte, key *state.Key) int {
	var ph [PseudoHeaderSize + state.PacketHeaderSize]byte
	buf := appendPseudoHeader(ph[:0], src, dst)
	buf = append(buf, hdr[:]...)

	mac := newMAC(key)
	mac.Write(buf)
	mac.Write(body)
	sum := mac.Sum(out[:0])
	return len(sum)
}

// VerifyHMAC compares a received authenticator against the expected one in constant time.
func VerifyHMAC(expected, got []byte) bool {
	return subtle.ConstantTimeCompare(expected, got) == 1
}
