package core

import (
	"fmt"
	"net/netip"

	"github.com/encodeous/babelcore/state"
)

// SignPacket appends one MAC TLV per key to the trailer of packet. packet must
// hold a header and a body and no trailer. The returned slice may share
// storage with packet.
func SignPacket(src, dst netip.AddrPort, packet []byte, keys []*state.Key) ([]byte, error) {
	hdr, err := state.ParsePacketHeader(packet)
	if err != nil {
		return nil, err
	}
	if len(hdr.Trailer(packet)) != 0 {
		return nil, fmt.Errorf("packet already has a %d byte trailer", len(hdr.Trailer(packet)))
	}
	body := hdr.Body(packet)
	var mac [state.MaxHMACSize]byte
	for _, k := range keys {
		n := ComputeHMACInto(&mac, src, dst, hdr, body, k)
		packet = state.AppendTLV(packet, state.MessageMAC, mac[:n])
	}
	return packet, nil
}

// VerifyPacket reports whether some MAC TLV in the trailer of packet matches
// some key. A packet without MAC TLVs, or with a malformed header or trailer,
// is rejected.
func VerifyPacket(src, dst netip.AddrPort, packet []byte, keys []*state.Key) bool {
	hdr, err := state.ParsePacketHeader(packet)
	if err != nil {
		return false
	}
	body := hdr.Body(packet)

	// digests are computed lazily, at most once per key
	expected := make([][]byte, len(keys))
	ok := false
	err = state.WalkTLVs(hdr.Trailer(packet), func(typ byte, value []byte) bool {
		if typ != state.MessageMAC {
			return true
		}
		for i, k := range keys {
			if len(value) != k.Type.DigestSize() {
				continue
			}
			if expected[i] == nil {
				expected[i] = ComputeHMAC(src, dst, hdr, body, k)
			}
			if VerifyHMAC(expected[i], value) {
				ok = true
				return false
			}
		}
		return true
	})
	return err == nil && ok
}
