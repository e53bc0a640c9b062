package state

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	PacketMagic      = 42
	PacketVersion    = 2
	PacketHeaderSize = 4
)

// TLV types used by the authentication layer.
const (
	MessagePad1 = 0
	MessagePadN = 1
	MessageMAC  = 16
	MessagePC   = 17
)

var (
	ErrShortPacket  = errors.New("packet shorter than header")
	ErrBadMagic     = errors.New("bad packet magic")
	ErrBadVersion   = errors.New("unsupported packet version")
	ErrBodyOverrun  = errors.New("body length exceeds packet length")
	ErrTruncatedTLV = errors.New("truncated tlv")
)

// PacketHeader is the 4-byte packet header: magic, version, body length in network byte order.
type PacketHeader [PacketHeaderSize]byte

func NewPacketHeader(bodyLen uint16) PacketHeader {
	var h PacketHeader
	h[0] = PacketMagic
	h[1] = PacketVersion
	binary.BigEndian.PutUint16(h[2:], bodyLen)
	return h
}

func (h PacketHeader) BodyLen() int {
	return int(binary.BigEndian.Uint16(h[2:]))
}

// ParsePacketHeader validates the header of packet against the packet length.
func ParsePacketHeader(packet []byte) (PacketHeader, error) {
	var h PacketHeader
	if len(packet) < PacketHeaderSize {
		return h, ErrShortPacket
	}
	copy(h[:], packet)
	if h[0] != PacketMagic {
		return h, fmt.Errorf("%w: %d", ErrBadMagic, h[0])
	}
	if h[1] != PacketVersion {
		return h, fmt.Errorf("%w: %d", ErrBadVersion, h[1])
	}
	if PacketHeaderSize+h.BodyLen() > len(packet) {
		return h, fmt.Errorf("%w: %d > %d", ErrBodyOverrun, h.BodyLen(), len(packet)-PacketHeaderSize)
	}
	return h, nil
}

// Body returns the packet body, without trailer. The header must already be validated.
func (h PacketHeader) Body(packet []byte) []byte {
	return packet[PacketHeaderSize : PacketHeaderSize+h.BodyLen()]
}

// Trailer returns everything past the body. The header must already be validated.
func (h PacketHeader) Trailer(packet []byte) []byte {
	return packet[PacketHeaderSize+h.BodyLen():]
}

// WalkTLVs calls fn for every TLV in buf except Pad1. Iteration stops early when fn returns false.
func WalkTLVs(buf []byte, fn func(typ byte, value []byte) bool) error {
	i := 0
	for i < len(buf) {
		typ := buf[i]
		if typ == MessagePad1 {
			i++
			continue
		}
		if i+2 > len(buf) {
			return ErrTruncatedTLV
		}
		l := int(buf[i+1])
		if i+2+l > len(buf) {
			return ErrTruncatedTLV
		}
		if !fn(typ, buf[i+2:i+2+l]) {
			return nil
		}
		i += 2 + l
	}
	return nil
}

// AppendTLV appends a TLV. Values longer than 255 bytes are a programming error.
func AppendTLV(buf []byte, typ byte, value []byte) []byte {
	if len(value) > 0xff {
		panic(fmt.Sprintf("tlv value too long: %d", len(value)))
	}
	buf = append(buf, typ, byte(len(value)))
	return append(buf, value...)
}
