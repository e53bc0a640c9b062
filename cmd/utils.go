package cmd

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

func parseHex(name, value string) ([]byte, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	data, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return data, nil
}

// parseEndpoint accepts an address with or without a port. A missing port defaults to port.
func parseEndpoint(name, value string, port uint16) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(value); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("--%s: invalid endpoint %q", name, value)
	}
	return netip.AddrPortFrom(addr, port), nil
}
