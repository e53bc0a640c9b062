package cmd

import (
	"encoding/hex"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/babelcore/core"
	"github.com/encodeous/babelcore/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portConfig = `
id: router-1
port: 7000
keys:
  - id: primary
    type: hmac-sha256
    value: "3610111213c0ffee"
interfaces:
  - name: eth0
    keys: [primary]
`

func TestParseEndpoint(t *testing.T) {
	ap, err := parseEndpoint("src", "fe80::1", 7000)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("[fe80::1]:7000"), ap)

	ap, err = parseEndpoint("src", "[fe80::1]:6697", 7000)
	require.NoError(t, err)
	assert.Equal(t, uint16(6697), ap.Port())

	ap, err = parseEndpoint("dst", "192.0.2.1", state.DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.1:6696"), ap)

	_, err = parseEndpoint("dst", "not-an-address", 7000)
	assert.ErrorContains(t, err, "--dst")
}

func signedPacket(t *testing.T, port uint16) string {
	t.Helper()
	key := state.NewKey("primary", state.AuthSHA256, []byte{0x36, 0x10, 0x11, 0x12, 0x13, 0xc0, 0xff, 0xee}).Retain()
	defer key.Release()
	body := []byte{1, 0}
	hdr := state.NewPacketHeader(uint16(len(body)))
	packet := append(hdr[:], body...)
	src := netip.AddrPortFrom(netip.MustParseAddr("fe80::1"), port)
	dst := netip.AddrPortFrom(netip.MustParseAddr("ff02::1:6"), port)
	signed, err := core.SignPacket(src, dst, packet, []*state.Key{key})
	require.NoError(t, err)
	return hex.EncodeToString(signed)
}

func TestVerify_ConfiguredPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(portConfig), 0o600))
	old := state.ConfigPath
	t.Cleanup(func() {
		state.ConfigPath = old
		rootCmd.SetArgs(nil)
	})

	verify := func(packet string) error {
		rootCmd.SetArgs([]string{"verify", "eth0", "-c", path, "--src", "fe80::1", "--dst", "ff02::1:6", "-p", packet})
		return rootCmd.Execute()
	}
	assert.NoError(t, verify(signedPacket(t, 7000)))
	assert.Error(t, verify(signedPacket(t, state.DefaultPort)), "signed for the default port")
}
