package cmd

import (
	"fmt"

	"github.com/encodeous/babelcore/core"
	"github.com/encodeous/babelcore/state"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <interface>",
	Short: "Verifies a signed packet against the keys of an interface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		srcStr, _ := flags.GetString("src")
		dstStr, _ := flags.GetString("dst")
		packetStr, _ := flags.GetString("packet")

		cfg, err := state.ReadConfig(state.ConfigPath)
		if err != nil {
			return err
		}
		err = state.ConfigValidator(cfg)
		if err != nil {
			return err
		}
		ring, ifaces, err := state.BuildKeyRing(cfg)
		if err != nil {
			return err
		}
		defer state.ReleaseKeyRing(ring, ifaces)
		iface, ok := ifaces[args[0]]
		if !ok {
			return fmt.Errorf("interface %s is not configured", args[0])
		}
		if len(iface.Keys) == 0 {
			return fmt.Errorf("interface %s has no keys", iface.Name)
		}

		src, err := parseEndpoint("src", srcStr, cfg.ProtocolPort())
		if err != nil {
			return err
		}
		dst, err := parseEndpoint("dst", dstStr, cfg.ProtocolPort())
		if err != nil {
			return err
		}
		packet, err := parseHex("packet", packetStr)
		if err != nil {
			return err
		}
		if !core.VerifyPacket(src, dst, packet, iface.Keys) {
			return fmt.Errorf("packet from %s failed authentication on %s", src, iface.Name)
		}
		fmt.Println("ok")
		return nil
	},
	GroupID: "auth",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("src", "", "source address of the packet, the port defaults to the configured port")
	verifyCmd.Flags().String("dst", "", "destination address of the packet, the port defaults to the configured port")
	verifyCmd.Flags().StringP("packet", "p", "", "packet with its trailer as hex")
	_ = verifyCmd.MarkFlagRequired("src")
	_ = verifyCmd.MarkFlagRequired("dst")
	_ = verifyCmd.MarkFlagRequired("packet")
}
