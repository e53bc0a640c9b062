package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/encodeous/babelcore/core"
	"github.com/encodeous/babelcore/state"
	"github.com/spf13/cobra"
)

var hmacCmd = &cobra.Command{
	Use:   "hmac",
	Short: "Computes the authenticator of a packet",
	Long: `Computes the authenticator of a packet given as hex. The packet must start with its
4 byte header; anything after the body is ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		srcStr, _ := flags.GetString("src")
		dstStr, _ := flags.GetString("dst")
		algo, _ := flags.GetString("type")
		keyStr, _ := flags.GetString("key")
		packetStr, _ := flags.GetString("packet")
		port, _ := flags.GetUint16("port")

		src, err := parseEndpoint("src", srcStr, port)
		if err != nil {
			return err
		}
		dst, err := parseEndpoint("dst", dstStr, port)
		if err != nil {
			return err
		}
		typ, err := state.ParseAuthType(algo)
		if err != nil {
			return err
		}
		value, err := parseHex("key", keyStr)
		if err != nil {
			return err
		}
		packet, err := parseHex("packet", packetStr)
		if err != nil {
			return err
		}
		err = state.KeyValidator(state.KeyCfg{Id: "cli", Type: typ, Value: value})
		if err != nil {
			return err
		}
		hdr, err := state.ParsePacketHeader(packet)
		if err != nil {
			return err
		}

		key := state.NewKey("cli", typ, value).Retain()
		defer key.Release()
		fmt.Println(hex.EncodeToString(core.ComputeHMAC(src, dst, hdr, hdr.Body(packet), key)))
		return nil
	},
	GroupID: "auth",
}

func init() {
	rootCmd.AddCommand(hmacCmd)
	hmacCmd.Flags().String("src", "", "source address and port of the packet")
	hmacCmd.Flags().String("dst", "", "destination address and port of the packet")
	hmacCmd.Flags().Uint16("port", state.DefaultPort, "port used when --src or --dst has none")
	hmacCmd.Flags().StringP("type", "t", state.AuthSHA256.String(), "algorithm, hmac-sha256 or blake2s128")
	hmacCmd.Flags().StringP("key", "k", "", "key as hex")
	hmacCmd.Flags().StringP("packet", "p", "", "packet as hex")
	_ = hmacCmd.MarkFlagRequired("src")
	_ = hmacCmd.MarkFlagRequired("dst")
	_ = hmacCmd.MarkFlagRequired("key")
	_ = hmacCmd.MarkFlagRequired("packet")
}
