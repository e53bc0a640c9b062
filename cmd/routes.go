package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/encodeous/babelcore/core"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes <dump.yaml>",
	Short: "Loads a route dump and prints the route table",
	Long: `Loads a yaml route dump into a route table and prints it in table order. Installed
routes are marked with *. With --lookup, the forwarding decision for a destination is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		dump, err := core.ParseRouteDump(data)
		if err != nil {
			return err
		}
		table, fib, err := dump.Load()
		if err != nil {
			return err
		}
		err = core.WriteSlots(os.Stdout, table)
		if err != nil {
			return err
		}

		lookup, _ := cmd.Flags().GetString("lookup")
		if lookup == "" {
			return nil
		}
		dst, err := netip.ParseAddr(lookup)
		if err != nil {
			return err
		}
		var src netip.Addr
		if from, _ := cmd.Flags().GetString("from"); from != "" {
			src, err = netip.ParseAddr(from)
			if err != nil {
				return err
			}
		}
		route, ok := fib.Lookup(dst, src)
		if !ok {
			fmt.Printf("%s: unreachable\n", dst)
			return nil
		}
		fmt.Printf("%s: %s\n", dst, route)
		return nil
	},
	GroupID: "babel",
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().String("lookup", "", "destination address to look up")
	routesCmd.Flags().String("from", "", "source address used for the lookup")
}
