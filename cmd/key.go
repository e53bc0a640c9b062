package cmd

import (
	"crypto/rand"
	"fmt"

	"github.com/encodeous/babelcore/state"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generates a new authentication key and prints it as hex",
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, _ := cmd.Flags().GetString("type")
		typ, err := state.ParseAuthType(algo)
		if err != nil {
			return err
		}
		secret := make(state.Secret, typ.MaxKeySize())
		_, err = rand.Read(secret)
		if err != nil {
			return err
		}
		text, err := secret.MarshalText()
		if err != nil {
			return err
		}
		fmt.Println(string(text))
		return nil
	},
	GroupID: "auth",
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.Flags().StringP("type", "t", state.AuthSHA256.String(), "algorithm of the key, hmac-sha256 or blake2s128")
}
