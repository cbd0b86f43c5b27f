package inspect

import (
	"fmt"

	"github.com/compose-network/web3call/configs"
	"github.com/compose-network/web3call/internal/abisource"
	"github.com/compose-network/web3call/internal/emulator"
	"github.com/compose-network/web3call/internal/storage"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect the emulated surfaces offline",
	Long: `Inspect works without a running server.

Examples:
  web3call inspect selectors
  web3call inspect cid 0x2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
  web3call inspect call --to=0x2000000000000000000000000000000000000001 --data=0x95d89b41
`,
}

var selectorsCMD = &cobra.Command{
	Use:   "selectors",
	Short: "Print the selector tables of the registry proxy and the tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := abisource.Load(configs.Values.Emulator.ABIDir)
		if err != nil {
			return err
		}
		functions, err := emulator.Describe(docs)
		if err != nil {
			return err
		}
		return WriteSelectors(cmd.OutOrStdout(), functions)
	},
}

var cidCMD = &cobra.Command{
	Use:   "cid <hex digest>",
	Short: "Print the CIDv0 and ipfs:// URI of a sha2-256 digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, uri, err := CIDOf(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c)
		fmt.Fprintln(cmd.OutOrStdout(), uri)
		return nil
	},
}

var callCMD = &cobra.Command{
	Use:   "call",
	Short: "Run one emulated call against the configured ledger and print the hex result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Values.Emulator.Validate(); err != nil {
			return err
		}
		to, _ := cmd.Flags().GetString("to")
		data, _ := cmd.Flags().GetString("data")

		docs, err := abisource.Load(configs.Values.Emulator.ABIDir)
		if err != nil {
			return err
		}

		store, closeFn, err := storage.Open(cmd.Context(), configs.Values.Storage, configs.Values.Cache, nil)
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		emu, err := emulator.New(store, emulator.Config{
			ProxyAddress:    configs.Values.Emulator.ProxyAddressValue(),
			ABI:             docs,
			StrictArguments: configs.Values.Emulator.StrictArguments,
		})
		if err != nil {
			return err
		}

		result, err := Call(cmd.Context(), emu, to, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	callCMD.Flags().String("to", "", "Contract address")
	callCMD.Flags().String("data", "", "Call data as hex")
	_ = callCMD.MarkFlagRequired("to")
	_ = callCMD.MarkFlagRequired("data")

	CMD.AddCommand(selectorsCMD, cidCMD, callCMD)
}
