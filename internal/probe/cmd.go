package probe

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/compose-network/web3call/configs"
	"github.com/compose-network/web3call/internal/abisource"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "probe",
	Short: "Query token and NFT views through a JSON-RPC endpoint",
	Long: `Probe calls the emulated views with eth_call against any node exposing them
and prints the decoded results.

Examples:
  web3call probe token --rpc-url=http://127.0.0.1:8545 --token=0x20...01 --account=0xaa...
  web3call probe nft --rpc-url=http://127.0.0.1:8545 --id=7
`,
}

var tokenCMD = &cobra.Command{
	Use:   "token",
	Short: "Read name, symbol, decimals, supply and an account balance of a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		rpcURL, _ := cmd.Flags().GetString("rpc-url")
		tokenFlag, _ := cmd.Flags().GetString("token")
		accountFlag, _ := cmd.Flags().GetString("account")

		token, err := parseAddress("token", tokenFlag)
		if err != nil {
			return err
		}
		account, err := parseAddress("account", accountFlag)
		if err != nil {
			return err
		}

		prober, closeFn, err := dial(cmd, rpcURL)
		if err != nil {
			return err
		}
		defer closeFn()

		info, err := prober.Token(cmd.Context(), token, account)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), FormatToken(info))
		return nil
	},
}

var nftCMD = &cobra.Command{
	Use:   "nft",
	Short: "Read the registry views of one NFT",
	RunE: func(cmd *cobra.Command, args []string) error {
		rpcURL, _ := cmd.Flags().GetString("rpc-url")
		idFlag, _ := cmd.Flags().GetString("id")
		proxyFlag, _ := cmd.Flags().GetString("proxy")

		id, ok := new(big.Int).SetString(idFlag, 0)
		if !ok || id.Sign() < 0 {
			return fmt.Errorf("invalid --id %q", idFlag)
		}
		if proxyFlag == "" {
			proxyFlag = configs.Values.Emulator.ProxyAddress
		}
		proxy, err := parseAddress("proxy", proxyFlag)
		if err != nil {
			return err
		}

		prober, closeFn, err := dial(cmd, rpcURL)
		if err != nil {
			return err
		}
		defer closeFn()

		info, err := prober.NFT(cmd.Context(), proxy, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), FormatNFT(info))
		return nil
	},
}

func dial(cmd *cobra.Command, rpcURL string) (*Prober, func(), error) {
	if rpcURL == "" {
		return nil, nil, errors.New("--rpc-url is required")
	}
	docs, err := abisource.Load(configs.Values.Emulator.ABIDir)
	if err != nil {
		return nil, nil, err
	}
	return Dial(cmd.Context(), rpcURL, docs)
}

func parseAddress(flag, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", flag, value)
	}
	return common.HexToAddress(value), nil
}

func init() {
	CMD.PersistentFlags().String("rpc-url", "http://127.0.0.1:8545", "JSON-RPC endpoint to query")

	tokenCMD.Flags().String("token", "", "Token contract address")
	tokenCMD.Flags().String("account", "", "Account whose balance is read")
	_ = tokenCMD.MarkFlagRequired("token")
	_ = tokenCMD.MarkFlagRequired("account")

	nftCMD.Flags().String("id", "", "NFT token id (decimal or 0x-hex)")
	nftCMD.Flags().String("proxy", "", "Registry proxy address (defaults to emulator.proxy-address)")
	_ = nftCMD.MarkFlagRequired("id")

	CMD.AddCommand(tokenCMD, nftCMD)
}
