package inspect

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/compose-network/web3call/internal/cid"
	"github.com/compose-network/web3call/internal/emulator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// WriteSelectors prints one row per emulated function.
func WriteSelectors(w io.Writer, functions []emulator.Function) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SURFACE\tSELECTOR\tSIGNATURE\tRETURNS")
	for _, f := range functions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Surface, f.Selector, f.Signature, f.Outputs)
	}
	return tw.Flush()
}

// CIDOf parses a 32-byte hex digest and returns its CIDv0 and ipfs:// URI.
func CIDOf(digestHex string) (string, string, error) {
	raw, err := hexutil.Decode(withPrefix(digestHex))
	if err != nil {
		return "", "", fmt.Errorf("invalid digest %q: %w", digestHex, err)
	}
	if len(raw) != common.HashLength {
		return "", "", fmt.Errorf("invalid digest %q: want %d bytes, got %d", digestHex, common.HashLength, len(raw))
	}
	digest := common.BytesToHash(raw)
	return cid.FromDigest(digest), cid.URI(digest), nil
}

type Caller interface {
	EmulateCall(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Call runs one emulated call and returns the result as 0x-prefixed hex.
func Call(ctx context.Context, caller Caller, toHex, dataHex string) (string, error) {
	if !common.IsHexAddress(toHex) {
		return "", fmt.Errorf("invalid --to address %q", toHex)
	}
	data, err := hexutil.Decode(withPrefix(dataHex))
	if err != nil {
		return "", fmt.Errorf("invalid --data %q: %w", dataHex, err)
	}

	result, err := caller.EmulateCall(ctx, common.HexToAddress(toHex), data)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(result), nil
}

func withPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}
