package probe

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// FormatUnits renders amount with the given number of decimals, exactly and
// without trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "-"
	}

	digits := new(big.Int).Abs(amount).String()
	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		split := len(digits) - int(decimals)
		whole, frac := digits[:split], strings.TrimRight(digits[split:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}

	if amount.Sign() < 0 {
		return "-" + digits
	}
	return digits
}

// isMaxUint256 reports whether v is 2^256-1, the value views return for
// unbounded quantities.
func isMaxUint256(v *big.Int) bool {
	if v == nil {
		return false
	}
	u, overflow := uint256.FromBig(v)
	return !overflow && v.Sign() > 0 && u.Eq(new(uint256.Int).SetAllOne())
}

func formatSupply(v *big.Int, decimals uint8) string {
	if isMaxUint256(v) {
		return "unbounded (2^256-1)"
	}
	return FormatUnits(v, decimals)
}

// FormatToken formats token views for display.
func FormatToken(info TokenInfo) string {
	if !info.Emulated {
		return fmt.Sprintf("%s: not an emulated token", info.Token.Hex())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "token %s (%s)\n", info.Token.Hex(), info.Symbol)
	fmt.Fprintf(&b, "  name:         %s\n", info.Name)
	fmt.Fprintf(&b, "  decimals:     %d\n", info.Decimals)
	fmt.Fprintf(&b, "  total supply: %s\n", formatSupply(info.TotalSupply, info.Decimals))
	if info.Balance != nil {
		fmt.Fprintf(&b, "  balance of %s: %s %s (%s raw)", info.Account.Hex(), FormatUnits(info.Balance, info.Decimals), info.Symbol, info.Balance.String())
	} else {
		fmt.Fprintf(&b, "  balance of %s: unavailable", info.Account.Hex())
	}
	return b.String()
}

// FormatNFT formats registry views for display.
func FormatNFT(info NFTInfo) string {
	if !info.Found {
		return fmt.Sprintf("nft %s: not found in registry %s", info.ID, info.Proxy.Hex())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "nft %s (registry %s)\n", info.ID, info.Proxy.Hex())
	fmt.Fprintf(&b, "  creator:      #%s %s\n", info.CreatorID, info.CreatorAddress.Hex())
	fmt.Fprintf(&b, "  serial:       %s\n", info.SerialID)
	fmt.Fprintf(&b, "  content hash: %s\n", info.ContentHash.Hex())
	fmt.Fprintf(&b, "  token uri:    %s\n", info.TokenURI)
	fmt.Fprintf(&b, "  owner:        %s\n", info.Owner.Hex())
	fmt.Fprintf(&b, "  approved:     %s", info.Approved.Hex())
	return b.String()
}
