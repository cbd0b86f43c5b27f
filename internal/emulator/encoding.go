package emulator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Results are encoded with fixed types, independent of the outputs an ABI
// document declares, so byte layout does not drift with the document.
var (
	uint256Result = mustArguments("uint256")
	addressResult = mustArguments("address")
	stringResult  = mustArguments("string")
	bytes32Result = mustArguments("bytes32")

	maxUint256 = new(uint256.Int).SetAllOne().ToBig()
)

func mustArguments(typeName string) abi.Arguments {
	t, err := abi.NewType(typeName, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid ABI type %q: %v", typeName, err))
	}
	return abi.Arguments{{Type: t}}
}

func encodeUint(v uint64) ([]byte, error) {
	return pack(uint256Result, new(big.Int).SetUint64(v))
}

// encodeBig rejects values outside [0, 2^256).
func encodeBig(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, internalError("encode uint256", fmt.Errorf("negative value %s", v))
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, internalError("encode uint256", fmt.Errorf("value %s exceeds 256 bits", v))
	}
	return pack(uint256Result, u.ToBig())
}

func encodeAddress(v common.Address) ([]byte, error) {
	return pack(addressResult, v)
}

func encodeString(v string) ([]byte, error) {
	return pack(stringResult, v)
}

func encodeBytes32(v common.Hash) ([]byte, error) {
	return pack(bytes32Result, [32]byte(v))
}

func pack(args abi.Arguments, v any) ([]byte, error) {
	out, err := args.Pack(v)
	if err != nil {
		return nil, internalError("encode result", err)
	}
	return out, nil
}
