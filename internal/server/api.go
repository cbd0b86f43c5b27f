package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/compose-network/web3call/internal/emulator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller runs call data against the virtual contracts.
type Caller interface {
	EmulateCall(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// CallArgs is the transaction object of eth_call. Only To and the call data
// take part in emulation; the remaining fields are accepted so standard
// clients can send them.
type CallArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

// callData prefers input over the legacy data field.
func (args *CallArgs) callData() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

// EthAPI is registered under the eth namespace.
type EthAPI struct {
	caller Caller
	logger *slog.Logger
}

// Call serves eth_call. The block parameter is accepted and ignored: the
// emulated views always read the latest finalized ledger state.
func (api *EthAPI) Call(ctx context.Context, args CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if args.To == nil {
		return hexutil.Bytes{}, nil
	}

	result, err := api.caller.EmulateCall(ctx, *args.To, args.callData())
	if err != nil {
		return nil, api.toRPCError(*args.To, err)
	}
	return result, nil
}

func (api *EthAPI) toRPCError(to common.Address, err error) error {
	switch {
	case errors.Is(err, emulator.ErrMalformedCall):
		return &callError{code: errCodeInvalidParams, message: emulator.ErrMalformedCall.Error()}
	default:
		api.logger.With("to", to.Hex()).With("err", err.Error()).Error("eth_call failed")
		return &callError{code: errCodeInternal, message: emulator.ErrInternal.Error()}
	}
}

const (
	errCodeInvalidParams = -32602
	errCodeInternal      = -32603
)

// callError carries a JSON-RPC error code without exposing the cause.
type callError struct {
	code    int
	message string
}

func (e *callError) Error() string {
	return e.message
}

func (e *callError) ErrorCode() int {
	return e.code
}
