// Package emulator answers eth_call requests addressed to the rollup's
// virtual token contracts and its NFT registry proxy by reading ledger state
// directly instead of executing bytecode.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/compose-network/web3call/internal/abisource"
	"github.com/compose-network/web3call/internal/ledger"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/compose-network/web3call/internal/selector"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInternal marks failures of the data layer or of result encoding.
	// Callers must not expose the wrapped detail.
	ErrInternal = errors.New("internal error")

	// ErrMalformedCall is returned in strict mode when a known selector
	// carries arguments that do not decode.
	ErrMalformedCall = errors.New("malformed call arguments")
)

type (
	// Config holds everything New needs besides the store.
	Config struct {
		ProxyAddress    common.Address
		ABI             *abisource.Documents
		StrictArguments bool
		PromRegistry    prometheus.Registerer
	}

	// Emulator is immutable after New and safe for concurrent use.
	Emulator struct {
		store        ledger.Store
		proxyAddress common.Address
		proxy        *selector.Table[proxyHandler]
		token        *selector.Table[tokenHandler]
		strict       bool
		metrics      *metrics
		logger       *slog.Logger
	}
)

// New builds both selector tables. It fails when an ABI document declares a
// function outside the emulated set or when two functions share a selector.
func New(store ledger.Store, cfg Config) (*Emulator, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if cfg.ProxyAddress == (common.Address{}) {
		return nil, errors.New("registry proxy address is required")
	}
	proxy, token, err := buildTables(cfg.ABI)
	if err != nil {
		return nil, err
	}

	e := &Emulator{
		store:        store,
		proxyAddress: cfg.ProxyAddress,
		proxy:        proxy,
		token:        token,
		strict:       cfg.StrictArguments,
		metrics:      newMetrics(cfg.PromRegistry),
		logger:       logger.Named("emulator"),
	}

	e.logger.
		With("proxy_address", e.proxyAddress.Hex()).
		With("proxy_functions", proxy.Len()).
		With("token_functions", token.Len()).
		Info("call emulator ready")

	return e, nil
}

// buildTables loads the embedded documents when docs is nil.
func buildTables(docs *abisource.Documents) (*selector.Table[proxyHandler], *selector.Table[tokenHandler], error) {
	if docs == nil {
		var err error
		if docs, err = abisource.Load(""); err != nil {
			return nil, nil, err
		}
	}

	proxy, err := selector.Build(selector.Methods(docs.Proxy), resolveProxy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build registry proxy selector table: %w", err)
	}
	token, err := selector.Build(selector.Methods(docs.Token), resolveToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build token selector table: %w", err)
	}

	return proxy, token, nil
}

// ProxyAddress returns the registry proxy's address.
func (e *Emulator) ProxyAddress() common.Address {
	return e.proxyAddress
}

// Function describes one emulated function for listings.
type Function struct {
	Surface   string
	Selector  selector.Selector
	Signature string
	Outputs   string
}

// Functions lists the registry proxy functions followed by the token
// functions, each group ordered by signature.
func (e *Emulator) Functions() []Function {
	return listFunctions(e.proxy, e.token)
}

// Describe validates docs the way New does and lists the functions an
// emulator built from them would serve.
func Describe(docs *abisource.Documents) ([]Function, error) {
	proxy, token, err := buildTables(docs)
	if err != nil {
		return nil, err
	}
	return listFunctions(proxy, token), nil
}

func listFunctions(proxy *selector.Table[proxyHandler], token *selector.Table[tokenHandler]) []Function {
	functions := make([]Function, 0, proxy.Len()+token.Len())
	for _, entry := range proxy.Entries() {
		functions = append(functions, describe(surfaceProxy, entry.Selector, entry.Signature, entry.Method.Outputs))
	}
	for _, entry := range token.Entries() {
		functions = append(functions, describe(surfaceToken, entry.Selector, entry.Signature, entry.Method.Outputs))
	}
	return functions
}

func describe(surface string, sel selector.Selector, signature string, outputs abi.Arguments) Function {
	types := make([]string, len(outputs))
	for i, output := range outputs {
		types[i] = output.Type.String()
	}
	return Function{
		Surface:   surface,
		Selector:  sel,
		Signature: signature,
		Outputs:   "(" + strings.Join(types, ",") + ")",
	}
}

// EmulateCall runs the call data against the virtual contract at to. An
// empty result with a nil error means the call is not emulated.
func (e *Emulator) EmulateCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if to == e.proxyAddress {
		return e.callProxy(ctx, data)
	}

	token, err := e.store.LookupToken(ctx, to)
	if err != nil {
		e.metrics.observe(surfaceToken, outcomeError)
		return nil, internalError("look up token", err)
	}
	if token == nil || token.IsNFT {
		e.metrics.observe(surfaceNone, outcomeUnsupported)
		return []byte{}, nil
	}

	return e.callToken(ctx, token, data)
}

func (e *Emulator) callProxy(ctx context.Context, data []byte) ([]byte, error) {
	entry, args, err := decodeCall(e, e.proxy, surfaceProxy, data)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return []byte{}, nil
	}

	result, err := entry.Handler(e, ctx, args)
	return e.finish(surfaceProxy, entry.Signature, result, err)
}

func (e *Emulator) callToken(ctx context.Context, token *ledger.Token, data []byte) ([]byte, error) {
	entry, args, err := decodeCall(e, e.token, surfaceToken, data)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return []byte{}, nil
	}

	result, err := entry.Handler(e, ctx, token, args)
	return e.finish(surfaceToken, entry.Signature, result, err)
}

// decodeCall matches the selector and unpacks the arguments. A nil entry
// with a nil error means the call is unsupported.
func decodeCall[H any](e *Emulator, table *selector.Table[H], surface string, data []byte) (*selector.Entry[H], []any, error) {
	sel, ok := selector.FromBytes(data)
	if !ok {
		e.metrics.observe(surface, outcomeUnsupported)
		return nil, nil, nil
	}

	entry, ok := table.Lookup(sel)
	if !ok {
		e.metrics.observe(surface, outcomeUnsupported)
		e.logger.With("surface", surface).With("selector", sel.String()).Debug("unknown selector")
		return nil, nil, nil
	}

	args, err := entry.Method.Inputs.Unpack(data[selector.Length:])
	if err != nil {
		e.metrics.observe(surface, outcomeMalformed)
		e.logger.
			With("surface", surface).
			With("function", entry.Signature).
			With("err", err.Error()).
			Debug("call arguments do not decode")
		if e.strict {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrMalformedCall, entry.Signature, err)
		}
		return nil, nil, nil
	}

	return &entry, args, nil
}

func (e *Emulator) finish(surface, signature string, result []byte, err error) ([]byte, error) {
	if err != nil {
		e.metrics.observe(surface, outcomeError)
		e.logger.
			With("surface", surface).
			With("function", signature).
			With("err", err.Error()).
			Warn("emulated call failed")
		return nil, err
	}
	if len(result) == 0 {
		e.metrics.observe(surface, outcomeNotFound)
		return []byte{}, nil
	}
	e.metrics.observe(surface, outcomeEmulated)
	return result, nil
}

func internalError(action string, err error) error {
	return errors.Join(ErrInternal, fmt.Errorf("failed to %s: %w", action, err))
}
