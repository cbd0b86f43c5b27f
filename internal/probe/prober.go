// Package probe queries the emulated views through any JSON-RPC endpoint.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/web3call/internal/abisource"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Prober reads token and NFT views with eth_call.
type Prober struct {
	caller ethereum.ContractCaller
	abi    *abisource.Documents
	logger *slog.Logger
}

// TokenInfo contains the fungible token views. Emulated is false when the
// node returned an empty result for symbol().
type TokenInfo struct {
	Token       common.Address
	Account     common.Address
	Emulated    bool
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Balance     *big.Int
}

// NFTInfo contains the registry proxy views of one NFT.
type NFTInfo struct {
	Proxy          common.Address
	ID             *big.Int
	Found          bool
	CreatorID      *big.Int
	CreatorAddress common.Address
	SerialID       *big.Int
	ContentHash    common.Hash
	TokenURI       string
	Owner          common.Address
	Approved       common.Address
}

func New(caller ethereum.ContractCaller, docs *abisource.Documents) *Prober {
	if docs == nil {
		docs = abisource.MustLoadEmbedded()
	}
	return &Prober{
		caller: caller,
		abi:    docs,
		logger: logger.Named("prober"),
	}
}

// Dial connects to rpcURL. The returned close function releases the client.
func Dial(ctx context.Context, rpcURL string, docs *abisource.Documents) (*Prober, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	return New(client, docs), client.Close, nil
}

func (p *Prober) Token(ctx context.Context, token, account common.Address) (TokenInfo, error) {
	info := TokenInfo{Token: token, Account: account}

	symbol, ok, err := p.call(ctx, p.abi.Token, token, "symbol")
	if err != nil || !ok {
		return info, err
	}
	info.Emulated = true
	info.Symbol = symbol[0].(string)

	if out, ok, err := p.call(ctx, p.abi.Token, token, "name"); err != nil {
		return info, err
	} else if ok {
		info.Name = out[0].(string)
	}
	if out, ok, err := p.call(ctx, p.abi.Token, token, "decimals"); err != nil {
		return info, err
	} else if ok {
		info.Decimals = out[0].(uint8)
	}
	if out, ok, err := p.call(ctx, p.abi.Token, token, "totalSupply"); err != nil {
		return info, err
	} else if ok {
		info.TotalSupply = out[0].(*big.Int)
	}
	if out, ok, err := p.call(ctx, p.abi.Token, token, "balanceOf", account); err != nil {
		return info, err
	} else if ok {
		info.Balance = out[0].(*big.Int)
	}

	p.logger.
		With("token", token.Hex()).
		With("symbol", info.Symbol).
		Debug("token views read")

	return info, nil
}

func (p *Prober) NFT(ctx context.Context, proxy common.Address, id *big.Int) (NFTInfo, error) {
	info := NFTInfo{Proxy: proxy, ID: id}

	creatorID, ok, err := p.call(ctx, p.abi.Proxy, proxy, "creatorId", id)
	if err != nil || !ok {
		return info, err
	}
	info.Found = true
	info.CreatorID = creatorID[0].(*big.Int)

	views := []struct {
		method string
		assign func(any)
	}{
		{"creatorAddress", func(v any) { info.CreatorAddress = v.(common.Address) }},
		{"serialId", func(v any) { info.SerialID = v.(*big.Int) }},
		{"contentHash", func(v any) { info.ContentHash = common.Hash(v.([32]byte)) }},
		{"tokenURI", func(v any) { info.TokenURI = v.(string) }},
		{"ownerOf", func(v any) { info.Owner = v.(common.Address) }},
		{"getApproved", func(v any) { info.Approved = v.(common.Address) }},
	}
	for _, view := range views {
		out, ok, err := p.call(ctx, p.abi.Proxy, proxy, view.method, id)
		if err != nil {
			return info, err
		}
		if ok {
			view.assign(out[0])
		}
	}

	return info, nil
}

// NFTBalance returns how many registry NFTs owner holds.
func (p *Prober) NFTBalance(ctx context.Context, proxy, owner common.Address) (*big.Int, error) {
	out, ok, err := p.call(ctx, p.abi.Proxy, proxy, "balanceOf", owner)
	if err != nil || !ok {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// call returns ok=false when the node answered with an empty result.
func (p *Prober) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, bool, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	result, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to call %s on %s: %w", method, to.Hex(), err)
	}
	if len(result) == 0 {
		return nil, false, nil
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return out, true, nil
}
