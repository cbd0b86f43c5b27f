package emulator

import (
	"context"
	"math"
	"math/big"

	"github.com/compose-network/web3call/internal/cid"
	"github.com/compose-network/web3call/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

type (
	proxyHandler func(e *Emulator, ctx context.Context, args []any) ([]byte, error)
	tokenHandler func(e *Emulator, ctx context.Context, token *ledger.Token, args []any) ([]byte, error)
)

// proxyHandlers is the complete registry proxy surface. Handlers receive
// arguments already unpacked against the signature they are keyed by.
var proxyHandlers = map[string]proxyHandler{
	"creatorId(uint256)":      (*Emulator).creatorID,
	"creatorAddress(uint256)": (*Emulator).creatorAddress,
	"serialId(uint256)":       (*Emulator).serialID,
	"contentHash(uint256)":    (*Emulator).contentHash,
	"tokenURI(uint256)":       (*Emulator).tokenURI,
	"balanceOf(address)":      (*Emulator).nftBalanceOf,
	"ownerOf(uint256)":        (*Emulator).ownerOf,
	"getApproved(uint256)":    (*Emulator).getApproved,
}

// tokenHandlers is the complete fungible token surface.
var tokenHandlers = map[string]tokenHandler{
	"name()":                     (*Emulator).symbol,
	"symbol()":                   (*Emulator).symbol,
	"decimals()":                 (*Emulator).decimals,
	"totalSupply()":              (*Emulator).unbounded,
	"allowance(address,address)": (*Emulator).unbounded,
	"balanceOf(address)":         (*Emulator).tokenBalanceOf,
}

func resolveProxy(signature string) (proxyHandler, bool) {
	h, ok := proxyHandlers[signature]
	return h, ok
}

func resolveToken(signature string) (tokenHandler, bool) {
	h, ok := tokenHandlers[signature]
	return h, ok
}

// lookupNFT treats ids outside the 32-bit id space as missing.
func (e *Emulator) lookupNFT(ctx context.Context, args []any) (*ledger.NFT, error) {
	id := args[0].(*big.Int)
	if !id.IsUint64() || id.Uint64() > math.MaxUint32 {
		return nil, nil
	}
	nft, err := e.store.LookupNFTByID(ctx, ledger.TokenID(id.Uint64()))
	if err != nil {
		return nil, internalError("look up NFT", err)
	}
	return nft, nil
}

// withNFT runs encode for an existing NFT and yields an empty result
// otherwise.
func (e *Emulator) withNFT(ctx context.Context, args []any, encode func(*ledger.NFT) ([]byte, error)) ([]byte, error) {
	nft, err := e.lookupNFT(ctx, args)
	if err != nil || nft == nil {
		return nil, err
	}
	return encode(nft)
}

func (e *Emulator) creatorID(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		return encodeUint(uint64(nft.CreatorID))
	})
}

func (e *Emulator) creatorAddress(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		return encodeAddress(nft.CreatorAddress)
	})
}

func (e *Emulator) serialID(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		return encodeUint(uint64(nft.SerialID))
	})
}

func (e *Emulator) contentHash(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		return encodeBytes32(nft.ContentHash)
	})
}

func (e *Emulator) tokenURI(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		return encodeString(cid.URI(nft.ContentHash))
	})
}

// nftBalanceOf counts every NFT the owner holds across the registry.
func (e *Emulator) nftBalanceOf(ctx context.Context, args []any) ([]byte, error) {
	owner := args[0].(common.Address)
	count, err := e.store.NFTBalanceOf(ctx, owner)
	if err != nil {
		return nil, internalError("count NFTs", err)
	}
	return encodeUint(count)
}

func (e *Emulator) ownerOf(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(nft *ledger.NFT) ([]byte, error) {
		owner, err := e.store.OwnerOfNFT(ctx, nft.ID)
		if err != nil {
			return nil, internalError("look up NFT owner", err)
		}
		return encodeAddress(owner)
	})
}

// getApproved reports the proxy itself, the only operator allowed to move
// registry NFTs.
func (e *Emulator) getApproved(ctx context.Context, args []any) ([]byte, error) {
	return e.withNFT(ctx, args, func(*ledger.NFT) ([]byte, error) {
		return encodeAddress(e.proxyAddress)
	})
}

// symbol serves both name() and symbol(); tokens carry no separate name.
func (e *Emulator) symbol(_ context.Context, token *ledger.Token, _ []any) ([]byte, error) {
	return encodeString(token.Symbol)
}

func (e *Emulator) decimals(_ context.Context, token *ledger.Token, _ []any) ([]byte, error) {
	return encodeUint(uint64(token.Decimals))
}

// unbounded answers totalSupply() and allowance() with 2^256-1.
func (e *Emulator) unbounded(_ context.Context, _ *ledger.Token, _ []any) ([]byte, error) {
	return encodeBig(maxUint256)
}

// tokenBalanceOf reads the balance as of the latest finalized block.
func (e *Emulator) tokenBalanceOf(ctx context.Context, token *ledger.Token, args []any) ([]byte, error) {
	account := args[0].(common.Address)

	height, err := e.store.LatestFinalizedBlock(ctx)
	if err != nil {
		return nil, internalError("read latest finalized block", err)
	}

	balance, err := e.store.BalanceAt(ctx, account, height, token.ID)
	if err != nil {
		return nil, internalError("read balance", err)
	}
	if balance == nil {
		balance = new(big.Int)
	}

	return encodeBig(balance)
}
