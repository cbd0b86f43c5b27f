// Package ledger describes the rollup state the call emulator reads.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// TokenID is the rollup's numeric token identifier. Fungible tokens and
	// NFTs share one id space.
	TokenID uint32

	// BlockHeight is a rollup block number.
	BlockHeight uint64

	Token struct {
		ID       TokenID
		Address  common.Address
		Symbol   string
		Decimals uint8
		IsNFT    bool
	}

	NFT struct {
		ID             TokenID
		Address        common.Address
		CreatorID      uint32
		CreatorAddress common.Address
		SerialID       uint32
		ContentHash    common.Hash
	}
)

// Store is the read-only view of rollup state. Lookups that find nothing
// return a nil record and a nil error.
type Store interface {
	LookupToken(ctx context.Context, address common.Address) (*Token, error)
	LookupNFTByID(ctx context.Context, id TokenID) (*NFT, error)
	OwnerOfNFT(ctx context.Context, id TokenID) (common.Address, error)
	NFTBalanceOf(ctx context.Context, owner common.Address) (uint64, error)
	LatestFinalizedBlock(ctx context.Context) (BlockHeight, error)
	BalanceAt(ctx context.Context, account common.Address, height BlockHeight, token TokenID) (*big.Int, error)
}
