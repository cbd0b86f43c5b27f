package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/compose-network/web3call/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	// Fixtures is a YAML snapshot of ledger state used to seed a store.
	Fixtures struct {
		Blocks   []BlockFixture   `yaml:"blocks"`
		Tokens   []TokenFixture   `yaml:"tokens"`
		NFTs     []NFTFixture     `yaml:"nfts"`
		Balances []BalanceFixture `yaml:"balances"`
	}

	BlockFixture struct {
		Height    uint64 `yaml:"height"`
		Finalized bool   `yaml:"finalized"`
	}

	TokenFixture struct {
		ID       uint32 `yaml:"id"`
		Address  string `yaml:"address"`
		Symbol   string `yaml:"symbol"`
		Decimals uint8  `yaml:"decimals"`
	}

	NFTFixture struct {
		ID             uint32 `yaml:"id"`
		Address        string `yaml:"address"`
		CreatorID      uint32 `yaml:"creator-id"`
		CreatorAddress string `yaml:"creator-address"`
		SerialID       uint32 `yaml:"serial-id"`
		ContentHash    string `yaml:"content-hash"`
		Owner          string `yaml:"owner"`
	}

	BalanceFixture struct {
		Account string `yaml:"account"`
		Token   uint32 `yaml:"token"`
		Height  uint64 `yaml:"height"`
		Amount  string `yaml:"amount"`
	}
)

// ReadFixtures parses a fixtures file.
func ReadFixtures(path string) (Fixtures, error) {
	var fixtures Fixtures

	data, err := os.ReadFile(path)
	if err != nil {
		return fixtures, fmt.Errorf("failed to read fixtures file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return fixtures, fmt.Errorf("failed to parse fixtures file %s: %w", path, err)
	}

	return fixtures, nil
}

// LoadFixtures reads path and seeds the store with its contents.
func (s *Store) LoadFixtures(ctx context.Context, path string) error {
	fixtures, err := ReadFixtures(path)
	if err != nil {
		return err
	}
	if err := s.Seed(ctx, fixtures); err != nil {
		return fmt.Errorf("failed to seed fixtures from %s: %w", path, err)
	}

	s.logger.With(
		"path", path,
		"blocks", len(fixtures.Blocks),
		"tokens", len(fixtures.Tokens),
		"nfts", len(fixtures.NFTs),
		"balances", len(fixtures.Balances),
	).Info("ledger fixtures loaded")

	return nil
}

// Seed validates every fixture before writing any of them.
func (s *Store) Seed(ctx context.Context, fixtures Fixtures) error {
	var errs []error

	tokens := make([]ledger.Token, 0, len(fixtures.Tokens))
	for i, f := range fixtures.Tokens {
		address, err := parseAddress(f.Address)
		if err != nil {
			errs = append(errs, fmt.Errorf("tokens[%d].address: %w", i, err))
			continue
		}
		tokens = append(tokens, ledger.Token{
			ID:       ledger.TokenID(f.ID),
			Address:  address,
			Symbol:   f.Symbol,
			Decimals: f.Decimals,
		})
	}

	type ownedNFT struct {
		nft   ledger.NFT
		owner common.Address
	}
	nfts := make([]ownedNFT, 0, len(fixtures.NFTs))
	for i, f := range fixtures.NFTs {
		address, err := parseAddress(f.Address)
		if err != nil {
			errs = append(errs, fmt.Errorf("nfts[%d].address: %w", i, err))
		}
		creator, err := parseAddress(f.CreatorAddress)
		if err != nil {
			errs = append(errs, fmt.Errorf("nfts[%d].creator-address: %w", i, err))
		}
		owner, err := parseAddress(f.Owner)
		if err != nil {
			errs = append(errs, fmt.Errorf("nfts[%d].owner: %w", i, err))
		}
		contentHash, err := parseHash(f.ContentHash)
		if err != nil {
			errs = append(errs, fmt.Errorf("nfts[%d].content-hash: %w", i, err))
		}
		nfts = append(nfts, ownedNFT{
			nft: ledger.NFT{
				ID:             ledger.TokenID(f.ID),
				Address:        address,
				CreatorID:      f.CreatorID,
				CreatorAddress: creator,
				SerialID:       f.SerialID,
				ContentHash:    contentHash,
			},
			owner: owner,
		})
	}

	type balance struct {
		account common.Address
		token   ledger.TokenID
		height  ledger.BlockHeight
		amount  *big.Int
	}
	balances := make([]balance, 0, len(fixtures.Balances))
	for i, f := range fixtures.Balances {
		account, err := parseAddress(f.Account)
		if err != nil {
			errs = append(errs, fmt.Errorf("balances[%d].account: %w", i, err))
		}
		amount, ok := new(big.Int).SetString(f.Amount, 0)
		if !ok || amount.Sign() < 0 {
			errs = append(errs, fmt.Errorf("balances[%d].amount: invalid amount %q", i, f.Amount))
		}
		balances = append(balances, balance{
			account: account,
			token:   ledger.TokenID(f.Token),
			height:  ledger.BlockHeight(f.Height),
			amount:  amount,
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid fixtures: %w", errors.Join(errs...))
	}

	for _, b := range fixtures.Blocks {
		if err := s.PutBlock(ctx, ledger.BlockHeight(b.Height), b.Finalized); err != nil {
			return fmt.Errorf("failed to store block %d: %w", b.Height, err)
		}
	}
	for _, t := range tokens {
		if err := s.PutToken(ctx, t); err != nil {
			return fmt.Errorf("failed to store token %d: %w", t.ID, err)
		}
	}
	for _, n := range nfts {
		if err := s.PutNFT(ctx, n.nft, n.owner); err != nil {
			return fmt.Errorf("failed to store nft %d: %w", n.nft.ID, err)
		}
	}
	for _, b := range balances {
		if err := s.PutBalance(ctx, b.account, b.token, b.height, b.amount); err != nil {
			return fmt.Errorf("failed to store balance of %s: %w", b.account.Hex(), err)
		}
	}

	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	var h common.Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return h, nil
}
