// Package cache fronts a ledger store with expiring LRU caches for the
// lookups every eth_call performs.
package cache

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/web3call/internal/ledger"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store caches token and NFT metadata. Negative lookups are cached too, so
// unknown contract addresses do not reach the backing store on every call.
// Ownership, balances and block heights change with each block and always
// pass through.
type Store struct {
	next   ledger.Store
	tokens *lru.LRU[common.Address, *ledger.Token]
	nfts   *lru.LRU[ledger.TokenID, *ledger.NFT]

	lookups *prometheus.CounterVec
	logger  *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// New wraps next. A non-positive size disables caching and returns next
// unchanged.
func New(next ledger.Store, size int, ttl time.Duration, promRegistry prometheus.Registerer) ledger.Store {
	if size <= 0 {
		return next
	}

	factory := promauto.With(promRegistry)
	s := &Store{
		next:   next,
		tokens: lru.NewLRU[common.Address, *ledger.Token](size, nil, ttl),
		nfts:   lru.NewLRU[ledger.TokenID, *ledger.NFT](size, nil, ttl),
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "web3call_ledger_cache_lookups_total",
				Help: "ledger metadata cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		logger: logger.Named("ledger_cache"),
	}

	s.logger.With("size", size, "ttl", ttl.String()).Info("ledger cache enabled")

	return s
}

func (s *Store) LookupToken(ctx context.Context, address common.Address) (*ledger.Token, error) {
	if token, ok := s.tokens.Get(address); ok {
		s.lookups.WithLabelValues("token", "hit").Inc()
		return token, nil
	}
	s.lookups.WithLabelValues("token", "miss").Inc()

	token, err := s.next.LookupToken(ctx, address)
	if err != nil {
		return nil, err
	}
	s.tokens.Add(address, token)
	return token, nil
}

func (s *Store) LookupNFTByID(ctx context.Context, id ledger.TokenID) (*ledger.NFT, error) {
	if nft, ok := s.nfts.Get(id); ok {
		s.lookups.WithLabelValues("nft", "hit").Inc()
		return nft, nil
	}
	s.lookups.WithLabelValues("nft", "miss").Inc()

	nft, err := s.next.LookupNFTByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.nfts.Add(id, nft)
	return nft, nil
}

func (s *Store) OwnerOfNFT(ctx context.Context, id ledger.TokenID) (common.Address, error) {
	return s.next.OwnerOfNFT(ctx, id)
}

func (s *Store) NFTBalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	return s.next.NFTBalanceOf(ctx, owner)
}

func (s *Store) LatestFinalizedBlock(ctx context.Context) (ledger.BlockHeight, error) {
	return s.next.LatestFinalizedBlock(ctx)
}

func (s *Store) BalanceAt(ctx context.Context, account common.Address, height ledger.BlockHeight, token ledger.TokenID) (*big.Int, error) {
	return s.next.BalanceAt(ctx, account, height, token)
}

// Purge drops every cached entry.
func (s *Store) Purge() {
	s.tokens.Purge()
	s.nfts.Purge()
}
