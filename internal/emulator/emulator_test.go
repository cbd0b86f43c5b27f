package emulator

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/compose-network/web3call/internal/abisource"
	"github.com/compose-network/web3call/internal/base58"
	"github.com/compose-network/web3call/internal/ledger"
	"github.com/compose-network/web3call/internal/selector"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	proxyAddr   = common.HexToAddress("0x1000000000000000000000000000000000000000")
	usdcAddr    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	nftAddr     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	creator     = common.HexToAddress("0x00000000000000000000000000000000c0ffee00")
	errStoreBad = errors.New("connection reset")
)

type fakeStore struct {
	tokens    map[common.Address]*ledger.Token
	nfts      map[ledger.TokenID]*ledger.NFT
	owners    map[ledger.TokenID]common.Address
	balances  map[common.Address]*big.Int
	finalized ledger.BlockHeight

	failTokens   bool
	failNFTs     bool
	failBalances bool

	nftLookups    atomic.Int64
	balanceHeight atomic.Uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens: map[common.Address]*ledger.Token{
			usdcAddr: {ID: 2, Address: usdcAddr, Symbol: "USDC", Decimals: 6},
			nftAddr:  {ID: 70000, Address: nftAddr, Symbol: "NFT-70000", IsNFT: true},
		},
		nfts: map[ledger.TokenID]*ledger.NFT{
			70000: {
				ID:             70000,
				Address:        nftAddr,
				CreatorID:      12,
				CreatorAddress: creator,
				SerialID:       3,
				ContentHash:    common.Hash(sha256.Sum256([]byte("metadata"))),
			},
		},
		owners:    map[ledger.TokenID]common.Address{70000: alice},
		balances:  map[common.Address]*big.Int{alice: big.NewInt(1_500_000)},
		finalized: 42,
	}
}

func (s *fakeStore) LookupToken(_ context.Context, address common.Address) (*ledger.Token, error) {
	if s.failTokens {
		return nil, errStoreBad
	}
	return s.tokens[address], nil
}

func (s *fakeStore) LookupNFTByID(_ context.Context, id ledger.TokenID) (*ledger.NFT, error) {
	s.nftLookups.Add(1)
	if s.failNFTs {
		return nil, errStoreBad
	}
	return s.nfts[id], nil
}

func (s *fakeStore) OwnerOfNFT(_ context.Context, id ledger.TokenID) (common.Address, error) {
	return s.owners[id], nil
}

func (s *fakeStore) NFTBalanceOf(_ context.Context, owner common.Address) (uint64, error) {
	var n uint64
	for _, o := range s.owners {
		if o == owner {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) LatestFinalizedBlock(context.Context) (ledger.BlockHeight, error) {
	if s.failBalances {
		return 0, errStoreBad
	}
	return s.finalized, nil
}

func (s *fakeStore) BalanceAt(_ context.Context, account common.Address, height ledger.BlockHeight, _ ledger.TokenID) (*big.Int, error) {
	s.balanceHeight.Store(uint64(height))
	return s.balances[account], nil
}

func newTestEmulator(t *testing.T, store ledger.Store, strict bool) *Emulator {
	t.Helper()
	e, err := New(store, Config{ProxyAddress: proxyAddr, StrictArguments: strict})
	require.NoError(t, err)
	return e
}

func callData(t *testing.T, contract abi.ABI, name string, args ...any) []byte {
	t.Helper()
	data, err := contract.Pack(name, args...)
	require.NoError(t, err)
	return data
}

func unpackOne(t *testing.T, args abi.Arguments, data []byte) any {
	t.Helper()
	values, err := args.Unpack(data)
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0]
}

func TestShortPayloadIsNotEmulated(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)

	for _, to := range []common.Address{proxyAddr, usdcAddr, bob} {
		for _, data := range [][]byte{nil, {}, {0x70}, {0x70, 0xa0, 0x82}} {
			out, err := e.EmulateCall(context.Background(), to, data)
			require.NoError(t, err)
			assert.Empty(t, out)
		}
	}
}

func TestUnknownSelectorIsNotEmulated(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	transfer := selector.Compute("transfer(address,uint256)").Bytes()

	for _, to := range []common.Address{proxyAddr, usdcAddr} {
		out, err := e.EmulateCall(context.Background(), to, append(transfer, make([]byte, 64)...))
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestUnknownAndNFTAddressesAreNotEmulated(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()
	data := callData(t, docs.Token, "symbol")

	for _, to := range []common.Address{bob, nftAddr} {
		out, err := e.EmulateCall(context.Background(), to, data)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestProxyNFTViews(t *testing.T) {
	store := newFakeStore()
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()
	nft := store.nfts[70000]
	id := big.NewInt(70000)
	ctx := context.Background()

	out, err := e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "creatorId", id))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12), unpackOne(t, uint256Result, out))

	out, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "creatorAddress", id))
	require.NoError(t, err)
	assert.Equal(t, creator, unpackOne(t, addressResult, out))

	out, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "serialId", id))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), unpackOne(t, uint256Result, out))

	out, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "contentHash", id))
	require.NoError(t, err)
	assert.Equal(t, nft.ContentHash.Bytes(), out)

	out, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "ownerOf", id))
	require.NoError(t, err)
	assert.Equal(t, alice, unpackOne(t, addressResult, out))

	out, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "getApproved", id))
	require.NoError(t, err)
	assert.Equal(t, proxyAddr, unpackOne(t, addressResult, out))
}

func TestProxyViewsOfMissingNFT(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()

	for _, name := range []string{"creatorId", "creatorAddress", "serialId", "contentHash", "tokenURI", "ownerOf", "getApproved"} {
		out, err := e.EmulateCall(context.Background(), proxyAddr, callData(t, docs.Proxy, name, big.NewInt(5)))
		require.NoError(t, err, name)
		assert.Empty(t, out, name)
	}
}

func TestTokenIDAbove32BitsIsNotFound(t *testing.T) {
	store := newFakeStore()
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()

	ids := []*big.Int{
		new(big.Int).SetUint64(math.MaxUint32 + 1),
		new(big.Int).Lsh(big.NewInt(1), 200),
		new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(70000)),
	}
	for _, id := range ids {
		out, err := e.EmulateCall(context.Background(), proxyAddr, callData(t, docs.Proxy, "ownerOf", id))
		require.NoError(t, err)
		assert.Empty(t, out)
	}
	assert.Zero(t, store.nftLookups.Load())
}

func TestTokenURI(t *testing.T) {
	store := newFakeStore()
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()
	hash := store.nfts[70000].ContentHash

	out, err := e.EmulateCall(context.Background(), proxyAddr, callData(t, docs.Proxy, "tokenURI", big.NewInt(70000)))
	require.NoError(t, err)

	uri, ok := unpackOne(t, stringResult, out).(string)
	require.True(t, ok)
	want := "ipfs://" + base58.Encode(append([]byte{0x12, 0x20}, hash.Bytes()...))
	assert.Equal(t, want, uri)

	raw, err := base58.Decode(strings.TrimPrefix(uri, "ipfs://"))
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x12, 0x20}, hash.Bytes()...), raw)
}

func TestProxyBalanceOfCountsNFTs(t *testing.T) {
	store := newFakeStore()
	store.owners[70001] = alice
	store.owners[70002] = alice
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()

	out, err := e.EmulateCall(context.Background(), proxyAddr, callData(t, docs.Proxy, "balanceOf", bob))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), unpackOne(t, uint256Result, out))

	out, err = e.EmulateCall(context.Background(), proxyAddr, callData(t, docs.Proxy, "balanceOf", alice))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), unpackOne(t, uint256Result, out))
}

func TestFungibleViews(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()
	ctx := context.Background()

	name, err := e.EmulateCall(ctx, usdcAddr, callData(t, docs.Token, "name"))
	require.NoError(t, err)
	symbol, err := e.EmulateCall(ctx, usdcAddr, callData(t, docs.Token, "symbol"))
	require.NoError(t, err)
	assert.Equal(t, name, symbol)
	assert.Equal(t, "USDC", unpackOne(t, stringResult, symbol))

	out, err := e.EmulateCall(ctx, usdcAddr, callData(t, docs.Token, "decimals"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), unpackOne(t, uint256Result, out))
	assert.Equal(t, uint8(6), unpackOne(t, docs.Token.Methods["decimals"].Outputs, out))
}

func TestTotalSupplyAndAllowanceAreMaxUint256(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()
	maxValue := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	calls := [][]byte{
		callData(t, docs.Token, "totalSupply"),
		callData(t, docs.Token, "allowance", alice, bob),
		callData(t, docs.Token, "allowance", bob, common.Address{}),
	}
	for _, data := range calls {
		out, err := e.EmulateCall(context.Background(), usdcAddr, data)
		require.NoError(t, err)
		assert.Equal(t, maxValue, unpackOne(t, uint256Result, out))
		assert.Equal(t, common.FromHex(strings.Repeat("ff", 32)), out)
	}
}

func TestFungibleBalanceOfUsesFinalizedBlock(t *testing.T) {
	store := newFakeStore()
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()

	out, err := e.EmulateCall(context.Background(), usdcAddr, callData(t, docs.Token, "balanceOf", alice))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_500_000), unpackOne(t, uint256Result, out))
	assert.Equal(t, uint64(42), store.balanceHeight.Load())

	out, err = e.EmulateCall(context.Background(), usdcAddr, callData(t, docs.Token, "balanceOf", bob))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), unpackOne(t, uint256Result, out))
}

func TestFungibleBalanceOutOfRangeIsInternalError(t *testing.T) {
	store := newFakeStore()
	store.balances[alice] = new(big.Int).Lsh(big.NewInt(1), 256)
	store.balances[bob] = big.NewInt(-1)
	e := newTestEmulator(t, store, false)
	docs := abisource.MustLoadEmbedded()

	for _, account := range []common.Address{alice, bob} {
		out, err := e.EmulateCall(context.Background(), usdcAddr, callData(t, docs.Token, "balanceOf", account))
		assert.ErrorIs(t, err, ErrInternal)
		assert.Nil(t, out)
	}
}

func TestStorageFailuresAreInternalErrors(t *testing.T) {
	docs := abisource.MustLoadEmbedded()
	ctx := context.Background()

	store := newFakeStore()
	store.failTokens = true
	e := newTestEmulator(t, store, false)
	_, err := e.EmulateCall(ctx, usdcAddr, callData(t, docs.Token, "symbol"))
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, errStoreBad)

	store = newFakeStore()
	store.failNFTs = true
	e = newTestEmulator(t, store, false)
	_, err = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "ownerOf", big.NewInt(70000)))
	assert.ErrorIs(t, err, ErrInternal)

	store = newFakeStore()
	store.failBalances = true
	e = newTestEmulator(t, store, false)
	_, err = e.EmulateCall(ctx, usdcAddr, callData(t, docs.Token, "balanceOf", alice))
	assert.ErrorIs(t, err, ErrInternal)
}

func TestMalformedArguments(t *testing.T) {
	docs := abisource.MustLoadEmbedded()
	short := callData(t, docs.Proxy, "ownerOf", big.NewInt(70000))[:20]

	lenient := newTestEmulator(t, newFakeStore(), false)
	out, err := lenient.EmulateCall(context.Background(), proxyAddr, short)
	require.NoError(t, err)
	assert.Empty(t, out)

	strict := newTestEmulator(t, newFakeStore(), true)
	out, err = strict.EmulateCall(context.Background(), proxyAddr, short)
	assert.ErrorIs(t, err, ErrMalformedCall)
	assert.NotErrorIs(t, err, ErrInternal)
	assert.Nil(t, out)
}

func TestIdempotentResults(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()
	data := callData(t, docs.Proxy, "tokenURI", big.NewInt(70000))

	first, err := e.EmulateCall(context.Background(), proxyAddr, data)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.EmulateCall(context.Background(), proxyAddr, data)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNewRejectsUnhandledFunctions(t *testing.T) {
	docs := abisource.MustLoadEmbedded()
	withTransfer, err := abi.JSON(strings.NewReader(`[
		{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"transfer","stateMutability":"nonpayable",
		 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`))
	require.NoError(t, err)

	_, err = New(newFakeStore(), Config{
		ProxyAddress: proxyAddr,
		ABI:          &abisource.Documents{Token: withTransfer, Proxy: docs.Proxy},
	})
	assert.ErrorIs(t, err, selector.ErrUnhandledMethod)
}

func TestNewValidatesInputs(t *testing.T) {
	_, err := New(nil, Config{ProxyAddress: proxyAddr})
	assert.Error(t, err)

	_, err = New(newFakeStore(), Config{})
	assert.Error(t, err)
}

func TestFunctionsListsBothSurfaces(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)

	functions := e.Functions()
	require.Len(t, functions, len(proxyHandlers)+len(tokenHandlers))
	assert.Equal(t, surfaceProxy, functions[0].Surface)
	assert.Equal(t, surfaceToken, functions[len(functions)-1].Surface)
	for _, f := range functions {
		assert.Equal(t, selector.Compute(f.Signature), f.Selector)
	}
}

func TestDescribeMatchesEmulator(t *testing.T) {
	e := newTestEmulator(t, newFakeStore(), false)

	functions, err := Describe(nil)
	require.NoError(t, err)
	assert.Equal(t, e.Functions(), functions)
}

func TestMetricsCountOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	e, err := New(newFakeStore(), Config{ProxyAddress: proxyAddr, PromRegistry: registry})
	require.NoError(t, err)
	docs := abisource.MustLoadEmbedded()
	ctx := context.Background()

	_, _ = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "ownerOf", big.NewInt(70000)))
	_, _ = e.EmulateCall(ctx, proxyAddr, callData(t, docs.Proxy, "ownerOf", big.NewInt(1)))
	_, _ = e.EmulateCall(ctx, proxyAddr, []byte{0x01})
	_, _ = e.EmulateCall(ctx, bob, callData(t, docs.Token, "symbol"))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.calls.WithLabelValues(surfaceProxy, outcomeEmulated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.calls.WithLabelValues(surfaceProxy, outcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.calls.WithLabelValues(surfaceProxy, outcomeUnsupported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.calls.WithLabelValues(surfaceNone, outcomeUnsupported)))
}

func TestConcurrentCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEmulator(t, newFakeStore(), false)
	docs := abisource.MustLoadEmbedded()
	data := callData(t, docs.Proxy, "tokenURI", big.NewInt(70000))
	want, err := e.EmulateCall(context.Background(), proxyAddr, data)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.EmulateCall(context.Background(), proxyAddr, data)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
