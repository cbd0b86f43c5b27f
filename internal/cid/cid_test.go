package cid

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/compose-network/web3call/internal/base58"
	"github.com/ethereum/go-ethereum/common"
	gocid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDigestIsValidCIDv0(t *testing.T) {
	digest := common.Hash(sha256.Sum256([]byte("rollup nft metadata")))

	s := FromDigest(digest)
	assert.Len(t, s, 46)
	assert.True(t, strings.HasPrefix(s, "Qm"))

	parsed, err := gocid.Decode(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), parsed.Version())
	assert.Equal(t, s, parsed.String())

	decoded, err := mh.Decode(parsed.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(mh.SHA2_256), decoded.Code)
	assert.Equal(t, digest.Bytes(), decoded.Digest)
}

func TestFromDigestMatchesMultihashLibrary(t *testing.T) {
	digest := common.Hash(sha256.Sum256([]byte("hello")))

	encoded, err := mh.Encode(digest.Bytes(), mh.SHA2_256)
	require.NoError(t, err)
	assert.Equal(t, []byte(encoded), Multihash(digest))
	assert.Equal(t, mh.Multihash(encoded).B58String(), FromDigest(digest))
}

func TestURIReversesToHeaderAndDigest(t *testing.T) {
	digest := common.HexToHash("0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")

	uri := URI(digest)
	require.True(t, strings.HasPrefix(uri, URIScheme))

	raw, err := base58.Decode(strings.TrimPrefix(uri, URIScheme))
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x12, 0x20}, digest.Bytes()...), raw)

	back, err := Digest(strings.TrimPrefix(uri, URIScheme))
	require.NoError(t, err)
	assert.Equal(t, digest, back)
}

func TestZeroDigest(t *testing.T) {
	s := FromDigest(common.Hash{})
	back, err := Digest(s)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, back)
}

func TestDigestRejectsOtherMultihashes(t *testing.T) {
	_, err := Digest("not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidCID)

	short := base58.Encode([]byte{0x12, 0x20, 0x01})
	_, err = Digest(short)
	assert.ErrorIs(t, err, ErrInvalidCID)

	wrongCode := base58.Encode(append([]byte{0x13, 0x20}, make([]byte, 32)...))
	_, err = Digest(wrongCode)
	assert.ErrorIs(t, err, ErrInvalidCID)
}
