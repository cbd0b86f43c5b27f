// Package cid builds IPFS version 0 content identifiers from raw SHA-256
// digests.
package cid

import (
	"errors"
	"fmt"

	"github.com/compose-network/web3call/internal/base58"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// SHA256Code is the multihash function code for sha2-256.
	SHA256Code = 0x12
	// DigestLength is the sha2-256 digest size in bytes.
	DigestLength = 0x20

	// URIScheme prefixes CIDs in NFT metadata URIs.
	URIScheme = "ipfs://"
)

// multihashHeader is prepended to every digest.
var multihashHeader = [2]byte{SHA256Code, DigestLength}

var ErrInvalidCID = errors.New("cid: not a sha2-256 CIDv0")

// Multihash returns {0x12, 0x20} ++ digest.
func Multihash(digest common.Hash) []byte {
	mh := make([]byte, 0, len(multihashHeader)+common.HashLength)
	mh = append(mh, multihashHeader[:]...)
	return append(mh, digest[:]...)
}

// FromDigest returns the base58 CIDv0 string for a sha2-256 digest.
func FromDigest(digest common.Hash) string {
	return base58.Encode(Multihash(digest))
}

// URI returns "ipfs://" followed by the CID of digest.
func URI(digest common.Hash) string {
	return URIScheme + FromDigest(digest)
}

// Digest parses a CIDv0 string and returns the digest it carries.
func Digest(s string) (common.Hash, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrInvalidCID, err)
	}
	if len(raw) != len(multihashHeader)+common.HashLength ||
		raw[0] != multihashHeader[0] || raw[1] != multihashHeader[1] {
		return common.Hash{}, ErrInvalidCID
	}
	return common.BytesToHash(raw[len(multihashHeader):]), nil
}
