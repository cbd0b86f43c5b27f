// Package base58 implements the base-58 text encoding used by IPFS content
// identifiers and Bitcoin addresses.
package base58

import (
	"errors"
	"fmt"
)

// BitcoinAlphabet excludes 0, O, I and l.
const BitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const radix = 58

// ErrInvalidAlphabet is returned by NewEncoding for alphabets that are not
// 58 distinct ASCII characters.
var ErrInvalidAlphabet = errors.New("base58: alphabet must be 58 distinct ASCII characters")

// Encoding is a base-58 alphabet together with its reverse lookup table.
type Encoding struct {
	alphabet [radix]byte
	decode   [256]int16
}

// Bitcoin is the encoding used by CIDv0 strings.
var Bitcoin = MustNewEncoding(BitcoinAlphabet)

// NewEncoding builds an Encoding from a 58-character alphabet.
func NewEncoding(alphabet string) (*Encoding, error) {
	if len(alphabet) != radix {
		return nil, ErrInvalidAlphabet
	}
	enc := &Encoding{}
	for i := range enc.decode {
		enc.decode[i] = -1
	}
	for i := 0; i < radix; i++ {
		c := alphabet[i]
		if c >= 0x80 || enc.decode[c] != -1 {
			return nil, ErrInvalidAlphabet
		}
		enc.alphabet[i] = c
		enc.decode[c] = int16(i)
	}
	return enc, nil
}

// MustNewEncoding is like NewEncoding but panics on an invalid alphabet.
func MustNewEncoding(alphabet string) *Encoding {
	enc, err := NewEncoding(alphabet)
	if err != nil {
		panic(err)
	}
	return enc
}

// EncodeToString treats src as a big-endian integer and returns its base-58
// digits, most significant first. Every leading zero byte of src becomes one
// leading alphabet[0] character.
func (enc *Encoding) EncodeToString(src []byte) string {
	zeros := 0
	for zeros < len(src) && src[zeros] == 0 {
		zeros++
	}

	// log(256)/log(58) is just under 1.37
	digits := make([]byte, (len(src)-zeros)*138/100+1)
	length := 0
	for _, b := range src[zeros:] {
		carry := uint32(b)
		for j := 0; j < length; j++ {
			carry += uint32(digits[j]) << 8
			digits[j] = byte(carry % radix)
			carry /= radix
		}
		for carry > 0 {
			digits[length] = byte(carry % radix)
			length++
			carry /= radix
		}
	}

	out := make([]byte, zeros+length)
	for i := 0; i < zeros; i++ {
		out[i] = enc.alphabet[0]
	}
	for i := 0; i < length; i++ {
		out[zeros+i] = enc.alphabet[digits[length-1-i]]
	}
	return string(out)
}

// DecodeString is the inverse of EncodeToString.
func (enc *Encoding) DecodeString(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == enc.alphabet[0] {
		zeros++
	}

	// log(58)/log(256) is just under 0.733
	bytes := make([]byte, (len(s)-zeros)*733/1000+1)
	length := 0
	for i := zeros; i < len(s); i++ {
		v := enc.decode[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("base58: invalid character %q at offset %d", s[i], i)
		}
		carry := uint32(v)
		for j := 0; j < length; j++ {
			carry += uint32(bytes[j]) * radix
			bytes[j] = byte(carry)
			carry >>= 8
		}
		for carry > 0 {
			bytes[length] = byte(carry)
			length++
			carry >>= 8
		}
	}

	out := make([]byte, zeros+length)
	for i := 0; i < length; i++ {
		out[zeros+i] = bytes[length-1-i]
	}
	return out, nil
}

// Encode encodes src with the Bitcoin alphabet.
func Encode(src []byte) string {
	return Bitcoin.EncodeToString(src)
}

// Decode decodes s with the Bitcoin alphabet.
func Decode(s string) ([]byte, error) {
	return Bitcoin.DecodeString(s)
}
