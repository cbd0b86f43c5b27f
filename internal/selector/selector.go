// Package selector derives 4-byte function selectors from canonical
// signatures and builds the immutable lookup tables used for call dispatch.
package selector

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Length is the selector size in bytes.
const Length = 4

// Selector is the first four bytes of keccak256 of a canonical signature.
type Selector [Length]byte

var (
	ErrCollision       = errors.New("selector collision")
	ErrUnhandledMethod = errors.New("method has no handler")
)

// Compute hashes a canonical signature such as "balanceOf(address)".
func Compute(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:Length])
	return s
}

// FromBytes returns the selector at the start of a call payload.
func FromBytes(data []byte) (Selector, bool) {
	var s Selector
	if len(data) < Length {
		return s, false
	}
	copy(s[:], data[:Length])
	return s, true
}

// Signature renders name(type1,type2,...) with no whitespace and no
// parameter names.
func Signature(name string, inputs abi.Arguments) string {
	types := make([]string, len(inputs))
	for i, input := range inputs {
		types[i] = input.Type.String()
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

func (s Selector) Bytes() []byte {
	return s[:]
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Entry is one emulated function: its ABI description and the handler that
// serves it.
type Entry[H any] struct {
	Selector  Selector
	Signature string
	Method    abi.Method
	Handler   H
}

// Table maps selectors to entries. It is never modified after Build returns,
// so it may be shared by any number of readers.
type Table[H any] struct {
	entries map[Selector]Entry[H]
}

// Build computes the selector of every method and attaches the handler that
// resolve returns for its canonical signature. A signature that resolve does
// not know, or two methods sharing a selector, fail the build.
func Build[H any](methods []abi.Method, resolve func(signature string) (H, bool)) (*Table[H], error) {
	entries := make(map[Selector]Entry[H], len(methods))
	var errs []error

	for _, method := range methods {
		signature := Signature(method.RawName, method.Inputs)
		sel := Compute(signature)

		handler, ok := resolve(signature)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnhandledMethod, signature))
			continue
		}
		if existing, dup := entries[sel]; dup {
			errs = append(errs, fmt.Errorf("%w: %s and %s both map to %s", ErrCollision, existing.Signature, signature, sel))
			continue
		}

		entries[sel] = Entry[H]{
			Selector:  sel,
			Signature: signature,
			Method:    method,
			Handler:   handler,
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Table[H]{entries: entries}, nil
}

// Methods returns the functions of an ABI document ordered by signature.
func Methods(contract abi.ABI) []abi.Method {
	methods := make([]abi.Method, 0, len(contract.Methods))
	for _, method := range contract.Methods {
		methods = append(methods, method)
	}
	slices.SortFunc(methods, func(a, b abi.Method) int {
		return strings.Compare(a.Sig, b.Sig)
	})
	return methods
}

// Lookup returns the entry registered for sel.
func (t *Table[H]) Lookup(sel Selector) (Entry[H], bool) {
	entry, ok := t.entries[sel]
	return entry, ok
}

// Len returns the number of registered functions.
func (t *Table[H]) Len() int {
	return len(t.entries)
}

// Entries returns all entries ordered by signature.
func (t *Table[H]) Entries() []Entry[H] {
	out := make([]Entry[H], 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b Entry[H]) int {
		return strings.Compare(a.Signature, b.Signature)
	})
	return out
}
