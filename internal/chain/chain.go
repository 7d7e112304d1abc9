// Package chain provides the unified adapter contract shared by every
// supported ledger protocol, the normalized result types, and the adapter registry.
package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
)

// ID represents a supported ledger protocol.
type ID string

// Supported chain identifiers.
const (
	XRP ID = "XRP"
	ETH ID = "ETH"
	BTC ID = "BTC"
)

// String returns the chain identifier string.
func (id ID) String() string {
	return string(id)
}

// IsValid returns true if the chain ID is a known chain.
func (id ID) IsValid() bool {
	switch id {
	case XRP, ETH, BTC:
		return true
	default:
		return false
	}
}

// ParseID parses a chain identifier, ignoring case.
func ParseID(s string) (ID, bool) {
	id := ID(strings.ToUpper(strings.TrimSpace(s)))
	return id, id.IsValid()
}

// AllChains returns all known chain IDs.
func AllChains() []ID {
	return []ID{XRP, ETH, BTC}
}

// JoinIDs renders chain IDs as "A, B, C".
func JoinIDs(ids []ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// Identifier provides chain identification.
type Identifier interface {
	// ID returns the chain protocol identifier.
	ID() ID

	// Currency returns the currency symbol the adapter was configured for.
	Currency() string
}

// BlockReader reads ledger blocks.
type BlockReader interface {
	// GetBlock returns the block addressed by hash or height.
	// Returns errors.ErrNotFound when the node has no such block.
	GetBlock(ctx context.Context, id BlockID) (*Block, error)

	// GetTip returns the latest known block header.
	GetTip(ctx context.Context) (*Tip, error)
}

// TransactionReader reads transactions.
type TransactionReader interface {
	// GetTransaction returns the transaction with the given hash.
	// Returns errors.ErrNotFound when the node does not know it.
	GetTransaction(ctx context.Context, hash string) (*Transaction, error)
}

// BalanceReader provides balance querying capabilities.
type BalanceReader interface {
	// GetBalance returns the balance of an address in the chain's smallest unit.
	// Malformed addresses fail with errors.ErrInvalidAddress before any network call.
	GetBalance(ctx context.Context, address string) (*big.Int, error)
}

// FeeEstimator quotes the node's current network fee.
type FeeEstimator interface {
	// EstimateFee returns the currently quoted fee as a decimal string.
	// Always a fresh query.
	EstimateFee(ctx context.Context) (string, error)
}

// AddressValidator provides address validation.
type AddressValidator interface {
	// ValidateAddress reports whether the address is structurally valid.
	// Never performs a network call.
	ValidateAddress(address string) bool
}

// Locker brackets the signing capability for a credential.
type Locker interface {
	// Unlock makes the credential usable for signing, at the node or in-process.
	Unlock(ctx context.Context, cred *Credential) error

	// Lock revokes what Unlock granted.
	Lock(ctx context.Context, cred *Credential) error
}

// Sender submits a single payment.
type Sender interface {
	// Send submits exactly one payment signed with the credential and returns its hash.
	// Node refusals fail with errors.ErrSubmissionRejected.
	Send(ctx context.Context, to string, amount *big.Int, cred *Credential) (string, error)
}

// Submitter forwards externally signed transactions.
type Submitter interface {
	// SubmitSignedTransaction forwards the signed blob verbatim and returns its hash.
	SubmitSignedTransaction(ctx context.Context, signedTx string) (string, error)
}

// Reader combines read-only chain operations.
type Reader interface {
	Identifier
	BlockReader
	TransactionReader
	BalanceReader
	FeeEstimator
	AddressValidator
}

// Adapter is the full unified verb set every chain implementation satisfies.
type Adapter interface {
	Reader
	Locker
	Sender
	Submitter
}

// RawRequester is implemented by adapters that can forward any node method
// over their transport, unchanged.
type RawRequester interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// ClientCloser is implemented by adapters that hold a transport.
type ClientCloser interface {
	Close() error
}
