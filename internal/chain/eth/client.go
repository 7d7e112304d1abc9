// Package eth provides the Ethereum adapter over node JSON-RPC. Payments are
// signed by the node's keystore, unlocked per credential session with the
// personal namespace; externally signed blobs go through eth_sendRawTransaction.
package eth

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// hashLen is the length of a normalized hash: 32 bytes as lowercase hex.
const hashLen = 64

// Client is the Ethereum adapter.
type Client struct {
	cfg       chain.Config
	transport transport.Transport
}

// rpcBlock is the subset of an eth_getBlockBy* result we normalize.
type rpcBlock struct {
	Hash         string         `json:"hash"`
	Number       hexutil.Uint64 `json:"number"`
	ParentHash   string         `json:"parentHash"`
	Transactions []string       `json:"transactions"`
}

// rpcTransaction is the subset of an eth_getTransactionByHash result we normalize.
type rpcTransaction struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          *string         `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	GasPrice    *hexutil.Big    `json:"gasPrice"`
	Nonce       hexutil.Uint64  `json:"nonce"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber"`
}

// sendArgs are the eth_sendTransaction arguments.
type sendArgs struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Value *hexutil.Big `json:"value"`
}

// New creates an adapter over an already dialed transport.
func New(cfg chain.Config, t transport.Transport) (*Client, error) {
	if t == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "nil transport"})
	}
	if cfg.Address != "" && !IsValidAddress(cfg.Address) {
		return nil, rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{
			"currency": cfg.Currency,
			"address":  cfg.Address,
		})
	}
	return &Client{cfg: cfg, transport: t}, nil
}

// Creator adapts New to chain.Creator for the adapter registry.
func Creator(cfg chain.Config, t transport.Transport) (chain.Adapter, error) {
	return New(cfg, t)
}

// ID returns the chain identifier.
func (c *Client) ID() chain.ID {
	return chain.ETH
}

// Currency returns the configured currency symbol.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Request forwards a JSON-RPC method as is.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.transport.Request(ctx, method, params)
}

// ValidateAddress reports whether address is well formed.
func (c *Client) ValidateAddress(address string) bool {
	return IsValidAddress(address)
}

// GetBlock returns the block by hash or number with transaction hashes.
func (c *Client) GetBlock(ctx context.Context, id chain.BlockID) (*chain.Block, error) {
	var (
		method string
		params []any
	)
	switch {
	case id.Height != nil:
		method, params = "eth_getBlockByNumber", []any{hexutil.EncodeUint64(*id.Height), false}
	case id.Hash != "":
		method, params = "eth_getBlockByHash", []any{prefixed(id.Hash), false}
	default:
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty block id"})
	}

	var blk *rpcBlock
	raw, err := c.call(ctx, method, params, &blk)
	if err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrNotFound, map[string]string{"block": id.String()})
	}
	return normalizeBlock(blk, raw), nil
}

// GetTip returns the latest block header.
func (c *Client) GetTip(ctx context.Context) (*chain.Tip, error) {
	var blk *rpcBlock
	if _, err := c.call(ctx, "eth_getBlockByNumber", []any{"latest", false}, &blk); err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "no latest block"})
	}
	return &chain.Tip{Hash: NormalizeHash(blk.Hash), Height: uint64(blk.Number)}, nil
}

// GetTransaction returns a transaction by hash. BlockHeight stays nil while pending.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	var tx *rpcTransaction
	raw, err := c.call(ctx, "eth_getTransactionByHash", []any{prefixed(hash)}, &tx)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrNotFound, map[string]string{"txid": hash})
	}

	out := &chain.Transaction{
		Hash:     NormalizeHash(tx.Hash),
		From:     tx.From,
		Amount:   bigString(tx.Value),
		Fee:      bigString(tx.GasPrice),
		Sequence: uint64(tx.Nonce),
		Raw:      raw,
	}
	if tx.To != nil {
		out.To = *tx.To
	}
	if tx.BlockNumber != nil {
		h := uint64(*tx.BlockNumber)
		out.BlockHeight = &h
	}
	return out, nil
}

// GetBalance returns the balance in wei at the latest block.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	var balance hexutil.Big
	if _, err := c.call(ctx, "eth_getBalance", []any{address, "latest"}, &balance); err != nil {
		return nil, err
	}
	return balance.ToInt(), nil
}

// EstimateFee returns the node's gas price in wei as a decimal string.
func (c *Client) EstimateFee(ctx context.Context) (string, error) {
	var price hexutil.Big
	if _, err := c.call(ctx, "eth_gasPrice", []any{}, &price); err != nil {
		return "", err
	}
	return price.ToInt().String(), nil
}

// Unlock unlocks the source account in the node keystore until Lock.
func (c *Client) Unlock(ctx context.Context, cred *chain.Credential) error {
	source, err := c.source(cred)
	if err != nil {
		return err
	}

	var ok bool
	// A zero duration keeps the account unlocked until personal_lockAccount.
	if _, err := c.call(ctx, "personal_unlockAccount", []any{source, string(cred.Secret), 0}, &ok); err != nil {
		if _, isNode := transport.AsNodeError(err); isNode {
			return rpcerr.WithCause(rpcerr.ErrCredential, err)
		}
		return err
	}
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"address": source})
	}
	return nil
}

// Lock relocks the source account.
func (c *Client) Lock(ctx context.Context, cred *chain.Credential) error {
	source, err := c.source(cred)
	if err != nil {
		return err
	}
	var ok bool
	_, err = c.call(ctx, "personal_lockAccount", []any{source}, &ok)
	return err
}

// Send submits a value transfer signed by the unlocked keystore account.
func (c *Client) Send(ctx context.Context, to string, amount *big.Int, cred *chain.Credential) (string, error) {
	if err := ValidateAddress(to); err != nil {
		return "", err
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"amount": bigString((*hexutil.Big)(amount))})
	}
	source, err := c.source(cred)
	if err != nil {
		return "", err
	}

	args := sendArgs{From: source, To: to, Value: (*hexutil.Big)(amount)}
	return c.submit(ctx, "eth_sendTransaction", args)
}

// SubmitSignedTransaction broadcasts a signed RLP blob.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signedTx string) (string, error) {
	if signedTx == "" {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty signed transaction"})
	}
	return c.submit(ctx, "eth_sendRawTransaction", prefixed(signedTx))
}

func (c *Client) submit(ctx context.Context, method string, arg any) (string, error) {
	var hash string
	if _, err := c.call(ctx, method, []any{arg}, &hash); err != nil {
		if ne, ok := transport.AsNodeError(err); ok {
			return "", rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrSubmissionRejected, ne), map[string]string{
				"method": method,
			})
		}
		return "", err
	}
	if hash == "" {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "no transaction hash"})
	}
	return NormalizeHash(hash), nil
}

// source resolves the keystore account a credential acts for.
func (c *Client) source(cred *chain.Credential) (string, error) {
	if cred == nil {
		return "", rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "missing credential"})
	}
	source := cred.SourceAddress
	if source == "" {
		source = c.cfg.Address
	}
	if err := ValidateAddress(source); err != nil {
		return "", rpcerr.WithSuggestion(err, "configure the keystore account address for "+c.cfg.Currency)
	}
	return source, nil
}

// call performs one request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) (json.RawMessage, error) {
	raw, err := c.transport.Request(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrInvalidResponse, err), map[string]string{"method": method})
	}
	return raw, nil
}

func normalizeBlock(blk *rpcBlock, raw json.RawMessage) *chain.Block {
	hashes := make([]string, 0, len(blk.Transactions))
	for _, h := range blk.Transactions {
		hashes = append(hashes, NormalizeHash(h))
	}
	return &chain.Block{
		Hash:              NormalizeHash(blk.Hash),
		Height:            uint64(blk.Number),
		ParentHash:        NormalizeHash(blk.ParentHash),
		Accepted:          true,
		Validated:         true,
		TransactionHashes: hashes,
		Raw:               raw,
	}
}

// NormalizeHash strips 0x and lowercases a 32-byte hex hash.
func NormalizeHash(h string) string {
	h = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X"))
	if h == "" || len(h) >= hashLen {
		return h
	}
	return strings.Repeat("0", hashLen-len(h)) + h
}

func prefixed(h string) string {
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		return h
	}
	return "0x" + h
}

func bigString(b *hexutil.Big) string {
	if b == nil {
		return "0"
	}
	return b.ToInt().String()
}

// Compile-time interface checks
var (
	_ chain.Adapter      = (*Client)(nil)
	_ chain.ClientCloser = (*Client)(nil)
	_ chain.RawRequester = (*Client)(nil)
)
