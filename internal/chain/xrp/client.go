// Package xrp provides the XRP Ledger adapter, spoken over the rippled
// command API. Addresses and secret seeds are validated locally with
// ripple-alphabet base58check; signing happens at the node via submit.
package xrp

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const (
	// feeMultiplier pads the quoted fee so submissions survive small load spikes.
	feeMultiplier = "1.2"

	// feeDecimals is the precision of XRP amounts (one drop).
	feeDecimals = 6
)

// Engine results that mean the node took the transaction.
var acceptedResults = map[string]bool{
	"tesSUCCESS": true,
	"terQUEUED":  true,
}

// Node error names that mean the requested object does not exist.
var notFoundErrors = map[string]bool{
	"txnNotFound":   true,
	"lgrNotFound":   true,
	"actNotFound":   true,
	"entryNotFound": true,
}

// Client is the XRP Ledger adapter.
type Client struct {
	cfg       chain.Config
	transport transport.Transport
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
	return chain.XRP
}

// Currency returns the configured currency symbol.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Request sends a rippled command with params as its body.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.transport.Request(ctx, method, params)
}

// ValidateAddress reports whether address is a well formed classic address.
func (c *Client) ValidateAddress(address string) bool {
	return IsValidAddress(address)
}

// GetBlock returns the ledger addressed by hash or index, with transaction hashes.
func (c *Client) GetBlock(ctx context.Context, id chain.BlockID) (*chain.Block, error) {
	params := map[string]any{"transactions": true, "expand": false}
	switch {
	case id.Height != nil:
		params["ledger_index"] = *id.Height
	case id.Hash != "":
		params["ledger_hash"] = id.Hash
	default:
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty block id"})
	}

	var res ledgerResult
	raw, err := c.call(ctx, "ledger", params, &res)
	if err != nil {
		return nil, err
	}

	hashes := res.Ledger.Transactions
	if hashes == nil {
		hashes = []string{}
	}
	return &chain.Block{
		Hash:              res.Ledger.LedgerHash,
		Height:            uint64(res.Ledger.LedgerIndex),
		ParentHash:        res.Ledger.ParentHash,
		Accepted:          res.Ledger.Accepted,
		Validated:         res.Validated,
		TransactionHashes: hashes,
		Raw:               raw,
	}, nil
}

// GetTip returns the most recent validated ledger.
func (c *Client) GetTip(ctx context.Context) (*chain.Tip, error) {
	var res ledgerResult
	if _, err := c.call(ctx, "ledger", map[string]any{"ledger_index": "validated"}, &res); err != nil {
		return nil, err
	}

	tip := &chain.Tip{Hash: res.LedgerHash, Height: uint64(res.Ledger.LedgerIndex)}
	if tip.Hash == "" {
		tip.Hash = res.Ledger.LedgerHash
	}
	if res.LedgerIndex != nil {
		tip.Height = uint64(*res.LedgerIndex)
	}
	if tip.Hash == "" {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "ledger without hash"})
	}
	return tip, nil
}

// GetTransaction returns a transaction by hash. BlockHeight is set once the
// transaction is part of a closed ledger.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	var res txResult
	raw, err := c.call(ctx, "tx", map[string]any{"transaction": hash, "binary": false}, &res)
	if err != nil {
		return nil, err
	}

	tx := &chain.Transaction{
		Hash:     res.Hash,
		From:     res.Account,
		To:       res.Destination,
		Amount:   res.amount(),
		Fee:      res.Fee,
		Sequence: res.Sequence,
		Raw:      raw,
	}
	if res.LedgerIndex != nil {
		h := uint64(*res.LedgerIndex)
		tx.BlockHeight = &h
	}
	return tx, nil
}

// GetBalance returns the account balance in drops.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !IsValidAddress(address) {
		return nil, invalidAddress(address)
	}

	var res accountInfoResult
	if _, err := c.call(ctx, "account_info", map[string]any{"account": address, "ledger_index": "validated"}, &res); err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(res.AccountData.Balance, 10)
	if !ok {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"balance": res.AccountData.Balance})
	}
	return balance, nil
}

// EstimateFee returns base_fee_xrp * load_factor * 1.2 in XRP with six decimals.
func (c *Client) EstimateFee(ctx context.Context) (string, error) {
	var res serverInfoResult
	if _, err := c.call(ctx, "server_info", nil, &res); err != nil {
		return "", err
	}

	ledger := res.Info.ValidatedLedger
	if ledger == nil {
		ledger = res.Info.ClosedLedger
	}
	if ledger == nil {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "no ledger in server_info"})
	}

	load := res.Info.LoadFactor
	if load.IsZero() {
		load = decimal.NewFromInt(1)
	}
	fee := ledger.BaseFeeXRP.Mul(load).Mul(decimal.RequireFromString(feeMultiplier))
	return fee.StringFixed(feeDecimals), nil
}

// Unlock checks the secret locally; the node signs with it on each submit.
func (c *Client) Unlock(_ context.Context, cred *chain.Credential) error {
	if cred == nil {
		return rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "missing credential"})
	}
	if err := ValidateSecret(string(cred.Secret)); err != nil {
		return rpcerr.WithCause(rpcerr.ErrCredential, err)
	}
	return nil
}

// Lock is a no-op: nothing is held at the node between submissions.
func (c *Client) Lock(context.Context, *chain.Credential) error {
	return nil
}

// Send signs and submits one Payment at the node. The destination is
// checked locally first so malformed addresses never reach the network.
func (c *Client) Send(ctx context.Context, to string, amount *big.Int, cred *chain.Credential) (string, error) {
	if !IsValidAddress(to) {
		return "", invalidAddress(to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"amount": amountString(amount)})
	}
	if cred == nil {
		return "", rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "missing credential"})
	}

	source := cred.SourceAddress
	if source == "" {
		source = c.cfg.Address
	}
	if !IsValidAddress(source) {
		return "", rpcerr.WithSuggestion(invalidAddress(source), "configure the sending account address for "+c.cfg.Currency)
	}

	params := map[string]any{
		"secret": string(cred.Secret),
		"tx_json": payment{
			TransactionType: "Payment",
			Account:         source,
			Destination:     to,
			Amount:          amount.String(),
		},
	}
	return c.submit(ctx, params)
}

// SubmitSignedTransaction submits a signed blob verbatim.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signedTx string) (string, error) {
	if signedTx == "" {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty signed transaction"})
	}
	return c.submit(ctx, map[string]any{"tx_blob": signedTx})
}

func (c *Client) submit(ctx context.Context, params map[string]any) (string, error) {
	raw, err := c.transport.Request(ctx, "submit", params)
	if err != nil {
		mapped := mapNodeError("submit", err)
		if ne, ok := transport.AsNodeError(err); ok && !rpcerr.Is(mapped, rpcerr.ErrCredential) {
			return "", rejected(ne.Name, ne.Message, ne)
		}
		return "", mapped
	}

	var res submitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}
	if !acceptedResults[res.EngineResult] {
		return "", rejected(res.EngineResult, res.EngineResultMessage, nil)
	}
	if res.TxJSON.Hash == "" {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidResponse, map[string]string{"reason": "submit without hash"})
	}
	return res.TxJSON.Hash, nil
}

// call performs one request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) (json.RawMessage, error) {
	raw, err := c.transport.Request(ctx, method, params)
	if err != nil {
		return nil, mapNodeError(method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrInvalidResponse, err), map[string]string{"method": method})
	}
	return raw, nil
}

// mapNodeError folds node-reported errors into the error taxonomy.
// Transport failures are already classified and pass through.
func mapNodeError(method string, err error) error {
	ne, ok := transport.AsNodeError(err)
	if !ok {
		return err
	}
	details := map[string]string{"method": method, "error": ne.Name}
	switch {
	case notFoundErrors[ne.Name]:
		return rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrNotFound, ne), details)
	case ne.Name == "actMalformed":
		return rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrInvalidAddress, ne), details)
	case ne.Name == "badSecret" || ne.Name == "badSeed":
		return rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrCredential, ne), details)
	default:
		return err
	}
}

// rejected builds a SubmissionRejected error carrying the node's verdict.
func rejected(result, message string, cause error) error {
	msg := rpcerr.ErrSubmissionRejected.Message
	if message != "" {
		msg += ": " + message
	}
	return &rpcerr.RPCError{
		Code:     rpcerr.ErrSubmissionRejected.Code,
		Message:  msg,
		Details:  map[string]string{"engine_result": result},
		Cause:    cause,
		ExitCode: rpcerr.ErrSubmissionRejected.ExitCode,
	}
}

func invalidAddress(address string) error {
	return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": address})
}

func amountString(a *big.Int) string {
	if a == nil {
		return "<nil>"
	}
	return a.String()
}

// Compile-time interface checks
var (
	_ chain.Adapter      = (*Client)(nil)
	_ chain.ClientCloser = (*Client)(nil)
	_ chain.RawRequester = (*Client)(nil)
)
