// Package btc provides the Bitcoin adapter over bitcoind JSON-RPC.
// Payments are signed by the node wallet, unlocked per credential session
// with walletpassphrase. Caller amounts are satoshis; bitcoind speaks BTC.
package btc

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const (
	// satoshiExp scales BTC to satoshis.
	satoshiExp = 8

	// feeTargetBlocks is the confirmation target for estimatesmartfee.
	feeTargetBlocks = 6

	// unlockSeconds bounds how long walletpassphrase keeps keys in memory
	// if a session is never closed.
	unlockSeconds = 600
)

// bitcoind RPC error codes we map onto the error taxonomy.
const (
	codeInvalidParameter    = -8
	codeInvalidAddressOrKey = -5
	codeWalletUnlockNeeded  = -13
	codeWrongEncState       = -15
)

// Client is the Bitcoin adapter.
type Client struct {
	cfg       chain.Config
	params    *chaincfg.Params
	transport transport.Transport
}

type rpcBlock struct {
	Hash              string   `json:"hash"`
	Height            uint64   `json:"height"`
	PreviousBlockHash string   `json:"previousblockhash"`
	Confirmations     int64    `json:"confirmations"`
	Tx                []string `json:"tx"`
}

type rpcChainInfo struct {
	Blocks        uint64 `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}

type rpcWalletTx struct {
	TxID          string          `json:"txid"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Confirmations int64           `json:"confirmations"`
	BlockHeight   *uint64         `json:"blockheight"`
	Details       []struct {
		Address  string `json:"address"`
		Category string `json:"category"`
	} `json:"details"`
}

type rpcUnspent struct {
	Amount decimal.Decimal `json:"amount"`
}

type rpcSmartFee struct {
	FeeRate *decimal.Decimal `json:"feerate"`
	Errors  []string         `json:"errors"`
}

// NetworkParams maps a configured network name to chain parameters.
// An empty name selects mainnet.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{"network": network})
	}
}

// New creates an adapter over an already dialed transport.
func New(cfg chain.Config, t transport.Transport) (*Client, error) {
	if t == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "nil transport"})
	}
	params, err := NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, params: params, transport: t}
	if cfg.Address != "" && !c.ValidateAddress(cfg.Address) {
		return nil, rpcerr.WithDetails(rpcerr.ErrConfigInvalid, map[string]string{
			"currency": cfg.Currency,
			"address":  cfg.Address,
		})
	}
	return c, nil
}

// Creator adapts New to chain.Creator for the adapter registry.
func Creator(cfg chain.Config, t transport.Transport) (chain.Adapter, error) {
	return New(cfg, t)
}

// ID returns the chain identifier.
func (c *Client) ID() chain.ID {
	return chain.BTC
}

// Currency returns the configured currency symbol.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.transport.Request(ctx, method, params)
}

// ValidateAddress decodes the address and checks it belongs to the configured network.
func (c *Client) ValidateAddress(address string) bool {
	if address == "" {
		return false
	}
	addr, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return false
	}
	return addr.IsForNet(c.params)
}

// GetBlock returns a block by hash, resolving heights with getblockhash first.
func (c *Client) GetBlock(ctx context.Context, id chain.BlockID) (*chain.Block, error) {
	hash := id.Hash
	switch {
	case id.Height != nil:
		if err := c.call(ctx, "getblockhash", []any{*id.Height}, &hash); err != nil {
			return nil, notFound(err, "block", id.String())
		}
	case hash == "":
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty block id"})
	}

	raw, err := c.transport.Request(ctx, "getblock", []any{hash, 1})
	if err != nil {
		return nil, notFound(err, "block", id.String())
	}
	var blk rpcBlock
	if err := json.Unmarshal(raw, &blk); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}

	txs := blk.Tx
	if txs == nil {
		txs = []string{}
	}
	return &chain.Block{
		Hash:              blk.Hash,
		Height:            blk.Height,
		ParentHash:        blk.PreviousBlockHash,
		Accepted:          blk.Confirmations >= 0,
		Validated:         blk.Confirmations > 0,
		TransactionHashes: txs,
		Raw:               raw,
	}, nil
}

// GetTip returns the best block of the active chain.
func (c *Client) GetTip(ctx context.Context) (*chain.Tip, error) {
	var info rpcChainInfo
	if err := c.call(ctx, "getblockchaininfo", []any{}, &info); err != nil {
		return nil, err
	}
	return &chain.Tip{Hash: info.BestBlockHash, Height: info.Blocks}, nil
}

// GetTransaction returns a wallet transaction. Amounts are reported in satoshis.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	raw, err := c.transport.Request(ctx, "gettransaction", []any{hash})
	if err != nil {
		return nil, notFound(err, "txid", hash)
	}
	var wtx rpcWalletTx
	if err := json.Unmarshal(raw, &wtx); err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidResponse, err)
	}

	tx := &chain.Transaction{
		Hash:   wtx.TxID,
		Amount: toSatoshis(wtx.Amount.Abs()).String(),
		Fee:    toSatoshis(wtx.Fee.Abs()).String(),
		Raw:    raw,
	}
	for _, d := range wtx.Details {
		if d.Address != "" {
			tx.To = d.Address
			break
		}
	}
	if wtx.Confirmations > 0 && wtx.BlockHeight != nil {
		h := *wtx.BlockHeight
		tx.BlockHeight = &h
	}
	return tx, nil
}

// GetBalance sums the confirmed wallet outputs paying to address.
// The address must be watched by the node wallet.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !c.ValidateAddress(address) {
		return nil, invalidAddress(address)
	}

	var utxos []rpcUnspent
	if err := c.call(ctx, "listunspent", []any{1, 9999999, []string{address}}, &utxos); err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, u := range utxos {
		total = total.Add(u.Amount)
	}
	return toSatoshis(total), nil
}

// EstimateFee returns the smart fee estimate in BTC/kvB.
func (c *Client) EstimateFee(ctx context.Context) (string, error) {
	var fee rpcSmartFee
	if err := c.call(ctx, "estimatesmartfee", []any{feeTargetBlocks}, &fee); err != nil {
		return "", err
	}
	if fee.FeeRate == nil {
		details := map[string]string{"reason": "no fee estimate"}
		if len(fee.Errors) > 0 {
			details["reason"] = fee.Errors[0]
		}
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidResponse, details)
	}
	return fee.FeeRate.StringFixed(satoshiExp), nil
}

// Unlock unlocks the node wallet. An unencrypted wallet needs no unlock.
func (c *Client) Unlock(ctx context.Context, cred *chain.Credential) error {
	if cred == nil {
		return rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "missing credential"})
	}
	_, err := c.transport.Request(ctx, "walletpassphrase", []any{string(cred.Secret), unlockSeconds})
	if ne, ok := transport.AsNodeError(err); ok {
		if ne.Code == codeWrongEncState {
			return nil
		}
		return rpcerr.WithCause(rpcerr.ErrCredential, ne)
	}
	return err
}

// Lock locks the node wallet.
func (c *Client) Lock(ctx context.Context, _ *chain.Credential) error {
	_, err := c.transport.Request(ctx, "walletlock", []any{})
	if ne, ok := transport.AsNodeError(err); ok && ne.Code == codeWrongEncState {
		return nil
	}
	return err
}

// Send pays amount satoshis to address from the node wallet.
func (c *Client) Send(ctx context.Context, to string, amount *big.Int, _ *chain.Credential) (string, error) {
	if !c.ValidateAddress(to) {
		return "", invalidAddress(to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"amount": satoshiString(amount)})
	}

	btc := json.Number(decimal.NewFromBigInt(amount, -satoshiExp).StringFixed(satoshiExp))
	return c.submit(ctx, "sendtoaddress", []any{to, btc})
}

// SubmitSignedTransaction broadcasts a signed raw transaction in hex.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signedTx string) (string, error) {
	if signedTx == "" {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "empty signed transaction"})
	}
	return c.submit(ctx, "sendrawtransaction", []any{signedTx})
}

func (c *Client) submit(ctx context.Context, method string, params []any) (string, error) {
	var txid string
	err := c.call(ctx, method, params, &txid)
	if ne, ok := transport.AsNodeError(err); ok {
		if ne.Code == codeWalletUnlockNeeded {
			return "", rpcerr.WithCause(rpcerr.ErrCredential, ne)
		}
		return "", rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrSubmissionRejected, ne), map[string]string{
			"method": method,
		})
	}
	if err != nil {
		return "", err
	}
	return txid, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	raw, err := c.transport.Request(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrInvalidResponse, err), map[string]string{"method": method})
	}
	return nil
}

// notFound maps bitcoind's unknown-object codes to ErrNotFound.
func notFound(err error, kind, id string) error {
	ne, ok := transport.AsNodeError(err)
	if !ok {
		return err
	}
	if ne.Code == codeInvalidAddressOrKey || ne.Code == codeInvalidParameter {
		return rpcerr.WithDetails(rpcerr.WithCause(rpcerr.ErrNotFound, ne), map[string]string{kind: id})
	}
	return err
}

func toSatoshis(btc decimal.Decimal) *big.Int {
	return btc.Shift(satoshiExp).Round(0).BigInt()
}

func invalidAddress(address string) error {
	return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": address})
}

func satoshiString(a *big.Int) string {
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
