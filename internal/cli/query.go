package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// queryTimeout bounds a single read against a node.
const queryTimeout = 30 * time.Second

// TipResult is the output of `cryptorpc tip`.
type TipResult struct {
	Currency string `json:"currency"`
	Height   uint64 `json:"height"`
	Hash     string `json:"hash"`
}

// RenderText implements output.TextRenderer.
func (r TipResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s tip\n  Height: %d\n  Hash:   %s\n", r.Currency, r.Height, r.Hash)
	return err
}

// BalanceResult is the output of `cryptorpc balance`.
type BalanceResult struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
	Balance  string `json:"balance"`
}

// RenderText implements output.TextRenderer.
func (r BalanceResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s (base units)\n", r.Balance, r.Currency)
	return err
}

// ConfirmationsResult is the output of `cryptorpc confirmations`.
type ConfirmationsResult struct {
	Currency      string `json:"currency"`
	TxID          string `json:"txid"`
	Confirmations uint64 `json:"confirmations"`
}

// RenderText implements output.TextRenderer.
func (r ConfirmationsResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d\n", r.Confirmations)
	return err
}

// ValidateResult is the output of `cryptorpc validate`.
type ValidateResult struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
	Valid    bool   `json:"valid"`
}

// RenderText implements output.TextRenderer.
func (r ValidateResult) RenderText(w io.Writer) error {
	verdict := "valid"
	if !r.Valid {
		verdict = "invalid"
	}
	_, err := fmt.Fprintf(w, "%s: %s %s address\n", r.Address, verdict, r.Currency)
	return err
}

// FeeResult is the output of `cryptorpc fee`.
type FeeResult struct {
	Currency string `json:"currency"`
	Fee      string `json:"fee"`
}

// RenderText implements output.TextRenderer.
func (r FeeResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s\n", r.Fee, r.Currency)
	return err
}

// RawResult is the node's own answer to `cryptorpc rpc`.
type RawResult json.RawMessage

// MarshalJSON emits the payload unchanged.
func (r RawResult) MarshalJSON() ([]byte, error) {
	return json.RawMessage(r).MarshalJSON()
}

// RenderText implements output.TextRenderer.
func (r RawResult) RenderText(w io.Writer) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	tipCmd = &cobra.Command{
		Use:   "tip",
		Short: "Show the latest block height and hash",
		Long: `Show the chain tip of the selected currency: the most recent block the
node knows about. For XRP this is the last closed ledger.`,
		Example: `  cryptorpc tip --currency XRP
  cryptorpc tip -c BTC -o json`,
		Args: cobra.NoArgs,
		RunE: runTip,
	}

	bestHashCmd = &cobra.Command{
		Use:     "besthash",
		Short:   "Print the hash of the latest block",
		Long:    `Print the hash of the chain tip and nothing else.`,
		Example: `  cryptorpc besthash -c ETH`,
		Args:    cobra.NoArgs,
		RunE:    runBestHash,
	}

	blockCmd = &cobra.Command{
		Use:   "block <hash|height>",
		Short: "Show a block by hash or height",
		Long: `Show a block, normalized across chains: hash, height, parent,
accepted/validated flags and the hashes of the transactions it contains.
An all-digit argument is read as a height; anything else as a hash.`,
		Example: `  cryptorpc block 42 -c XRP
  cryptorpc block 0000000000000000000320283a032748cef8227873ff4872689bf23f1cda83a5 -c BTC`,
		Args: cobra.ExactArgs(1),
		RunE: runBlock,
	}

	balanceCmd = &cobra.Command{
		Use:   "balance <address>",
		Short: "Show an address balance in base units",
		Long: `Show the balance of an address in the chain's smallest unit: drops for
XRP, wei for Ethereum, satoshis for Bitcoin.`,
		Example: `  cryptorpc balance rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh -c XRP`,
		Args:    cobra.ExactArgs(1),
		RunE:    runBalance,
	}

	txCmd = &cobra.Command{
		Use:     "tx <txid>",
		Short:   "Show a transaction",
		Long:    `Show a transaction normalized across chains. Pending transactions have no block.`,
		Example: `  cryptorpc tx E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7 -c XRP`,
		Args:    cobra.ExactArgs(1),
		RunE:    runTx,
	}

	confirmationsCmd = &cobra.Command{
		Use:   "confirmations <txid>",
		Short: "Count confirmations for a transaction",
		Long: `Count the blocks at or above the one containing the transaction,
including that block. Pending or unconfirmed transactions report 0.`,
		Example: `  cryptorpc confirmations E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7 -c XRP`,
		Args:    cobra.ExactArgs(1),
		RunE:    runConfirmations,
	}

	validateCmd = &cobra.Command{
		Use:   "validate <address>",
		Short: "Check an address offline",
		Long: `Check that an address is well formed for the selected currency. No node
is contacted. The exit code is non-zero when the address is invalid.`,
		Example: `  cryptorpc validate rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu -c XRP`,
		Args:    cobra.ExactArgs(1),
		RunE:    runValidate,
	}

	feeCmd = &cobra.Command{
		Use:   "fee",
		Short: "Estimate the fee for a simple payment",
		Long: `Estimate the fee for a simple payment, as a decimal string in the
chain's display unit.`,
		Example: `  cryptorpc fee -c XRP`,
		Args:    cobra.NoArgs,
		RunE:    runFee,
	}

	rpcCmd = &cobra.Command{
		Use:   "rpc <method> [params]",
		Short: "Call a node method directly",
		Long: `Send one method to the node as is and print the raw result. Params are
JSON: an array for Ethereum and bitcoind, an object for rippled.
Nothing is normalized, and no credential session is opened.`,
		Example: `  cryptorpc rpc server_info -c XRP
  cryptorpc rpc eth_getTransactionCount '["0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359","latest"]' -c ETH`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runRPC,
	}

	currenciesCmd = &cobra.Command{
		Use:     "currencies",
		Short:   "List configured currencies",
		Long:    `List the currencies configured in config.yaml with their node endpoints.`,
		Example: `  cryptorpc currencies`,
		Args:    cobra.NoArgs,
		RunE:    runCurrencies,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	for _, cmd := range []*cobra.Command{
		tipCmd, bestHashCmd, blockCmd, balanceCmd, txCmd,
		confirmationsCmd, validateCmd, feeCmd, rpcCmd, currenciesCmd,
	} {
		cmd.GroupID = groupQuery
		rootCmd.AddCommand(cmd)
	}
}

// facadeFor opens the gateway and resolves the target currency.
func facadeFor() (Facade, string, error) {
	currency, err := cmdCtx.Currency(currencyFlag)
	if err != nil {
		return nil, "", err
	}
	f, err := cmdCtx.Facade()
	if err != nil {
		return nil, "", err
	}
	return f, currency, nil
}

func runTip(cmd *cobra.Command, _ []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	tip, err := f.GetTip(ctx, currency)
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(TipResult{Currency: currency, Height: tip.Height, Hash: tip.Hash})
}

func runBestHash(cmd *cobra.Command, _ []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	hash, err := f.GetBestBlockHash(ctx, currency)
	if err != nil {
		return err
	}
	if cmdCtx.Formatter.IsJSON() {
		return cmdCtx.Formatter.Print(map[string]string{"currency": currency, "hash": hash})
	}
	return cmdCtx.Formatter.Print(hash)
}

func runBlock(cmd *cobra.Command, args []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	id := chain.ParseBlockID(args[0])
	if id.IsZero() {
		return rpcerr.WithSuggestion(rpcerr.ErrInvalidInput, "pass a block hash or height")
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	block, err := f.GetBlock(ctx, currency, id)
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(output.BlockView{Block: block})
}

func runBalance(cmd *cobra.Command, args []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	bal, err := f.GetBalance(ctx, currency, args[0])
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(BalanceResult{Currency: currency, Address: args[0], Balance: bal.String()})
}

func runTx(cmd *cobra.Command, args []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	tx, err := f.GetTransaction(ctx, currency, args[0])
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(output.TransactionView{Transaction: tx})
}

func runConfirmations(cmd *cobra.Command, args []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	n, err := f.GetConfirmations(ctx, currency, args[0])
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(ConfirmationsResult{Currency: currency, TxID: args[0], Confirmations: n})
}

func runValidate(_ *cobra.Command, args []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ok, err := f.ValidateAddress(currency, args[0])
	if err != nil {
		return err
	}
	if err := cmdCtx.Formatter.Print(ValidateResult{Currency: currency, Address: args[0], Valid: ok}); err != nil {
		return err
	}
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": args[0]})
	}
	return nil
}

func runFee(cmd *cobra.Command, _ []string) error {
	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	fee, err := f.EstimateFee(ctx, currency)
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(FeeResult{Currency: currency, Fee: fee})
}

func runRPC(cmd *cobra.Command, args []string) error {
	var params any
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return rpcerr.WithSuggestion(
				rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"params": args[1]}),
				"params must be JSON, for example '[\"latest\", false]'",
			)
		}
		params = json.RawMessage(args[1])
	}

	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	raw, err := f.Request(ctx, currency, args[0], params)
	if err != nil {
		return err
	}
	return cmdCtx.Formatter.Print(RawResult(raw))
}

func runCurrencies(cmd *cobra.Command, _ []string) error {
	if cmdCtx.Formatter.IsJSON() {
		type entry struct {
			Currency string   `json:"currency"`
			Chain    chain.ID `json:"chain"`
			Endpoint string   `json:"endpoint"`
		}
		list := make([]entry, 0, len(cmdCtx.Config.Chains))
		for _, ch := range cmdCtx.Config.Chains {
			list = append(list, entry{Currency: ch.Currency, Chain: ch.Chain, Endpoint: ch.Endpoint()})
		}
		return cmdCtx.Formatter.Print(list)
	}

	t := output.NewTable("CURRENCY", "CHAIN", "ENDPOINT")
	for _, ch := range cmdCtx.Config.Chains {
		t.AddRow(ch.Currency, ch.Chain.String(), ch.Endpoint())
	}
	return t.Render(cmd.OutOrStdout())
}
