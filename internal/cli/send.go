package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/events"
	"github.com/mrz1836/cryptorpc/internal/output"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// sendTimeout bounds a whole send or batch, including unlock and relock.
const sendTimeout = 5 * time.Minute

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	sendSecret   string
	sendSource   string
	sendYes      bool
	sendManyFile string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	sendCmd = &cobra.Command{
		Use:   "send <address> <amount>",
		Short: "Send one payment",
		Long: `Unlock the signing account, send one payment and lock the account again.
The amount is an integer in the chain's smallest unit and is passed to the
node unchanged.

The secret is read from --secret, then CRYPTORPC_SECRET, then a hidden prompt.
It is held in locked memory and wiped before the command returns.`,
		Example: `  cryptorpc send rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu 10000 -c XRP
  CRYPTORPC_SECRET=... cryptorpc send 0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359 1000000000000000 -c ETH --yes`,
		Args: cobra.ExactArgs(2),
		RunE: runSend,
	}

	sendManyCmd = &cobra.Command{
		Use:   "send-many [address:amount ...]",
		Short: "Send a batch of payments under one unlock",
		Long: `Send several payments in order under a single unlock. Each payment
succeeds or fails on its own; a rejected payment does not stop the rest.
Results are listed in input order.

Payments come from arguments of the form address:amount, or from --file.
A .json file holds [{"address": "...", "amount": ...}] with the amount as a
number or a string; any other file
holds one "address amount" or "address,amount" pair per line, with # comments.`,
		Example: `  cryptorpc send-many r38UsJxHSJKajC8qcNmofxJvCESnzmx7Ke:10000 rMGhv5SNsk81QN1fGu6RybDkUi2of36dua:10000 -c XRP
  cryptorpc send-many --file payouts.csv -c XRP -o json`,
		RunE: runSendMany,
	}

	submitCmd = &cobra.Command{
		Use:   "submit <signed-tx|->",
		Short: "Broadcast a signed transaction",
		Long: `Broadcast a transaction that was signed elsewhere, for example by
"cryptorpc offline sign". Pass - to read the blob from stdin.`,
		Example: `  cryptorpc submit 0xf86c... -c ETH
  cryptorpc offline sign --to 0x... --value 1 --nonce 0 --gas-price 1000000000 | cryptorpc submit - -c ETH`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	for _, cmd := range []*cobra.Command{sendCmd, sendManyCmd} {
		cmd.Flags().StringVar(&sendSecret, "secret", "", "signing secret (prefer CRYPTORPC_SECRET or the prompt)")
		cmd.Flags().StringVar(&sendSource, "source", "", "source account, where the chain needs one")
		cmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "skip the confirmation prompt")
	}
	sendManyCmd.Flags().StringVarP(&sendManyFile, "file", "f", "", "read payments from a file")

	for _, cmd := range []*cobra.Command{sendCmd, sendManyCmd, submitCmd} {
		cmd.GroupID = groupPayments
		rootCmd.AddCommand(cmd)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	payment := chain.NewPaymentRequest(args[0], args[1])
	if payment.Invalid != nil {
		return payment.Invalid
	}

	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ok, err := f.ValidateAddress(currency, payment.Address)
	if err != nil {
		return err
	}
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": payment.Address})
	}
	if !confirmSend(fmt.Sprintf("Send %s base units of %s to %s", payment.Amount, currency, payment.Address)) {
		return rpcerr.WithSuggestion(rpcerr.ErrInvalidInput, "payment not confirmed; pass --yes to skip the prompt")
	}

	secret, err := resolveSecret(sendSecret, currency)
	if err != nil {
		return err
	}
	defer clear(secret)

	ctx, cancel := nodeContext(cmd, sendTimeout)
	defer cancel()

	txid, err := f.UnlockAndSendToAddress(ctx, currency, payment, secret, sendSource)
	if err != nil {
		return err
	}
	if cmdCtx.Formatter.IsJSON() {
		return cmdCtx.Formatter.Print(map[string]string{"currency": currency, "txid": txid})
	}
	return cmdCtx.Formatter.Print(txid)
}

func runSendMany(cmd *cobra.Command, args []string) error {
	payments, err := collectPayments(args, sendManyFile)
	if err != nil {
		return err
	}

	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	if !confirmSend(fmt.Sprintf("Send %d payments of %s", len(payments), currency)) {
		return rpcerr.WithSuggestion(rpcerr.ErrInvalidInput, "batch not confirmed; pass --yes to skip the prompt")
	}

	secret, err := resolveSecret(sendSecret, currency)
	if err != nil {
		return err
	}
	defer clear(secret)

	stop, err := reportProgress(f, currency, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := nodeContext(cmd, sendTimeout)
	defer cancel()

	results, err := f.UnlockAndSendToAddressMany(ctx, currency, payments, secret, sendSource)
	stop()
	if err != nil {
		return err
	}

	view := output.Payments(results)
	if err := cmdCtx.Formatter.Print(view); err != nil {
		return err
	}
	if n := view.Failed(); n > 0 {
		return rpcerr.WithDetails(rpcerr.ErrSubmissionRejected, map[string]string{
			"failed": strconv.Itoa(n),
			"total":  strconv.Itoa(len(results)),
		})
	}
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	blob := args[0]
	if blob == "-" {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
		if err != nil {
			return rpcerr.WithCause(rpcerr.ErrInvalidInput, err)
		}
		blob = string(data)
	}
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return rpcerr.WithSuggestion(rpcerr.ErrInvalidInput, "no signed transaction given")
	}

	f, currency, err := facadeFor()
	if err != nil {
		return err
	}
	ctx, cancel := nodeContext(cmd, queryTimeout)
	defer cancel()

	txid, err := f.SubmitSignedTransaction(ctx, currency, blob)
	if err != nil {
		return err
	}
	if cmdCtx.Formatter.IsJSON() {
		return cmdCtx.Formatter.Print(map[string]string{"currency": currency, "txid": txid})
	}
	return cmdCtx.Formatter.Print(txid)
}

// confirmSend asks before moving funds when a person is at the terminal.
func confirmSend(summary string) bool {
	if sendYes || !isTerminalFn() {
		return true
	}
	return promptConfirmFn(summary)
}

// reportProgress prints one line per batch event to w in text mode. The
// returned stop func blocks until every delivered event is printed.
func reportProgress(f Facade, currency string, w io.Writer) (func(), error) {
	if cmdCtx.Formatter.IsJSON() {
		return func() {}, nil
	}
	ch, cancel, err := f.Events(currency)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range ch {
			switch ev.Kind {
			case events.KindSuccess:
				output.Successf(w, "[%d] %s %s -> %s", ev.Index, ev.Amount, ev.Address, ev.TxID)
			case events.KindFailure:
				output.Warnf(w, "[%d] %s %s: %v", ev.Index, ev.Amount, ev.Address, ev.Err)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

// collectPayments parses address:amount arguments and, if set, a payments file.
// Malformed entries fail the call; an unparsable amount is left on its payment
// as Invalid so the batch reports it at that position.
func collectPayments(args []string, file string) ([]chain.PaymentRequest, error) {
	var payments []chain.PaymentRequest
	if file != "" {
		fromFile, err := readPaymentsFile(file)
		if err != nil {
			return nil, err
		}
		payments = append(payments, fromFile...)
	}
	for _, arg := range args {
		idx := strings.LastIndex(arg, ":")
		if idx <= 0 {
			return nil, rpcerr.WithSuggestion(
				rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"payment": arg}),
				"write payments as address:amount",
			)
		}
		payments = append(payments, chain.NewPaymentRequest(arg[:idx], arg[idx+1:]))
	}
	if len(payments) == 0 {
		return nil, rpcerr.WithSuggestion(rpcerr.ErrInvalidInput, "no payments given; pass address:amount arguments or --file")
	}
	return payments, nil
}

func readPaymentsFile(path string) ([]chain.PaymentRequest, error) {
	// #nosec G304 -- payments file path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidInput, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var rows []struct {
			Address string          `json:"address"`
			Amount  chain.RawAmount `json:"amount"`
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, rpcerr.WithCause(rpcerr.ErrInvalidInput, err)
		}
		out := make([]chain.PaymentRequest, 0, len(rows))
		for _, r := range rows {
			out = append(out, chain.NewPaymentRequest(r.Address, string(r.Amount)))
		}
		return out, nil
	}

	var out []chain.PaymentRequest
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(fields) != 2 {
			return nil, rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{
				"file": path,
				"line": strconv.Itoa(line),
			})
		}
		out = append(out, chain.NewPaymentRequest(fields[0], fields[1]))
	}
	return out, sc.Err()
}
