package cli

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cryptorpc/internal/config"
	"github.com/mrz1836/cryptorpc/internal/offline"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	offlineAccount    uint32
	offlineIndex      uint32
	offlinePassphrase bool
	offlineTo         string
	offlineValue      string
	offlineNonce      uint64
	offlineGasPrice   string
	offlineGasLimit   uint64
	offlineChainID    int64
	offlineChain      string
	offlineDrops      string
	offlineFee        string
	offlineSequence   uint32
	offlineTag        string
	offlineLastLedger uint32
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	offlineCmd = &cobra.Command{
		Use:   "offline",
		Short: "Derive keys and sign transactions without a node",
		Long: `Derive Ethereum or XRP keys from a BIP39 mnemonic and sign transactions
locally. Nothing here contacts a node. Broadcast the result with
"cryptorpc submit".

The mnemonic is read from CRYPTORPC_MNEMONIC or a hidden prompt.`,
	}

	offlineAddressCmd = &cobra.Command{
		Use:   "address",
		Short: "Print the address at a derivation path",
		Long: `Print the address derived at m/44'/<coin>'/<account>'/0/<index>, where
coin is 60 for ETH and 144 for XRP.`,
		Example: `  cryptorpc offline address
  cryptorpc offline address --chain XRP --account 0 --index 3`,
		Args: cobra.NoArgs,
		RunE: runOfflineAddress,
	}

	offlineSignCmd = &cobra.Command{
		Use:   "sign",
		Short: "Build and sign a legacy value transfer",
		Long: `Build a legacy Ethereum transaction, sign it with EIP-155 replay
protection and print the 0x-prefixed raw transaction. Value and gas price
are in wei.`,
		Example: `  cryptorpc offline sign --to 0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359 --value 1000000000000000 \
    --nonce 0 --gas-price 1000000000 --chain-id 1`,
		Args: cobra.NoArgs,
		RunE: runOfflineSign,
	}

	offlineSignXRPCmd = &cobra.Command{
		Use:   "sign-xrp",
		Short: "Build and sign an XRP payment",
		Long: `Build a native XRP Payment from the derived account, sign it with the
account's secp256k1 key and print the hex blob and its transaction hash.
Amount and fee are in drops. The sequence must match the account's next
sequence on the ledger.`,
		Example: `  cryptorpc offline sign-xrp --to rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu --amount 5000 --fee 10 --sequence 3
  cryptorpc offline sign-xrp --to rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu --amount 5000 --tag 1 --sequence 3 -o text | cryptorpc submit - -c XRP`,
		Args: cobra.NoArgs,
		RunE: runOfflineSignXRP,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	offlineCmd.GroupID = groupPayments
	rootCmd.AddCommand(offlineCmd)
	offlineCmd.AddCommand(offlineAddressCmd, offlineSignCmd, offlineSignXRPCmd)

	for _, cmd := range []*cobra.Command{offlineAddressCmd, offlineSignCmd, offlineSignXRPCmd} {
		cmd.Flags().Uint32Var(&offlineAccount, "account", 0, "BIP44 account")
		cmd.Flags().Uint32Var(&offlineIndex, "index", 0, "address index")
		cmd.Flags().BoolVar(&offlinePassphrase, "passphrase", false, "prompt for a BIP39 passphrase")
	}

	offlineSignCmd.Flags().StringVar(&offlineTo, "to", "", "recipient address (required)")
	offlineSignCmd.Flags().StringVar(&offlineValue, "value", "0", "value in wei")
	offlineSignCmd.Flags().Uint64Var(&offlineNonce, "nonce", 0, "sender nonce")
	offlineSignCmd.Flags().StringVar(&offlineGasPrice, "gas-price", "", "gas price in wei (required)")
	offlineSignCmd.Flags().Uint64Var(&offlineGasLimit, "gas-limit", offline.DefaultGasLimit, "gas limit")
	offlineSignCmd.Flags().Int64Var(&offlineChainID, "chain-id", 1, "EIP-155 chain id")

	_ = offlineSignCmd.MarkFlagRequired("to")
	_ = offlineSignCmd.MarkFlagRequired("gas-price")

	offlineAddressCmd.Flags().StringVar(&offlineChain, "chain", "ETH", "key family: ETH or XRP")

	offlineSignXRPCmd.Flags().StringVar(&offlineTo, "to", "", "destination address (required)")
	offlineSignXRPCmd.Flags().StringVar(&offlineDrops, "amount", "", "amount in drops (required)")
	offlineSignXRPCmd.Flags().StringVar(&offlineFee, "fee", "12", "fee in drops")
	offlineSignXRPCmd.Flags().Uint32Var(&offlineSequence, "sequence", 0, "account sequence (required)")
	offlineSignXRPCmd.Flags().StringVar(&offlineTag, "tag", "", "destination tag")
	offlineSignXRPCmd.Flags().Uint32Var(&offlineLastLedger, "last-ledger", 0, "last ledger the payment may land in")

	_ = offlineSignXRPCmd.MarkFlagRequired("to")
	_ = offlineSignXRPCmd.MarkFlagRequired("amount")
	_ = offlineSignXRPCmd.MarkFlagRequired("sequence")
}

// KeyResult is the output of `cryptorpc offline address`.
type KeyResult struct {
	Path    string `json:"path"`
	Address string `json:"address"`
}

// RenderText implements output.TextRenderer.
func (r KeyResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s  %s\n", r.Path, r.Address)
	return err
}

func runOfflineAddress(_ *cobra.Command, _ []string) error {
	switch strings.ToUpper(strings.TrimSpace(offlineChain)) {
	case "ETH":
		key, err := deriveKey()
		if err != nil {
			return err
		}
		defer key.Destroy()
		return cmdCtx.Formatter.Print(KeyResult{Path: key.Path, Address: key.Address})
	case "XRP":
		key, err := deriveXRPKey()
		if err != nil {
			return err
		}
		defer key.Destroy()
		return cmdCtx.Formatter.Print(KeyResult{Path: key.Path, Address: key.Address})
	default:
		return rpcerr.WithSuggestion(
			rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"chain": offlineChain}),
			"offline keys are available for ETH and XRP",
		)
	}
}

func runOfflineSign(_ *cobra.Command, _ []string) error {
	value, ok := new(big.Int).SetString(strings.TrimSpace(offlineValue), 10)
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"value": offlineValue})
	}
	gasPrice, ok := new(big.Int).SetString(strings.TrimSpace(offlineGasPrice), 10)
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"gas_price": offlineGasPrice})
	}

	tx, err := offline.CreateRawTransaction(offline.TxParams{
		Nonce:    offlineNonce,
		To:       offlineTo,
		Value:    value,
		GasPrice: gasPrice,
		GasLimit: offlineGasLimit,
	})
	if err != nil {
		return err
	}

	key, err := deriveKey()
	if err != nil {
		return err
	}
	from := key.Address
	blob, err := offline.Sign(tx, key, big.NewInt(offlineChainID))
	if err != nil {
		return err
	}

	if cmdCtx.Formatter.IsJSON() {
		return cmdCtx.Formatter.Print(map[string]string{
			"from":      from,
			"signed_tx": blob,
		})
	}
	return cmdCtx.Formatter.Print(blob)
}

func runOfflineSignXRP(_ *cobra.Command, _ []string) error {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(offlineDrops), 10)
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"amount": offlineDrops})
	}
	fee, ok := new(big.Int).SetString(strings.TrimSpace(offlineFee), 10)
	if !ok {
		return rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"fee": offlineFee})
	}
	payment := offline.XRPPayment{
		Destination:        offlineTo,
		Amount:             amount,
		Fee:                fee,
		Sequence:           offlineSequence,
		LastLedgerSequence: offlineLastLedger,
	}
	if offlineTag != "" {
		tag, err := strconv.ParseUint(strings.TrimSpace(offlineTag), 10, 32)
		if err != nil {
			return rpcerr.WithCause(rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"tag": offlineTag}), err)
		}
		v := uint32(tag)
		payment.DestinationTag = &v
	}

	key, err := deriveXRPKey()
	if err != nil {
		return err
	}
	signed, err := offline.SignXRPPayment(payment, key)
	if err != nil {
		return err
	}
	if cmdCtx.Formatter.IsJSON() {
		return cmdCtx.Formatter.Print(signed)
	}
	return cmdCtx.Formatter.Print(signed.TxBlob)
}

// deriveKey derives the Ethereum key at --account/--index.
func deriveKey() (*offline.Key, error) {
	mnemonic, passphrase, err := readMnemonic()
	if err != nil {
		return nil, err
	}
	return offline.DerivePrivateKey(mnemonic, passphrase, offlineAccount, offlineIndex)
}

func deriveXRPKey() (*offline.XRPKey, error) {
	mnemonic, passphrase, err := readMnemonic()
	if err != nil {
		return nil, err
	}
	return offline.DeriveXRPKey(mnemonic, passphrase, offlineAccount, offlineIndex)
}

// readMnemonic reads the mnemonic from the environment or a prompt, plus the
// passphrase when --passphrase is set.
func readMnemonic() (string, string, error) {
	mnemonic := os.Getenv(config.EnvMnemonic)
	if mnemonic == "" {
		if !isTerminalFn() {
			return "", "", rpcerr.WithSuggestion(
				rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "no mnemonic provided"}),
				fmt.Sprintf("set %s or run from a terminal", config.EnvMnemonic),
			)
		}
		raw, err := promptPasswordFn("Enter mnemonic: ")
		if err != nil {
			return "", "", err
		}
		mnemonic = string(raw)
		clear(raw)
	}
	if err := offline.ValidateMnemonic(mnemonic); err != nil {
		return "", "", err
	}

	var passphrase string
	if offlinePassphrase {
		raw, err := promptPasswordFn("Enter passphrase: ")
		if err != nil {
			return "", "", err
		}
		passphrase = string(raw)
		clear(raw)
	}
	return mnemonic, passphrase, nil
}
