package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/config"
	"github.com/mrz1836/cryptorpc/internal/events"
	"github.com/mrz1836/cryptorpc/internal/metrics"
	"github.com/mrz1836/cryptorpc/internal/offline"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const (
	testTxID        = "E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7"
	testGenesis     = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testGenesisSeed = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testDest        = "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu"
	testMnemonic    = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

// stubFacade answers for XRP only, publishes batch events like the real
// dispatcher and records what it was asked.
type stubFacade struct {
	mu         sync.Mutex
	bus        *events.Bus
	secrets    []string
	batch      []chain.PaymentRequest
	submitted  string
	closed     bool
	recorder   metrics.Recorder
	blockAsked chain.BlockID
	rpcMethod  string
	rpcParams  any
}

func newStubFacade() *stubFacade {
	return &stubFacade{bus: events.NewBus()}
}

func (s *stubFacade) check(currency string) error {
	if currency != "XRP" {
		return rpcerr.WithDetails(rpcerr.ErrUnknownCurrency, map[string]string{"currency": currency})
	}
	return nil
}

func (s *stubFacade) GetTip(_ context.Context, currency string) (*chain.Tip, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	return &chain.Tip{Hash: testTxID, Height: 42}, nil
}

func (s *stubFacade) GetBestBlockHash(ctx context.Context, currency string) (string, error) {
	tip, err := s.GetTip(ctx, currency)
	if err != nil {
		return "", err
	}
	return tip.Hash, nil
}

func (s *stubFacade) GetBlock(_ context.Context, currency string, id chain.BlockID) (*chain.Block, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blockAsked = id
	s.mu.Unlock()
	return &chain.Block{Hash: testTxID, Height: 42, Accepted: true, Validated: true, TransactionHashes: []string{testTxID}}, nil
}

func (s *stubFacade) GetTransaction(_ context.Context, currency, txid string) (*chain.Transaction, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	if txid != testTxID {
		return nil, rpcerr.WithDetails(rpcerr.ErrNotFound, map[string]string{"txid": txid})
	}
	height := uint64(40)
	return &chain.Transaction{Hash: txid, From: testGenesis, To: testDest, Amount: "10000", Fee: "12", BlockHeight: &height}, nil
}

func (s *stubFacade) GetConfirmations(_ context.Context, currency, txid string) (uint64, error) {
	if err := s.check(currency); err != nil {
		return 0, err
	}
	if txid != testTxID {
		return 0, nil
	}
	return chain.Confirmations(42, ptr(uint64(40))), nil
}

func (s *stubFacade) GetBalance(_ context.Context, currency, address string) (*big.Int, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(address, "r") {
		return nil, rpcerr.ErrInvalidAddress
	}
	return big.NewInt(100000000000), nil
}

func (s *stubFacade) ValidateAddress(currency, address string) (bool, error) {
	if err := s.check(currency); err != nil {
		return false, err
	}
	return strings.HasPrefix(address, "r") && len(address) > 24, nil
}

func (s *stubFacade) EstimateFee(_ context.Context, currency string) (string, error) {
	return "0.000012", s.check(currency)
}

func (s *stubFacade) UnlockAndSendToAddress(_ context.Context, currency string, _ chain.PaymentRequest, secret []byte, _ string) (string, error) {
	if err := s.check(currency); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.secrets = append(s.secrets, string(secret))
	s.mu.Unlock()
	if string(secret) != testGenesisSeed {
		return "", rpcerr.ErrCredential
	}
	return testTxID, nil
}

func (s *stubFacade) UnlockAndSendToAddressMany(_ context.Context, currency string, payments []chain.PaymentRequest, secret []byte, _ string) ([]chain.PaymentResult, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.secrets = append(s.secrets, string(secret))
	s.batch = payments
	s.mu.Unlock()
	if string(secret) != testGenesisSeed {
		return nil, rpcerr.ErrCredential
	}

	out := make([]chain.PaymentResult, len(payments))
	for i, p := range payments {
		ev := events.Event{Kind: events.KindSuccess, Currency: currency, Index: i, Address: p.Address, Amount: p.Amount}
		out[i] = chain.PaymentResult{Address: p.Address, Amount: p.Amount, TxID: testTxID}
		if p.Invalid != nil {
			out[i] = chain.PaymentResult{Address: p.Address, Amount: p.Amount, Err: p.Invalid}
			ev.Kind, ev.Err = events.KindFailure, out[i].Err
		} else if ok, _ := s.ValidateAddress(currency, p.Address); !ok {
			out[i] = chain.PaymentResult{Address: p.Address, Amount: p.Amount, Err: rpcerr.ErrInvalidAddress}
			ev.Kind, ev.Err = events.KindFailure, out[i].Err
		} else {
			ev.TxID = testTxID
		}
		s.bus.Publish(ev)
	}
	return out, nil
}

func (s *stubFacade) SubmitSignedTransaction(_ context.Context, currency, signedTx string) (string, error) {
	if err := s.check(currency); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.submitted = signedTx
	s.mu.Unlock()
	return testTxID, nil
}

func (s *stubFacade) Request(_ context.Context, currency, method string, params any) (json.RawMessage, error) {
	if err := s.check(currency); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.rpcMethod, s.rpcParams = method, params
	s.mu.Unlock()
	return json.RawMessage(`{"info":{"complete_ledgers":"1-42"}}`), nil
}

func (s *stubFacade) Currencies() []string { return []string{"XRP"} }

func (s *stubFacade) Events(currency string) (<-chan events.Event, func(), error) {
	if err := s.check(currency); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.bus.Subscribe(0)
	return ch, cancel, nil
}

func (s *stubFacade) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func ptr[T any](v T) *T { return &v }

// cliResult is what one CLI invocation produced.
type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command against stub with an isolated home and
// restores every global afterwards. Stdin is not a terminal. Not safe for
// t.Parallel.
func runCLI(t *testing.T, stub *stubFacade, args ...string) cliResult {
	t.Helper()
	return runCLIWith(t, stub, false, args...)
}

// runCLIWith is runCLI with control over whether stdin looks like a terminal.
func runCLIWith(t *testing.T, stub *stubFacade, terminal bool, args ...string) cliResult {
	t.Helper()
	restore := saveGlobals(t)
	t.Cleanup(restore)

	home := t.TempDir()
	homeDir = home
	configFile = ""
	outputFormat = "auto"
	currencyFlag = ""
	verbose = false
	sendSecret, sendSource, sendYes, sendManyFile = "", "", false, ""
	serveListen, serveMetrics = "", false
	configForce = false
	offlineAccount, offlineIndex, offlinePassphrase = 0, 0, false
	offlineTo, offlineValue, offlineNonce, offlineGasPrice = "", "0", 0, ""
	offlineGasLimit, offlineChainID = offline.DefaultGasLimit, 1
	offlineChain, offlineDrops, offlineFee, offlineTag = "ETH", "", "12", ""
	offlineSequence, offlineLastLedger = 0, 0

	origOpener := facadeOpener
	facadeOpener = func(_ *config.Config, _ *zap.Logger, rec metrics.Recorder) (Facade, error) {
		if stub == nil {
			return nil, rpcerr.WithCause(rpcerr.ErrTransport, context.DeadlineExceeded)
		}
		stub.recorder = rec
		return stub, nil
	}
	origTerminal := isTerminalFn
	isTerminalFn = func() bool { return terminal }
	t.Cleanup(func() {
		facadeOpener = origOpener
		isTerminalFn = origTerminal
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	_, err := rootCmd.ExecuteC()
	if err != nil {
		cleanup()
	}
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeHomeConfig saves cfg as the config file under a fresh home and
// returns the config path.
func writeHomeConfig(t *testing.T, c *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(c, path))
	return path
}
