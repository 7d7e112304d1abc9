package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cryptorpc/internal/chain"
)

const (
	genesisAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	genesisSecret  = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testDest       = "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu"
)

type simTx struct {
	hash        string
	account     string
	destination string
	amount      string
	sequence    int
	ledger      int // 0 while pending
}

type simLedger struct {
	index  int
	hash   string
	parent string
	txs    []string
}

// standalone is an in-process rippled in standalone mode: ledgers close only
// when accept is called, and submitted payments wait in the open ledger.
type standalone struct {
	mu       sync.Mutex
	ledgers  []simLedger
	txs      map[string]*simTx
	pending  []string
	sequence int
	commands map[string]int
}

func newStandalone(t *testing.T) (*standalone, string) {
	t.Helper()
	s := &standalone{
		txs:      make(map[string]*simTx),
		commands: make(map[string]int),
		sequence: 1,
	}
	s.ledgers = append(s.ledgers, simLedger{index: 2, hash: ledgerHash(2), parent: ledgerHash(1)})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var cmd map[string]any
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			reply := s.handle(cmd)
			reply["id"] = cmd["id"]
			reply["type"] = "response"
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func ledgerHash(i int) string {
	sum := sha256.Sum256([]byte("ledger" + strconv.Itoa(i)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// config returns an adapter config pointing at the simulator.
func (s *standalone) config(url string) chain.Config {
	host := strings.TrimPrefix(url, "ws://")
	h, p, _ := strings.Cut(host, ":")
	port, _ := strconv.Atoi(p)
	return chain.Config{Chain: chain.XRP, Currency: "XRP", Protocol: "ws", Host: h, Port: port, Address: genesisAccount}
}

// accept closes the open ledger, like rippled's ledger_accept.
func (s *standalone) accept() {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.ledgers[len(s.ledgers)-1]
	next := simLedger{index: last.index + 1, hash: ledgerHash(last.index + 1), parent: last.hash, txs: s.pending}
	for _, h := range s.pending {
		s.txs[h].ledger = next.index
	}
	s.pending = nil
	s.ledgers = append(s.ledgers, next)
}

func (s *standalone) count(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[command]
}

func (s *standalone) handle(cmd map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	command, _ := cmd["command"].(string)
	s.commands[command]++

	switch command {
	case "ledger":
		return s.ledger(cmd)
	case "tx":
		tx, ok := s.txs[fmt.Sprint(cmd["transaction"])]
		if !ok {
			return errorReply("txnNotFound", "Transaction not found.")
		}
		result := map[string]any{
			"hash":            tx.hash,
			"Account":         tx.account,
			"Destination":     tx.destination,
			"Amount":          tx.amount,
			"Fee":             "12",
			"Sequence":        tx.sequence,
			"TransactionType": "Payment",
			"validated":       tx.ledger != 0,
		}
		if tx.ledger != 0 {
			result["ledger_index"] = tx.ledger
		}
		return success(result)
	case "account_info":
		return success(map[string]any{
			"account_data": map[string]any{"Account": cmd["account"], "Balance": "100000000000"},
			"validated":    true,
		})
	case "server_info":
		return success(map[string]any{
			"info": map[string]any{
				"load_factor":      1,
				"validated_ledger": map[string]any{"base_fee_xrp": 0.00001, "seq": s.ledgers[len(s.ledgers)-1].index},
			},
		})
	case "submit":
		if cmd["secret"] != genesisSecret {
			return errorReply("badSecret", "Secret does not match account.")
		}
		txJSON, _ := cmd["tx_json"].(map[string]any)
		sum := sha256.Sum256([]byte(fmt.Sprintf("%v%d", txJSON, s.sequence)))
		tx := &simTx{
			hash:        strings.ToUpper(hex.EncodeToString(sum[:])),
			account:     fmt.Sprint(txJSON["Account"]),
			destination: fmt.Sprint(txJSON["Destination"]),
			amount:      fmt.Sprint(txJSON["Amount"]),
			sequence:    s.sequence,
		}
		s.sequence++
		s.txs[tx.hash] = tx
		s.pending = append(s.pending, tx.hash)
		return success(map[string]any{
			"engine_result":         "tesSUCCESS",
			"engine_result_message": "The transaction was applied. Only final in a validated ledger.",
			"tx_json":               map[string]any{"hash": tx.hash, "Account": tx.account, "Destination": tx.destination, "Amount": tx.amount},
		})
	default:
		return errorReply("unknownCmd", "Unknown method.")
	}
}

func (s *standalone) ledger(cmd map[string]any) map[string]any {
	var l *simLedger
	switch {
	case cmd["ledger_hash"] != nil:
		for i := range s.ledgers {
			if s.ledgers[i].hash == cmd["ledger_hash"] {
				l = &s.ledgers[i]
			}
		}
	case cmd["ledger_index"] == "validated":
		l = &s.ledgers[len(s.ledgers)-1]
	default:
		idx, _ := cmd["ledger_index"].(float64)
		for i := range s.ledgers {
			if s.ledgers[i].index == int(idx) {
				l = &s.ledgers[i]
			}
		}
	}
	if l == nil {
		return errorReply("lgrNotFound", "ledgerNotFound")
	}

	txs := l.txs
	if txs == nil {
		txs = []string{}
	}
	return success(map[string]any{
		"ledger": map[string]any{
			"accepted":     true,
			"closed":       true,
			"ledger_hash":  l.hash,
			"ledger_index": strconv.Itoa(l.index),
			"parent_hash":  l.parent,
			"transactions": txs,
		},
		"ledger_hash":  l.hash,
		"ledger_index": l.index,
		"validated":    true,
	})
}

func success(result map[string]any) map[string]any {
	result["status"] = "success"
	return map[string]any{"status": "success", "result": result}
}

func errorReply(name, message string) map[string]any {
	return map[string]any{
		"status":        "error",
		"error":         name,
		"error_message": message,
	}
}

func requireTip(t *testing.T, s *standalone) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.ledgers)
	return s.ledgers[len(s.ledgers)-1].index
}
