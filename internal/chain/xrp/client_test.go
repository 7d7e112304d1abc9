package xrp

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cryptorpc/internal/chain"
	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const (
	testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testDest    = "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu"
	testSecret  = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testTxHash  = "E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7"
	testLedger  = "4109C6F2045FC7EFF4CDE8F9905D19C28820D86304080FF886B299F0206E42B5"
	testParent  = "E6DB7365949BF9814D76BCC730B01818EB9136A89DB224F3F9F5AAE4569D758E"
)

// call is one recorded request.
type call struct {
	Method string
	Params map[string]any
}

// fakeNode scripts rippled responses per command and records every request.
type fakeNode struct {
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(params map[string]any) (string, error)
}

func newFakeNode() *fakeNode {
	return &fakeNode{handlers: make(map[string]func(map[string]any) (string, error))}
}

func (f *fakeNode) on(method string, h func(params map[string]any) (string, error)) {
	f.handlers[method] = h
}

func (f *fakeNode) Request(_ context.Context, method string, params any) (json.RawMessage, error) {
	var p map[string]any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: method, Params: p})
	h := f.handlers[method]
	f.mu.Unlock()

	if h == nil {
		return nil, &transport.NodeError{Name: "unknownCmd", Message: "Unknown method."}
	}
	body, err := h(p)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (f *fakeNode) Close() error { return nil }

func (f *fakeNode) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeNode) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	c, err := New(chain.Config{Chain: chain.XRP, Currency: "XRP", Address: testAccount}, node)
	require.NoError(t, err)
	return c
}

func fixedResponse(body string) func(map[string]any) (string, error) {
	return func(map[string]any) (string, error) { return body, nil }
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(chain.Config{Currency: "XRP"}, nil)
	require.ErrorIs(t, err, rpcerr.ErrInvalidInput)

	_, err = New(chain.Config{Currency: "XRP", Address: "funkyColdMedina"}, newFakeNode())
	require.ErrorIs(t, err, rpcerr.ErrConfigInvalid)

	c, err := New(chain.Config{Currency: "XRP"}, newFakeNode())
	require.NoError(t, err)
	assert.Equal(t, chain.XRP, c.ID())
	assert.Equal(t, "XRP", c.Currency())
}

func TestGetBlock(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("ledger", fixedResponse(`{
		"ledger": {
			"accepted": true,
			"closed": true,
			"ledger_hash": "`+testLedger+`",
			"ledger_index": "7",
			"parent_hash": "`+testParent+`",
			"transactions": []
		},
		"ledger_hash": "`+testLedger+`",
		"ledger_index": 7,
		"validated": true,
		"status": "success"
	}`))
	c := newTestClient(t, node)

	block, err := c.GetBlock(context.Background(), chain.ByHash(testLedger))
	require.NoError(t, err)
	assert.Equal(t, testLedger, block.Hash)
	assert.Equal(t, uint64(7), block.Height)
	assert.Equal(t, testParent, block.ParentHash)
	assert.True(t, block.Accepted)
	assert.True(t, block.Validated)
	assert.Equal(t, []string{}, block.TransactionHashes)
	assert.Contains(t, string(block.Raw), `"ledger_index": "7"`)

	req := node.lastCall()
	assert.Equal(t, testLedger, req.Params["ledger_hash"])
	assert.Equal(t, true, req.Params["transactions"])

	_, err = c.GetBlock(context.Background(), chain.ByHeight(7))
	require.NoError(t, err)
	assert.InDelta(t, 7.0, node.lastCall().Params["ledger_index"], 0.0001)
	assert.Equal(t, 2, node.callCount())
}

func TestGetBlockErrors(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("ledger", func(map[string]any) (string, error) {
		return "", &transport.NodeError{Name: "lgrNotFound", Code: 21, Message: "ledgerNotFound"}
	})
	c := newTestClient(t, node)

	_, err := c.GetBlock(context.Background(), chain.ByHeight(999999))
	require.ErrorIs(t, err, rpcerr.ErrNotFound)

	_, err = c.GetBlock(context.Background(), chain.BlockID{})
	require.ErrorIs(t, err, rpcerr.ErrInvalidInput)
	assert.Equal(t, 1, node.callCount())
}

func TestGetTip(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("ledger", func(p map[string]any) (string, error) {
		assert.Equal(t, "validated", p["ledger_index"])
		return `{"ledger":{"ledger_hash":"` + testLedger + `","ledger_index":"12"},"ledger_hash":"` + testLedger + `","ledger_index":12,"validated":true}`, nil
	})
	c := newTestClient(t, node)

	tip, err := c.GetTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testLedger, tip.Hash)
	assert.Len(t, tip.Hash, 64)
	assert.Equal(t, uint64(12), tip.Height)
}

func TestGetTransaction(t *testing.T) {
	t.Parallel()

	t.Run("validated", func(t *testing.T) {
		t.Parallel()
		node := newFakeNode()
		node.on("tx", fixedResponse(`{
			"Account": "`+testAccount+`",
			"Amount": "10000",
			"Destination": "`+testDest+`",
			"Fee": "12",
			"Flags": 2147483648,
			"LastLedgerSequence": 20,
			"Sequence": 3,
			"TransactionType": "Payment",
			"hash": "`+testTxHash+`",
			"ledger_index": 8,
			"validated": true
		}`))
		c := newTestClient(t, node)

		tx, err := c.GetTransaction(context.Background(), testTxHash)
		require.NoError(t, err)
		assert.Equal(t, testTxHash, tx.Hash)
		assert.Equal(t, testAccount, tx.From)
		assert.Equal(t, testDest, tx.To)
		assert.Equal(t, "10000", tx.Amount)
		assert.Equal(t, "12", tx.Fee)
		assert.Equal(t, uint64(3), tx.Sequence)
		require.NotNil(t, tx.BlockHeight)
		assert.Equal(t, uint64(8), *tx.BlockHeight)
		assert.Contains(t, string(tx.Raw), "LastLedgerSequence")
	})

	t.Run("pending", func(t *testing.T) {
		t.Parallel()
		node := newFakeNode()
		node.on("tx", fixedResponse(`{"Account":"`+testAccount+`","Amount":{"currency":"USD","value":"5","issuer":"`+testDest+`"},"hash":"`+testTxHash+`","validated":false}`))
		c := newTestClient(t, node)

		tx, err := c.GetTransaction(context.Background(), testTxHash)
		require.NoError(t, err)
		assert.Nil(t, tx.BlockHeight)
		assert.Equal(t, "5 USD", tx.Amount)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		node := newFakeNode()
		node.on("tx", func(map[string]any) (string, error) {
			return "", &transport.NodeError{Name: "txnNotFound", Code: 29, Message: "Transaction not found."}
		})
		c := newTestClient(t, node)

		_, err := c.GetTransaction(context.Background(), testTxHash)
		require.ErrorIs(t, err, rpcerr.ErrNotFound)
		assert.Equal(t, rpcerr.ExitNotFound, rpcerr.ExitCode(err))
	})
}

func TestGetBalance(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("account_info", func(p map[string]any) (string, error) {
		assert.Equal(t, testAccount, p["account"])
		return `{"account_data":{"Account":"` + testAccount + `","Balance":"100000000000","Sequence":1},"validated":true}`, nil
	})
	c := newTestClient(t, node)

	balance, err := c.GetBalance(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100000000000), balance)

	_, err = c.GetBalance(context.Background(), "NOTANADDRESS")
	require.ErrorIs(t, err, rpcerr.ErrInvalidAddress)
	assert.Equal(t, 1, node.callCount())
}

func TestEstimateFee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"validated ledger",
			`{"info":{"load_factor":1,"validated_ledger":{"base_fee_xrp":0.00001,"seq":7}}}`,
			"0.000012",
		},
		{
			"standalone closed ledger",
			`{"info":{"load_factor":1,"closed_ledger":{"base_fee_xrp":0.00001}}}`,
			"0.000012",
		},
		{
			"under load",
			`{"info":{"load_factor":256,"validated_ledger":{"base_fee_xrp":0.00001}}}`,
			"0.003072",
		},
		{
			"missing load factor",
			`{"info":{"validated_ledger":{"base_fee_xrp":0.00001}}}`,
			"0.000012",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			node := newFakeNode()
			node.on("server_info", fixedResponse(tt.body))

			fee, err := newTestClient(t, node).EstimateFee(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, fee)
		})
	}
}

func TestUnlockLock(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	c := newTestClient(t, node)

	require.NoError(t, c.Unlock(context.Background(), &chain.Credential{Secret: []byte(testSecret)}))
	require.NoError(t, c.Lock(context.Background(), &chain.Credential{Secret: []byte(testSecret)}))

	err := c.Unlock(context.Background(), &chain.Credential{Secret: []byte("not-a-seed")})
	require.ErrorIs(t, err, rpcerr.ErrCredential)
	assert.Equal(t, rpcerr.ExitAuth, rpcerr.ExitCode(err))

	assert.Equal(t, 0, node.callCount())
}

func TestSend(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("submit", func(p map[string]any) (string, error) {
		assert.Equal(t, testSecret, p["secret"])
		txJSON, ok := p["tx_json"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Payment", txJSON["TransactionType"])
		assert.Equal(t, testAccount, txJSON["Account"])
		assert.Equal(t, testDest, txJSON["Destination"])
		assert.Equal(t, "10000", txJSON["Amount"])
		return `{"engine_result":"tesSUCCESS","engine_result_code":0,"engine_result_message":"The transaction was applied.","tx_blob":"1200","tx_json":{"hash":"` + testTxHash + `"}}`, nil
	})
	c := newTestClient(t, node)

	txid, err := c.Send(context.Background(), testDest, big.NewInt(10000), &chain.Credential{Secret: []byte(testSecret)})
	require.NoError(t, err)
	assert.Equal(t, testTxHash, txid)
	assert.Len(t, txid, 64)
}

func TestSendInvalidDestinationMakesNoCall(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	c := newTestClient(t, node)

	_, err := c.Send(context.Background(), "funkyColdMedina", big.NewInt(1), &chain.Credential{Secret: []byte(testSecret)})
	require.ErrorIs(t, err, rpcerr.ErrInvalidAddress)
	assert.Equal(t, 0, node.callCount())

	_, err = c.Send(context.Background(), testDest, big.NewInt(0), &chain.Credential{Secret: []byte(testSecret)})
	require.ErrorIs(t, err, rpcerr.ErrInvalidAmount)
	assert.Equal(t, 0, node.callCount())
}

func TestSendRejected(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("submit", fixedResponse(`{"engine_result":"tecNO_DST_INSUF_XRP","engine_result_code":125,"engine_result_message":"Destination does not exist. Too little XRP sent to create it.","tx_json":{"hash":"`+testTxHash+`"}}`))
	c := newTestClient(t, node)

	_, err := c.Send(context.Background(), testDest, big.NewInt(1), &chain.Credential{Secret: []byte(testSecret)})
	require.ErrorIs(t, err, rpcerr.ErrSubmissionRejected)
	assert.Contains(t, err.Error(), "Destination does not exist")

	var re *rpcerr.RPCError
	require.True(t, rpcerr.As(err, &re))
	assert.Equal(t, "tecNO_DST_INSUF_XRP", re.Details["engine_result"])
}

func TestSendQueuedIsAccepted(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("submit", fixedResponse(`{"engine_result":"terQUEUED","tx_json":{"hash":"`+testTxHash+`"}}`))

	txid, err := newTestClient(t, node).Send(context.Background(), testDest, big.NewInt(1), &chain.Credential{Secret: []byte(testSecret)})
	require.NoError(t, err)
	assert.Equal(t, testTxHash, txid)
}

func TestSendBadSecretAtNode(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("submit", func(map[string]any) (string, error) {
		return "", &transport.NodeError{Name: "badSecret", Message: "Secret does not match account."}
	})

	_, err := newTestClient(t, node).Send(context.Background(), testDest, big.NewInt(1), &chain.Credential{Secret: []byte(testSecret)})
	require.ErrorIs(t, err, rpcerr.ErrCredential)
}

func TestSubmitSignedTransaction(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	node.on("submit", func(p map[string]any) (string, error) {
		assert.Equal(t, "12000022800000002400000003", p["tx_blob"])
		assert.NotContains(t, p, "secret")
		return `{"engine_result":"tesSUCCESS","tx_json":{"hash":"` + testTxHash + `"}}`, nil
	})
	c := newTestClient(t, node)

	txid, err := c.SubmitSignedTransaction(context.Background(), "12000022800000002400000003")
	require.NoError(t, err)
	assert.Equal(t, testTxHash, txid)

	_, err = c.SubmitSignedTransaction(context.Background(), "")
	require.ErrorIs(t, err, rpcerr.ErrInvalidInput)
	assert.Equal(t, 1, node.callCount())
}

func TestValidateAddressMakesNoCall(t *testing.T) {
	t.Parallel()

	node := newFakeNode()
	c := newTestClient(t, node)

	assert.True(t, c.ValidateAddress(testDest))
	assert.False(t, c.ValidateAddress("NOTANADDRESS"))
	assert.Equal(t, 0, node.callCount())
}

// TestOverHTTP drives the adapter through the real rippled JSON-RPC envelope.
func TestOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "account_info":
			_, _ = w.Write([]byte(`{"result":{"account_data":{"Balance":"100000000000"},"status":"success","validated":true}}`))
		default:
			_, _ = w.Write([]byte(`{"result":{"error":"unknownCmd","error_code":32,"error_message":"Unknown method.","status":"error"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	tr := transport.NewHTTPClient(srv.URL, &transport.HTTPOptions{Dialect: transport.DialectRippled})
	c, err := New(chain.Config{Chain: chain.XRP, Currency: "XRP"}, tr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	balance, err := c.GetBalance(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, "100000000000", balance.String())

	_, err = c.EstimateFee(context.Background())
	require.Error(t, err)
	ne, ok := transport.AsNodeError(err)
	require.True(t, ok)
	assert.Equal(t, "unknownCmd", ne.Name)
}
