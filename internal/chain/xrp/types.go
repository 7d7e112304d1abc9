package xrp

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// ledgerIndex decodes ledger indexes that rippled renders either as
// numbers or as decimal strings depending on the command.
type ledgerIndex uint64

func (l *ledgerIndex) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*l = ledgerIndex(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*l = ledgerIndex(n)
	return nil
}

// ledgerResult is the result of the ledger command.
type ledgerResult struct {
	Ledger struct {
		Accepted     bool        `json:"accepted"`
		Closed       bool        `json:"closed"`
		LedgerHash   string      `json:"ledger_hash"`
		LedgerIndex  ledgerIndex `json:"ledger_index"`
		ParentHash   string      `json:"parent_hash"`
		Transactions []string    `json:"transactions"`
	} `json:"ledger"`
	LedgerHash  string       `json:"ledger_hash"`
	LedgerIndex *ledgerIndex `json:"ledger_index"`
	Validated   bool         `json:"validated"`
}

// txResult is the result of the tx command.
type txResult struct {
	Hash        string          `json:"hash"`
	Account     string          `json:"Account"`
	Destination string          `json:"Destination"`
	Amount      json.RawMessage `json:"Amount"`
	Fee         string          `json:"Fee"`
	Sequence    uint64          `json:"Sequence"`
	LedgerIndex *ledgerIndex    `json:"ledger_index"`
	Validated   bool            `json:"validated"`
}

// amount renders XRP drops verbatim and issued currencies as "value currency".
func (t txResult) amount() string {
	var drops string
	if err := json.Unmarshal(t.Amount, &drops); err == nil {
		return drops
	}
	var issued struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(t.Amount, &issued); err == nil && issued.Value != "" {
		return issued.Value + " " + issued.Currency
	}
	return ""
}

// accountInfoResult is the result of the account_info command.
type accountInfoResult struct {
	AccountData struct {
		Balance string `json:"Balance"`
	} `json:"account_data"`
}

// feeLedger is the ledger summary server_info reports fees against.
type feeLedger struct {
	BaseFeeXRP decimal.Decimal `json:"base_fee_xrp"`
}

// serverInfoResult is the result of the server_info command.
type serverInfoResult struct {
	Info struct {
		LoadFactor      decimal.Decimal `json:"load_factor"`
		ValidatedLedger *feeLedger      `json:"validated_ledger"`
		ClosedLedger    *feeLedger      `json:"closed_ledger"`
	} `json:"info"`
}

// submitResult is the result of the submit command in either mode.
type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// payment is the tx_json of a sign-and-submit Payment.
type payment struct {
	TransactionType string `json:"TransactionType"`
	Account         string `json:"Account"`
	Destination     string `json:"Destination"`
	Amount          string `json:"Amount"`
}
