package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Config configures exactly one adapter. Adapters keep their own copy.
type Config struct {
	Chain     ID      `yaml:"chain" json:"chain" validate:"required,oneof=XRP ETH BTC"`
	Currency  string  `yaml:"currency" json:"currency" validate:"required,alphanum,max=16"`
	Protocol  string  `yaml:"protocol" json:"protocol" validate:"required,oneof=ws wss http https"`
	Host      string  `yaml:"host" json:"host" validate:"required"`
	Port      int     `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	Path      string  `yaml:"path,omitempty" json:"path,omitempty"`
	Network   string  `yaml:"network,omitempty" json:"network,omitempty" validate:"omitempty,oneof=mainnet testnet regtest"`
	Address   string  `yaml:"address,omitempty" json:"address,omitempty"`
	Username  string  `yaml:"username,omitempty" json:"-"`
	Password  string  `yaml:"password,omitempty" json:"-"`
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst,omitempty" json:"rate_burst,omitempty" validate:"gte=0"`
}

// Endpoint renders the transport URL for the config.
func (c Config) Endpoint() string {
	host := c.Host
	if c.Port > 0 {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	path := c.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", c.Protocol, host, path)
}

// DialEndpoint is Endpoint with the node credentials as URL userinfo.
// It is for transports only and must never be logged.
func (c Config) DialEndpoint() string {
	endpoint := c.Endpoint()
	if c.Username == "" {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.User = url.UserPassword(c.Username, c.Password)
	return u.String()
}

// BlockID addresses a block by hash or by height.
type BlockID struct {
	Hash   string
	Height *uint64
}

// ByHash addresses a block by its hash.
func ByHash(hash string) BlockID {
	return BlockID{Hash: hash}
}

// ByHeight addresses a block by its height.
func ByHeight(height uint64) BlockID {
	return BlockID{Height: &height}
}

// IsZero returns true when neither hash nor height is set.
func (b BlockID) IsZero() bool {
	return b.Hash == "" && b.Height == nil
}

// String renders the identifier for logs and error details.
func (b BlockID) String() string {
	if b.Height != nil {
		return strconv.FormatUint(*b.Height, 10)
	}
	return b.Hash
}

// ParseBlockID treats an all-digit string as a height and anything else as a hash.
func ParseBlockID(s string) BlockID {
	s = strings.TrimSpace(s)
	if h, err := strconv.ParseUint(s, 10, 64); err == nil && len(s) < 20 {
		return ByHeight(h)
	}
	return ByHash(s)
}

// Block is the normalized block shape.
// Raw carries the adapter-native envelope verbatim.
type Block struct {
	Hash              string          `json:"hash"`
	Height            uint64          `json:"height"`
	ParentHash        string          `json:"parent_hash"`
	Accepted          bool            `json:"accepted"`
	Validated         bool            `json:"validated"`
	TransactionHashes []string        `json:"transactions"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// Transaction is the normalized transaction shape.
// BlockHeight is nil until the transaction is included in a block.
type Transaction struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      string          `json:"amount"`
	Fee         string          `json:"fee"`
	Sequence    uint64          `json:"sequence"`
	BlockHeight *uint64         `json:"block_height"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Tip is the latest known block header.
type Tip struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// Confirmations returns the number of blocks at or above txHeight, counting
// the containing block. Unconfirmed transactions and heights above the tip yield 0.
func Confirmations(tipHeight uint64, txHeight *uint64) uint64 {
	if txHeight == nil || *txHeight > tipHeight {
		return 0
	}
	return tipHeight - *txHeight + 1
}

// Credential is signing material scoped to one credential session.
// Secret is owned by the session and zeroed when it closes.
type Credential struct {
	Secret        []byte
	SourceAddress string
}

// PaymentRequest is one payment in a send or batch send.
// Amount is in the chain's smallest unit and is never rescaled.
type PaymentRequest struct {
	Address string   `json:"address"`
	Amount  *big.Int `json:"amount"`

	// Invalid is set when the request could not be parsed. A batch fails
	// such a payment in place without contacting the node.
	Invalid error `json:"-"`
}

// PaymentResult is the outcome of one payment. Exactly one of TxID and Err is set.
type PaymentResult struct {
	Address string
	Amount  *big.Int
	TxID    string
	Err     error
}

// OK returns true if the payment was submitted.
func (r PaymentResult) OK() bool {
	return r.Err == nil
}

// MarshalJSON renders txid and error as null when absent.
func (r PaymentResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Address string  `json:"address"`
		Amount  string  `json:"amount"`
		TxID    *string `json:"txid"`
		Error   *string `json:"error"`
	}{
		Address: r.Address,
		Amount:  amountString(r.Amount),
	}
	if r.Err != nil {
		msg := r.Err.Error()
		out.Error = &msg
	} else {
		txid := r.TxID
		out.TxID = &txid
	}
	return json.Marshal(out)
}

func amountString(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return a.String()
}
