package chain

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// ParseBaseUnits parses an amount already expressed in the chain's smallest
// unit (drops, wei, satoshis). The value must be a positive integer.
func ParseBaseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.ErrInvalidAmount, err)
	}
	if !d.IsInteger() || !d.IsPositive() {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "must be a positive integer in base units",
		})
	}
	return d.BigInt(), nil
}

// RawAmount is an amount as it arrives in JSON, either a number (10000) or a
// string ("10000"). It is parsed later so a bad value can fail one payment.
type RawAmount string

// UnmarshalJSON accepts a JSON string or number.
func (a *RawAmount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = RawAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = RawAmount(n.String())
	return nil
}

// NewPaymentRequest builds a request from a base-unit amount string. A bad
// amount does not fail the call: it is kept on the request as Invalid so a
// batch can fail that payment in place.
func NewPaymentRequest(address, amount string) PaymentRequest {
	address = strings.TrimSpace(address)
	value, err := ParseBaseUnits(amount)
	if err != nil {
		return PaymentRequest{
			Address: address,
			Invalid: rpcerr.WithDetails(err, map[string]string{
				"address": address,
				"amount":  amount,
				"reason":  "must be a positive integer in base units",
			}),
		}
	}
	return PaymentRequest{Address: address, Amount: value}
}
