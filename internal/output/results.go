package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrz1836/cryptorpc/internal/chain"
)

// BlockView renders a block.
type BlockView struct {
	*chain.Block
}

// RenderText implements TextRenderer.
func (v BlockView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Hash:         %s\nHeight:       %d\nParent:       %s\nAccepted:     %t\nValidated:    %t\nTransactions: %d\n",
		v.Hash, v.Height, v.ParentHash, v.Accepted, v.Validated, len(v.TransactionHashes))
	if err != nil {
		return err
	}
	for _, h := range v.TransactionHashes {
		if _, err := fmt.Fprintf(w, "  %s\n", h); err != nil {
			return err
		}
	}
	return nil
}

// TransactionView renders a transaction.
type TransactionView struct {
	*chain.Transaction
}

// RenderText implements TextRenderer.
func (v TransactionView) RenderText(w io.Writer) error {
	height := "pending"
	if v.BlockHeight != nil {
		height = strconv.FormatUint(*v.BlockHeight, 10)
	}
	_, err := fmt.Fprintf(w, "Hash:     %s\nFrom:     %s\nTo:       %s\nAmount:   %s\nFee:      %s\nSequence: %d\nBlock:    %s\n",
		v.Hash, v.From, v.To, v.Amount, v.Fee, v.Sequence, height)
	return err
}

// Payments renders batch results, one row per payment in input order.
type Payments []chain.PaymentResult

// Failed returns how many payments carry an error.
func (p Payments) Failed() int {
	n := 0
	for _, r := range p {
		if !r.OK() {
			n++
		}
	}
	return n
}

// RenderText implements TextRenderer.
func (p Payments) RenderText(w io.Writer) error {
	t := NewTable("#", "ADDRESS", "AMOUNT", "RESULT")
	t.AlignRight(2)
	for i, r := range p {
		result := r.TxID
		if r.Err != nil {
			result = "error: " + firstLine(r.Err.Error())
		}
		amount := "0"
		if r.Amount != nil {
			amount = r.Amount.String()
		}
		t.AddRow(strconv.Itoa(i), r.Address, amount, result)
	}
	if err := t.Render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d submitted, %d failed\n", len(p)-p.Failed(), p.Failed())
	return err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
