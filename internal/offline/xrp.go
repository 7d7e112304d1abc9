package offline

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/mrz1836/cryptorpc/internal/chain/xrp"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// XRPCoinType is the SLIP-44 coin type for the XRP Ledger.
const XRPCoinType = 144

// MaxDrops is the whole XRP supply in drops. No native amount can exceed it.
const MaxDrops = 100_000_000_000_000_000

const (
	tfFullyCanonicalSig = 0x80000000

	// native amounts set bit 62 ("positive") and leave bit 63 ("issued") clear
	nativePositive = 0x4000000000000000
)

var (
	// hash prefixes: "STX\0" for signing, "TXN\0" for the transaction id
	prefixSign = []byte{0x53, 0x54, 0x58, 0x00}
	prefixTxID = []byte{0x54, 0x58, 0x4E, 0x00}
)

// XRPKey is a derived secp256k1 account key. Destroy it when done.
type XRPKey struct {
	Path    string
	Address string

	private *btcec.PrivateKey
}

// Destroy zeroes the private scalar. The key is unusable afterwards.
func (k *XRPKey) Destroy() {
	if k == nil || k.private == nil {
		return
	}
	k.private.Zero()
	k.private = nil
}

// XRPDerivationPath returns m/44'/144'/account'/0/index.
func XRPDerivationPath(account, index uint32) string {
	return bip44Path(XRPCoinType, account, index)
}

// DeriveXRPKey derives the account key at XRPDerivationPath(account, index).
func DeriveXRPKey(mnemonic, passphrase string, account, index uint32) (*XRPKey, error) {
	raw, err := deriveLeaf(mnemonic, passphrase, XRPCoinType, account, index)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	priv, pub := btcec.PrivKeyFromBytes(raw)
	address, err := xrp.EncodeAddress(btcutil.Hash160(pub.SerializeCompressed()))
	if err != nil {
		return nil, rpcerr.Wrap(err, "failed to encode address")
	}
	return &XRPKey{
		Path:    XRPDerivationPath(account, index),
		Address: address,
		private: priv,
	}, nil
}

// XRPPayment is a native XRP Payment. Amount and Fee are in drops.
type XRPPayment struct {
	Destination        string
	Amount             *big.Int
	Fee                *big.Int
	Sequence           uint32
	DestinationTag     *uint32
	LastLedgerSequence uint32 // 0 omits the field
}

// SignedXRP is a signed transaction ready for SubmitSignedTransaction.
type SignedXRP struct {
	Account  string `json:"account"`
	TxBlob   string `json:"signed_tx"`
	Hash     string `json:"hash"`
	Sequence uint32 `json:"sequence"`
}

// SignXRPPayment serializes p from the key's account, signs it and returns
// the hex blob with its transaction hash. The key is destroyed whether or
// not signing succeeds.
func SignXRPPayment(p XRPPayment, key *XRPKey) (*SignedXRP, error) {
	defer key.Destroy()

	if key == nil || key.private == nil {
		return nil, rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "no signing key"})
	}
	dest, err := xrp.DecodeAddress(strings.TrimSpace(p.Destination))
	if err != nil {
		return nil, rpcerr.WithCause(rpcerr.WithDetails(rpcerr.ErrInvalidAddress, map[string]string{"address": p.Destination}), err)
	}
	account, err := xrp.DecodeAddress(key.Address)
	if err != nil {
		return nil, rpcerr.Wrap(err, "invalid signing account")
	}
	amount, err := drops(p.Amount, "amount")
	if err != nil {
		return nil, err
	}
	fee, err := drops(p.Fee, "fee")
	if err != nil {
		return nil, err
	}

	f := paymentFields{
		sequence:    p.Sequence,
		destTag:     p.DestinationTag,
		lastLedger:  p.LastLedgerSequence,
		amount:      amount,
		fee:         fee,
		signingKey:  key.private.PubKey().SerializeCompressed(),
		account:     account,
		destination: dest,
	}

	f.signature = ecdsa.Sign(key.private, sha512Half(prefixSign, f.serialize())).Serialize()
	blob := f.serialize()

	return &SignedXRP{
		Account:  key.Address,
		TxBlob:   strings.ToUpper(hex.EncodeToString(blob)),
		Hash:     strings.ToUpper(hex.EncodeToString(sha512Half(prefixTxID, blob))),
		Sequence: p.Sequence,
	}, nil
}

func drops(v *big.Int, field string) (uint64, error) {
	if v == nil || v.Sign() <= 0 || !v.IsUint64() || v.Uint64() > MaxDrops {
		return 0, rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{
			"field":  field,
			"reason": "must be a positive number of drops",
		})
	}
	return v.Uint64(), nil
}

// paymentFields holds a Payment in canonical field order: by type code, then
// by field code.
type paymentFields struct {
	sequence    uint32
	destTag     *uint32
	lastLedger  uint32
	amount      uint64
	fee         uint64
	signingKey  []byte
	signature   []byte // empty while hashing for the signature
	account     []byte
	destination []byte
}

func (f *paymentFields) serialize() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x12, 0x00, 0x00}) // TransactionType: Payment
	putUint32(&b, []byte{0x22}, tfFullyCanonicalSig)
	putUint32(&b, []byte{0x24}, f.sequence)
	if f.destTag != nil {
		putUint32(&b, []byte{0x2E}, *f.destTag)
	}
	if f.lastLedger != 0 {
		putUint32(&b, []byte{0x20, 0x1B}, f.lastLedger)
	}
	putUint64(&b, 0x61, f.amount|nativePositive)
	putUint64(&b, 0x68, f.fee|nativePositive)
	putVL(&b, 0x73, f.signingKey)
	if len(f.signature) > 0 {
		putVL(&b, 0x74, f.signature)
	}
	putVL(&b, 0x81, f.account)
	putVL(&b, 0x83, f.destination)
	return b.Bytes()
}

func putUint32(b *bytes.Buffer, header []byte, v uint32) {
	b.Write(header)
	_ = binary.Write(b, binary.BigEndian, v)
}

func putUint64(b *bytes.Buffer, header byte, v uint64) {
	b.WriteByte(header)
	_ = binary.Write(b, binary.BigEndian, v)
}

// putVL writes a variable-length field. Keys, signatures and account IDs are
// all shorter than 193 bytes, so the length fits in one byte.
func putVL(b *bytes.Buffer, header byte, data []byte) {
	b.WriteByte(header)
	b.WriteByte(byte(len(data)))
	b.Write(data)
}

func sha512Half(prefix, data []byte) []byte {
	h := sha512.New()
	h.Write(prefix)
	h.Write(data)
	return h.Sum(nil)[:32]
}
