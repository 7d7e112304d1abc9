package offline

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cryptorpc/internal/chain/xrp"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

const testXRPDest = "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu"

func TestDeriveXRPKey(t *testing.T) {
	t.Parallel()

	key, err := DeriveXRPKey(testMnemonic, "", 0, 0)
	require.NoError(t, err)
	defer key.Destroy()
	assert.Equal(t, "m/44'/144'/0'/0/0", key.Path)
	assert.True(t, xrp.IsValidAddress(key.Address), key.Address)

	again, err := DeriveXRPKey(testMnemonic, "", 0, 0)
	require.NoError(t, err)
	defer again.Destroy()
	assert.Equal(t, key.Address, again.Address)

	other, err := DeriveXRPKey(testMnemonic, "", 0, 1)
	require.NoError(t, err)
	defer other.Destroy()
	assert.NotEqual(t, key.Address, other.Address)
}

func TestSignXRPPayment(t *testing.T) {
	t.Parallel()

	key, err := DeriveXRPKey(testMnemonic, "", 0, 0)
	require.NoError(t, err)
	account := key.Address
	pub := key.private.PubKey().SerializeCompressed()

	signed, err := SignXRPPayment(XRPPayment{
		Destination: testXRPDest,
		Amount:      big.NewInt(5000),
		Fee:         big.NewInt(10),
		Sequence:    3,
	}, key)
	require.NoError(t, err)
	assert.Nil(t, key.private)
	assert.Equal(t, account, signed.Account)
	assert.Equal(t, uint32(3), signed.Sequence)

	wantHead := "120000" + "2280000000" + "2400000003" +
		"614000000000001388" + "68400000000000000A" +
		"7321" + strings.ToUpper(hex.EncodeToString(pub))
	assert.True(t, strings.HasPrefix(signed.TxBlob, wantHead), signed.TxBlob)

	blob, err := hex.DecodeString(signed.TxBlob)
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(sha512Half(prefixTxID, blob))), signed.Hash)

	accountID, err := xrp.DecodeAddress(account)
	require.NoError(t, err)
	destID, err := xrp.DecodeAddress(testXRPDest)
	require.NoError(t, err)
	tail := append(append([]byte{0x81, 0x14}, accountID...), append([]byte{0x83, 0x14}, destID...)...)
	require.True(t, bytes.HasSuffix(blob, tail))

	// Cut TxnSignature out and check it signs the remaining fields.
	sigStart := len(wantHead) / 2
	require.Equal(t, byte(0x74), blob[sigStart])
	sigLen := int(blob[sigStart+1])
	der := blob[sigStart+2 : sigStart+2+sigLen]
	unsigned := append(append([]byte{}, blob[:sigStart]...), blob[sigStart+2+sigLen:]...)

	sig, err := ecdsa.ParseDERSignature(der)
	require.NoError(t, err)
	pubKey, err := btcec.ParsePubKey(pub)
	require.NoError(t, err)
	assert.True(t, sig.Verify(sha512Half(prefixSign, unsigned), pubKey))
}

func TestSignXRPPaymentOptionalFields(t *testing.T) {
	t.Parallel()

	key, err := DeriveXRPKey(testMnemonic, "", 0, 0)
	require.NoError(t, err)
	tag := uint32(1)

	signed, err := SignXRPPayment(XRPPayment{
		Destination:        testXRPDest,
		Amount:             big.NewInt(1),
		Fee:                big.NewInt(12),
		Sequence:           7,
		DestinationTag:     &tag,
		LastLedgerSequence: 300,
	}, key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.TxBlob,
		"120000"+"2280000000"+"2400000007"+"2E00000001"+"201B0000012C"+"614000000000000001"), signed.TxBlob)
}

func TestSignXRPPaymentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payment XRPPayment
		want    error
	}{
		{"bad destination", XRPPayment{Destination: "NOTANADDRESS", Amount: big.NewInt(1), Fee: big.NewInt(10)}, rpcerr.ErrInvalidAddress},
		{"nil amount", XRPPayment{Destination: testXRPDest, Fee: big.NewInt(10)}, rpcerr.ErrInvalidAmount},
		{"zero fee", XRPPayment{Destination: testXRPDest, Amount: big.NewInt(1), Fee: big.NewInt(0)}, rpcerr.ErrInvalidAmount},
		{"above supply", XRPPayment{Destination: testXRPDest, Amount: new(big.Int).Add(big.NewInt(MaxDrops), big.NewInt(1)), Fee: big.NewInt(10)}, rpcerr.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			key, err := DeriveXRPKey(testMnemonic, "", 0, 0)
			require.NoError(t, err)

			_, err = SignXRPPayment(tt.payment, key)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, key.private, "key is destroyed on failure too")
		})
	}

	_, err := SignXRPPayment(XRPPayment{Destination: testXRPDest, Amount: big.NewInt(1), Fee: big.NewInt(10)}, nil)
	require.ErrorIs(t, err, rpcerr.ErrCredential)
}
