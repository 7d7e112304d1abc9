// Package offline derives Ethereum and XRP keys from a BIP39 mnemonic and
// builds and signs transactions without a node. The signed blob is what a caller hands
// to SubmitSignedTransaction.
package offline

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/cryptorpc/internal/chain/eth"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// CoinType is the SLIP-44 coin type for Ethereum.
const CoinType = 60

// DefaultGasLimit covers a plain value transfer.
const DefaultGasLimit = 21000

// Key is a derived signing key. Destroy it when done.
type Key struct {
	Path    string
	Address string

	private *ecdsa.PrivateKey
}

// Destroy zeroes the private scalar. The key is unusable afterwards.
func (k *Key) Destroy() {
	if k == nil || k.private == nil {
		return
	}
	k.private.D.SetInt64(0)
	k.private = nil
}

// DerivationPath returns m/44'/60'/account'/0/index.
func DerivationPath(account, index uint32) string {
	return bip44Path(CoinType, account, index)
}

// DerivePrivateKey derives the key at DerivationPath(account, index).
func DerivePrivateKey(mnemonic, passphrase string, account, index uint32) (*Key, error) {
	raw, err := deriveLeaf(mnemonic, passphrase, CoinType, account, index)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, rpcerr.Wrap(err, "invalid derived key")
	}
	return &Key{
		Path:    DerivationPath(account, index),
		Address: crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		private: priv,
	}, nil
}

// deriveLeaf walks m/44'/coin'/account'/0/index and returns the private key
// bytes. The caller zeroes them.
func deriveLeaf(mnemonic, passphrase string, coin, account, index uint32) ([]byte, error) {
	seed, err := mnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, rpcerr.Wrap(err, "failed to create master key")
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + coin,
		bip32.FirstHardenedChild + account,
		0,
		index,
	}
	key := master
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, rpcerr.Wrap(err, "failed to derive %s", bip44Path(coin, account, index))
		}
	}
	return key.Key, nil
}

func bip44Path(coin, account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", coin, account, index)
}

// TxParams describes a legacy value transfer.
type TxParams struct {
	Nonce    uint64
	To       string
	Value    *big.Int
	GasPrice *big.Int
	GasLimit uint64
	Data     []byte
}

// CreateRawTransaction builds an unsigned legacy transaction.
func CreateRawTransaction(p TxParams) (*types.Transaction, error) {
	if err := eth.ValidateAddress(p.To); err != nil {
		return nil, err
	}
	if p.Value == nil || p.Value.Sign() < 0 {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"reason": "value must be zero or positive"})
	}
	if p.GasPrice == nil || p.GasPrice.Sign() <= 0 {
		return nil, rpcerr.WithDetails(rpcerr.ErrInvalidAmount, map[string]string{"reason": "gas price must be positive"})
	}
	gas := p.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}

	to := common.HexToAddress(p.To)
	return types.NewTx(&types.LegacyTx{
		Nonce:    p.Nonce,
		To:       &to,
		Value:    new(big.Int).Set(p.Value),
		Gas:      gas,
		GasPrice: new(big.Int).Set(p.GasPrice),
		Data:     p.Data,
	}), nil
}

// Sign signs tx with EIP-155 replay protection for chainID and returns the
// 0x-prefixed RLP encoding. The key is destroyed whether or not signing succeeds.
func Sign(tx *types.Transaction, key *Key, chainID *big.Int) (string, error) {
	defer key.Destroy()

	if key == nil || key.private == nil {
		return "", rpcerr.WithDetails(rpcerr.ErrCredential, map[string]string{"reason": "no signing key"})
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return "", rpcerr.WithDetails(rpcerr.ErrInvalidInput, map[string]string{"reason": "chain id must be positive"})
	}

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key.private)
	if err != nil {
		return "", rpcerr.Wrap(err, "failed to sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", rpcerr.Wrap(err, "failed to encode transaction")
	}
	return hexutil.Encode(raw), nil
}
