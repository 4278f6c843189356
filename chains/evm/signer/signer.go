// Package signer holds the key that pays for transfer and redemption transactions on EVM chains.
package signer

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer signs transactions for one account.
type Signer interface {
	// SignTx signs tx for the chain-native id chainID. Legacy and dynamic fee transactions are accepted.
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)

	// Address is the account that pays for signed transactions.
	Address() common.Address
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	account common.Address
}

// NewSigner wraps key.
func NewSigner(key *ecdsa.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, errors.New("private key is nil")
	}
	return &keySigner{key: key, account: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// FromHex parses a hex encoded secp256k1 key, with or without the 0x prefix.
//
// Parameters:
// - hexKey: the private key as stored in chain configuration.
//
// Returns:
// - Signer: the signer for the key's account.
// - error: when hexKey is not a valid key. The key itself is never part of the error.
func FromHex(hexKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.New("invalid private key")
	}
	return NewSigner(key)
}

func (s *keySigner) Address() common.Address { return s.account }

func (s *keySigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.Errorf("invalid chain id %v", chainID)
	}
	signed, err := ethtypes.SignTx(tx, ethtypes.NewLondonSigner(chainID), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	return signed, nil
}
