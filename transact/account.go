// Package transact builds, signs and submits legacy transactions and waits
// for their receipts.
package transact

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoKey indicates an empty private key.
var ErrNoKey = errors.New("transact: private key is empty")

// Account is the process's single signing identity. The key never leaves
// this value and is never persisted.
type Account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewAccount parses a hex private key, with or without a 0x prefix.
func NewAccount(hexKey string) (*Account, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrNoKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("transact: parse private key: %w", err)
	}
	return AccountFromKey(key), nil
}

// AccountFromKey wraps an already-loaded key.
func AccountFromKey(key *ecdsa.PrivateKey) *Account {
	return &Account{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the account address.
func (a *Account) Address() common.Address {
	return a.address
}

// Sign signs tx for chainID with EIP-155 replay protection.
func (a *Account) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), a.key)
}

// String never includes the key.
func (a *Account) String() string {
	return "Account(" + a.address.Hex() + ")"
}
