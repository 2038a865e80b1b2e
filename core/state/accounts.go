package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DigitalDominance/Predikt/core/types"
	"github.com/DigitalDominance/Predikt/storage"
)

var accountPrefix = []byte("account/")

func accountKey(addr []byte) []byte {
	return ethcrypto.Keccak256(accountPrefix, addr)
}

type storedAccount struct {
	Nonce       uint64
	BalancePDK  *big.Int
	BalanceWKAS *big.Int
}

// GetAccount loads the account record for the address. A missing record
// yields a fresh zero-balance account, never an error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) != 20 {
		return nil, fmt.Errorf("state: account address must be 20 bytes")
	}
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return &types.Account{BalancePDK: big.NewInt(0), BalanceWKAS: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := &types.Account{
		Nonce:       stored.Nonce,
		BalancePDK:  stored.BalancePDK,
		BalanceWKAS: stored.BalanceWKAS,
	}
	if account.BalancePDK == nil {
		account.BalancePDK = big.NewInt(0)
	}
	if account.BalanceWKAS == nil {
		account.BalanceWKAS = big.NewInt(0)
	}
	return account, nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) != 20 {
		return fmt.Errorf("state: account address must be 20 bytes")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	stored := &storedAccount{
		Nonce:       account.Nonce,
		BalancePDK:  account.BalancePDK,
		BalanceWKAS: account.BalanceWKAS,
	}
	if stored.BalancePDK == nil {
		stored.BalancePDK = big.NewInt(0)
	}
	if stored.BalanceWKAS == nil {
		stored.BalanceWKAS = big.NewInt(0)
	}
	if stored.BalancePDK.Sign() < 0 || stored.BalanceWKAS.Sign() < 0 {
		return fmt.Errorf("state: account balance must not be negative")
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), encoded)
}
