package types

import "math/big"

// Account holds the ledger balances tracked for a single address. PDK is the
// bonded asset used by the oracle module; WKAS is carried for completeness so
// mistakenly deposited funds remain rescuable.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalancePDK  *big.Int `json:"balancePDK"`
	BalanceWKAS *big.Int `json:"balanceWKAS"`
}
