package oracle

import (
	"fmt"
	"math/big"
)

func (e *Engine) requireOwner(caller [20]byte) error {
	if e == nil || e.owner == ([20]byte{}) || caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership records a pending handoff of the administrator role. The
// transfer only takes effect once the new owner accepts it.
func (e *Engine) TransferOwnership(caller, newOwner [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == ([20]byte{}) {
		return fmt.Errorf("oracle: new owner must not be the zero address")
	}
	e.pendingOwner = newOwner
	e.emit(NewOwnershipProposedEvent(e.owner, newOwner))
	return nil
}

// AcceptOwnership completes a pending ownership handoff. Only the pending
// holder may accept.
func (e *Engine) AcceptOwnership(caller [20]byte) error {
	if e == nil || e.pendingOwner == ([20]byte{}) || caller != e.pendingOwner {
		return ErrUnauthorized
	}
	previous := e.owner
	e.owner = e.pendingOwner
	e.pendingOwner = [20]byte{}
	e.emit(NewOwnershipAcceptedEvent(previous, e.owner))
	return nil
}

// UpdateFeeSink changes the recipient of protocol fees and slashed pools.
func (e *Engine) UpdateFeeSink(caller, sink [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if sink == ([20]byte{}) {
		return fmt.Errorf("oracle: fee sink must not be the zero address")
	}
	e.feeSink = sink
	return nil
}

// UpdateFeeBps changes the protocol fee rate, capped at 10%.
func (e *Engine) UpdateFeeBps(caller [20]byte, bps uint32) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps > MaxFeeBps {
		return fmt.Errorf("oracle: fee bps %d above cap %d", bps, MaxFeeBps)
	}
	e.feeBps = bps
	return nil
}

// UpdateArbitrator changes the identity whose rulings are accepted. Questions
// already arbitrating wait on the new arbitrator.
func (e *Engine) UpdateArbitrator(caller, arbitrator [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if arbitrator == ([20]byte{}) {
		return fmt.Errorf("oracle: arbitrator must not be the zero address")
	}
	e.arbitratorAddr = arbitrator
	return nil
}

// UpdateMinBaseBond changes the floor for the first reveal bond.
func (e *Engine) UpdateMinBaseBond(caller [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("oracle: minimum base bond must be positive")
	}
	e.minBaseBond = new(big.Int).Set(amount)
	return nil
}

// UpdateEscalationBond changes the fixed cost of explicit escalation.
func (e *Engine) UpdateEscalationBond(caller [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("oracle: escalation bond must not be negative")
	}
	e.escalationBond = new(big.Int).Set(amount)
	return nil
}

// SetPaused blocks (or unblocks) new state-changing actions. Settlement and
// the ruling callback stay live so escrowed funds can always leave.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.pauses.SetPaused(moduleName, paused)
	return nil
}

// Rescue moves mistakenly deposited non-bond assets out of the module vault.
// The bond asset itself is never rescuable: it is the union of every open
// question's pool.
func (e *Engine) Rescue(caller [20]byte, token string, to [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	if normalized == e.bondToken {
		return fmt.Errorf("oracle: cannot rescue the bond asset")
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("oracle: rescue recipient must not be the zero address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("oracle: rescue amount must be positive")
	}
	vault, err := e.state.OracleVaultAddress(normalized)
	if err != nil {
		return err
	}
	return e.transferToken(vault, to, normalized, amount)
}
