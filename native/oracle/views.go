package oracle

import "math/big"

// ArbitrationPending is returned by RemainingLiveness while a question waits
// on its arbitrator; the design has no internal timeout for that wait.
const ArbitrationPending int64 = -1

// Status returns the lifecycle status of the question.
func (e *Engine) Status(id [32]byte) (QuestionStatus, error) {
	q, err := e.loadQuestion(id)
	if err != nil {
		return 0, err
	}
	return q.Status, nil
}

// Get returns a copy of the full question record.
func (e *Engine) Get(id [32]byte) (*Question, error) {
	q, err := e.loadQuestion(id)
	if err != nil {
		return nil, err
	}
	return q.Clone(), nil
}

// BestAnswer returns the highest-bonded revealed answer, or nil when no
// reveal has been accepted yet.
func (e *Engine) BestAnswer(id [32]byte) (*Answer, error) {
	q, err := e.loadQuestion(id)
	if err != nil {
		return nil, err
	}
	return q.Best.Clone(), nil
}

// RemainingLiveness reports the seconds left in the current challenge window:
// zero once expired or finalized, ArbitrationPending while arbitrating.
func (e *Engine) RemainingLiveness(id [32]byte) (int64, error) {
	q, err := e.loadQuestion(id)
	if err != nil {
		return 0, err
	}
	switch q.Status {
	case StatusArbitrating:
		return ArbitrationPending, nil
	case StatusFinalized:
		return 0, nil
	}
	remaining := q.LastActionTs + q.Params.Timeout - e.now()
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// PendingCommit returns the reporter's stored commitment hash, if any.
func (e *Engine) PendingCommit(id [32]byte, reporter [20]byte) ([32]byte, bool, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, false, errNilState
	}
	if _, err := e.loadQuestion(id); err != nil {
		return [32]byte{}, false, err
	}
	return e.state.OracleCommitGet(id, reporter)
}

// BondedBy returns the cumulative bond the reporter has contributed to the
// question across all rounds. Bookkeeping only; it does not gate behavior.
func (e *Engine) BondedBy(id [32]byte, reporter [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadQuestion(id); err != nil {
		return nil, err
	}
	return e.state.OracleBondedGet(id, reporter)
}
