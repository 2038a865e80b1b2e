package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/DigitalDominance/Predikt/core/events"
	"github.com/DigitalDominance/Predikt/core/types"
	"github.com/DigitalDominance/Predikt/native/common"
)

const moduleName = "oracle"

// MaxFeeBps caps the protocol fee at 10%.
const MaxFeeBps uint32 = 1_000

var (
	errNilState   = errors.New("oracle engine: state not configured")
	errNilFeeSink = errors.New("oracle engine: fee sink not configured")
	errNilMinBond = errors.New("oracle engine: minimum base bond not configured")

	// ErrNotFound is returned when no question exists for the identifier.
	ErrNotFound = errors.New("oracle: question not found")
	// ErrAlreadyExists is returned when a question id is already occupied.
	ErrAlreadyExists = errors.New("oracle: question already exists")
	// ErrWrongStatus wraps rejections of operations invoked against a
	// question whose status does not admit them.
	ErrWrongStatus = errors.New("oracle: operation not allowed in current status")
	// ErrBeforeOpening is returned for commitments ahead of the opening time.
	ErrBeforeOpening = errors.New("oracle: question not yet open for commitments")
	// ErrBadCommit is returned when a reveal does not match the stored
	// commitment, or when no commitment exists.
	ErrBadCommit = errors.New("oracle: reveal does not match commitment")
	// ErrBondTooLow is returned when a reveal bond misses the escalation
	// minimum.
	ErrBondTooLow = errors.New("oracle: bond below required minimum")
	// ErrBadOutcome is returned when an encoded outcome falls outside the
	// question's domain.
	ErrBadOutcome = errors.New("oracle: outcome outside question domain")
	// ErrNoAnswer is returned when finalization is attempted with no
	// revealed answer standing.
	ErrNoAnswer = errors.New("oracle: no answer to finalize")
	// ErrLivenessNotExpired is returned when the challenge window is still
	// running.
	ErrLivenessNotExpired = errors.New("oracle: liveness window not expired")
	// ErrAlreadyEscalated is returned when the escalation slot is occupied.
	ErrAlreadyEscalated = errors.New("oracle: question already escalated")
	// ErrUnauthorized is returned for privileged calls from the wrong party.
	ErrUnauthorized = errors.New("oracle: unauthorized caller")
	// ErrReentrant is returned when settlement re-enters a question that is
	// already mid-settlement.
	ErrReentrant = errors.New("oracle: question settlement in progress")
)

type engineState interface {
	OraclePut(*Question) error
	OracleGet(id [32]byte) (*Question, bool)
	OracleCommitPut(id [32]byte, reporter [20]byte, hash [32]byte) error
	OracleCommitGet(id [32]byte, reporter [20]byte) ([32]byte, bool, error)
	OracleCommitDelete(id [32]byte, reporter [20]byte) error
	OracleBondedGet(id [32]byte, reporter [20]byte) (*big.Int, error)
	OracleBondedAdd(id [32]byte, reporter [20]byte, amt *big.Int) error
	OracleCredit(id [32]byte, token string, amt *big.Int) error
	OracleDebit(id [32]byte, token string, amt *big.Int) error
	OracleVaultAddress(token string) ([20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Arbitrator is the outbound arbitration port. Requests are fire-and-forget;
// the eventual ruling arrives through ReceiveArbitratorRuling.
type Arbitrator interface {
	RequestArbitration(id [32]byte)
}

// Consumer receives a best-effort notification once a question finalizes.
// Errors and panics are contained; they never roll back settlement.
type Consumer interface {
	OnOracleFinalize(id [32]byte, outcome [32]byte) error
}

// Policy bundles the runtime economic knobs applied at node wiring time.
type Policy struct {
	FeeBps         uint32
	FeeSink        [20]byte
	MinBaseBond    *big.Int
	EscalationBond *big.Int
}

type oracleEvent struct {
	evt *types.Event
}

func (e oracleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e oracleEvent) Event() *types.Event { return e.evt }

// Engine executes the question lifecycle state machine: creation,
// commit-reveal bonding rounds, escalation to arbitration, and settlement.
// Methods are not safe for concurrent use; callers serialise operations the
// way the ledger serialises transactions.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	port           Arbitrator
	consumers      func(addr [20]byte) Consumer
	pauses         *common.Switchboard
	nowFn          func() int64
	bondToken      string
	owner          [20]byte
	pendingOwner   [20]byte
	creator        [20]byte
	arbitratorAddr [20]byte
	feeSink        [20]byte
	feeBps         uint32
	minBaseBond    *big.Int
	escalationBond *big.Int
	settling       map[[32]byte]bool
}

// NewEngine creates an oracle engine with a no-op emitter and the PDK bond
// token. Callers wire state, ports, and policy before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
		bondToken:      "PDK",
		pauses:         common.NewSwitchboard(),
		minBaseBond:    big.NewInt(0),
		escalationBond: big.NewInt(0),
		settling:       make(map[[32]byte]bool),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetOwner configures the privileged administrator at bootstrap. Runtime
// handoff goes through TransferOwnership/AcceptOwnership.
func (e *Engine) SetOwner(addr [20]byte) { e.owner = addr }

// SetCreator configures the single authority allowed to create questions.
func (e *Engine) SetCreator(addr [20]byte) { e.creator = addr }

// SetArbitrationPort wires the outbound arbitration request sink.
func (e *Engine) SetArbitrationPort(port Arbitrator) { e.port = port }

// SetArbitratorAddress configures the identity whose rulings are accepted.
func (e *Engine) SetArbitratorAddress(addr [20]byte) { e.arbitratorAddr = addr }

// SetConsumerResolver wires the lookup from a question's consumer address to
// its notification hook.
func (e *Engine) SetConsumerResolver(fn func(addr [20]byte) Consumer) { e.consumers = fn }

// SetPolicy applies the economic policy at wiring time.
func (e *Engine) SetPolicy(p Policy) {
	if e == nil {
		return
	}
	if p.FeeBps <= MaxFeeBps {
		e.feeBps = p.FeeBps
	}
	e.feeSink = p.FeeSink
	e.minBaseBond = cloneBigInt(p.MinBaseBond)
	e.escalationBond = cloneBigInt(p.EscalationBond)
}

// Pauses exposes the engine's pause switchboard so node wiring can share it.
func (e *Engine) Pauses() *common.Switchboard { return e.pauses }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(oracleEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadQuestion(id [32]byte) (*Question, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	q, ok := e.state.OracleGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

func (e *Engine) storeQuestion(q *Question) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.OraclePut(q)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalancePDK: big.NewInt(0), BalanceWKAS: big.NewInt(0)}
	}
	if acc.BalancePDK == nil {
		acc.BalancePDK = big.NewInt(0)
	}
	if acc.BalanceWKAS == nil {
		acc.BalanceWKAS = big.NewInt(0)
	}
	return acc
}

// transferToken moves an exact amount between two accounts. The check against
// the sender balance happens before any write, so a failure leaves both
// accounts untouched.
func (e *Engine) transferToken(from, to [20]byte, token string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("oracle: negative transfer amount")
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	switch normalized {
	case "PDK":
		if fromAcc.BalancePDK.Cmp(amt) < 0 {
			return fmt.Errorf("oracle: insufficient balance")
		}
		fromAcc.BalancePDK = new(big.Int).Sub(fromAcc.BalancePDK, amt)
		toAcc.BalancePDK = new(big.Int).Add(toAcc.BalancePDK, amt)
	case "WKAS":
		if fromAcc.BalanceWKAS.Cmp(amt) < 0 {
			return fmt.Errorf("oracle: insufficient balance")
		}
		fromAcc.BalanceWKAS = new(big.Int).Sub(fromAcc.BalanceWKAS, amt)
		toAcc.BalanceWKAS = new(big.Int).Add(toAcc.BalanceWKAS, amt)
	default:
		return fmt.Errorf("oracle: unsupported token %s", token)
	}
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	return nil
}

func (e *Engine) ensureFeeSinkConfigured() error {
	if e == nil || e.feeSink == ([20]byte{}) {
		return errNilFeeSink
	}
	return nil
}

func (e *Engine) requestArbitration(id [32]byte) {
	if e == nil || e.port == nil {
		return
	}
	e.port.RequestArbitration(id)
}

// CreateQuestion validates the parameters, computes the deterministic id, and
// stores the question in the open state. Only the configured creator role may
// call it; identical (params, salt) pairs always map to the same id and the
// second creation fails.
func (e *Engine) CreateQuestion(caller [20]byte, params QuestionParams, salt [32]byte) (*Question, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.creator == ([20]byte{}) || caller != e.creator {
		return nil, ErrUnauthorized
	}
	now := e.now()
	if err := params.Validate(now); err != nil {
		return nil, err
	}
	id := QuestionID(params, salt)
	if _, ok := e.state.OracleGet(id); ok {
		return nil, ErrAlreadyExists
	}
	q := &Question{
		ID:            id,
		Params:        params,
		Status:        StatusOpen,
		Round:         0,
		LastActionTs:  now,
		TotalBonds:    big.NewInt(0),
		EscalatorBond: big.NewInt(0),
		CreatedAt:     now,
	}
	if err := e.storeQuestion(q); err != nil {
		return nil, err
	}
	e.emit(NewQuestionCreatedEvent(q))
	return q.Clone(), nil
}

// Commit records the caller's commitment hash for a future reveal. A pending
// commitment is overwritten unconditionally, which lets reporters correct a
// mistaken commit before revealing.
func (e *Engine) Commit(caller [20]byte, id [32]byte, hash [32]byte) error {
	q, err := e.loadQuestion(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if q.Status != StatusOpen {
		return fmt.Errorf("oracle: cannot commit in status %s: %w", q.Status, ErrWrongStatus)
	}
	if e.now() < q.Params.OpeningTs {
		return ErrBeforeOpening
	}
	if hash == ([32]byte{}) {
		return fmt.Errorf("oracle: commitment hash must not be zero")
	}
	if err := e.state.OracleCommitPut(id, caller, hash); err != nil {
		return err
	}
	e.emit(NewCommittedEvent(q, caller))
	return nil
}

// Reveal discloses the caller's committed answer together with its bond. The
// reveal is atomic: validation and the escrow pull happen before any
// bookkeeping is persisted, and a failed pull leaves the question untouched.
// Reaching the round limit escalates to arbitration within the same call.
func (e *Engine) Reveal(caller [20]byte, id [32]byte, encoded [32]byte, salt [32]byte, bond *big.Int) error {
	q, err := e.loadQuestion(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if q.Status != StatusOpen {
		return fmt.Errorf("oracle: cannot reveal in status %s: %w", q.Status, ErrWrongStatus)
	}
	stored, ok, err := e.state.OracleCommitGet(id, caller)
	if err != nil {
		return err
	}
	if !ok || CommitHash(id, encoded, salt, caller) != stored {
		return ErrBadCommit
	}
	minBond, err := e.minNextBond(q)
	if err != nil {
		return err
	}
	amount := cloneBigInt(bond)
	if amount.Sign() <= 0 || amount.Cmp(minBond) < 0 {
		return ErrBondTooLow
	}
	if err := q.Params.ValidateOutcome(encoded); err != nil {
		return err
	}
	vault, err := e.state.OracleVaultAddress(e.bondToken)
	if err != nil {
		return err
	}
	if err := e.transferToken(caller, vault, e.bondToken, amount); err != nil {
		return err
	}
	if err := e.state.OracleCredit(id, e.bondToken, amount); err != nil {
		return err
	}
	if err := e.state.OracleCommitDelete(id, caller); err != nil {
		return err
	}
	if err := e.state.OracleBondedAdd(id, caller, amount); err != nil {
		return err
	}
	now := e.now()
	q.Round++
	q.LastActionTs = now
	q.TotalBonds = new(big.Int).Add(q.TotalBonds, amount)
	q.Best = &Answer{Reporter: caller, Encoded: encoded, Bond: amount, RevealedAt: now}
	autoEscalate := q.Round >= q.Params.MaxRounds
	if autoEscalate {
		// The reveal that exhausts the round ladder carries the question
		// into arbitration itself; no escalator is recorded and no
		// escalation bond is charged.
		q.Status = StatusArbitrating
	}
	if err := e.storeQuestion(q); err != nil {
		return err
	}
	e.emit(NewRevealedEvent(q))
	if autoEscalate {
		e.emit(NewEscalatedEvent(q, true))
		e.requestArbitration(id)
	}
	return nil
}

func (e *Engine) minNextBond(q *Question) (*big.Int, error) {
	if q.Best == nil {
		if e.minBaseBond == nil || e.minBaseBond.Sign() <= 0 {
			return nil, errNilMinBond
		}
		return cloneBigInt(e.minBaseBond), nil
	}
	multiplier := new(big.Int).SetUint64(uint64(q.Params.BondMultiplier))
	return new(big.Int).Mul(q.Best.Bond, multiplier), nil
}

// Escalate lets any party fast-track an open question to arbitration at the
// cost of the configured escalation bond. The slot can only be taken once.
func (e *Engine) Escalate(caller [20]byte, id [32]byte) error {
	q, err := e.loadQuestion(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if q.Status != StatusOpen {
		return fmt.Errorf("oracle: cannot escalate in status %s: %w", q.Status, ErrWrongStatus)
	}
	if q.Escalator != ([20]byte{}) {
		return ErrAlreadyEscalated
	}
	bond := cloneBigInt(e.escalationBond)
	if bond.Sign() > 0 {
		vault, err := e.state.OracleVaultAddress(e.bondToken)
		if err != nil {
			return err
		}
		if err := e.transferToken(caller, vault, e.bondToken, bond); err != nil {
			return err
		}
		if err := e.state.OracleCredit(id, e.bondToken, bond); err != nil {
			return err
		}
	}
	q.Escalator = caller
	q.EscalatorBond = bond
	q.Status = StatusArbitrating
	if err := e.storeQuestion(q); err != nil {
		return err
	}
	e.emit(NewEscalatedEvent(q, false))
	e.requestArbitration(id)
	return nil
}

// Finalize settles an uncontested question once its liveness window has
// expired, paying the pool minus the protocol fee to the standing reporter.
func (e *Engine) Finalize(id [32]byte) error {
	q, err := e.loadQuestion(id)
	if err != nil {
		return err
	}
	if q.Status != StatusOpen {
		return fmt.Errorf("oracle: cannot finalize in status %s: %w", q.Status, ErrWrongStatus)
	}
	if q.Best == nil {
		return ErrNoAnswer
	}
	if e.now() <= q.LastActionTs+q.Params.Timeout {
		return ErrLivenessNotExpired
	}
	if err := e.ensureFeeSinkConfigured(); err != nil {
		return err
	}
	if e.settling[id] {
		return ErrReentrant
	}
	e.settling[id] = true
	defer delete(e.settling, id)

	pool := cloneBigInt(q.TotalBonds)
	fee, payout := e.splitFee(pool)
	vault, err := e.state.OracleVaultAddress(e.bondToken)
	if err != nil {
		return err
	}
	if payout.Sign() > 0 {
		if err := e.transferToken(vault, q.Best.Reporter, e.bondToken, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transferToken(vault, e.feeSink, e.bondToken, fee); err != nil {
			return err
		}
	}
	if err := e.state.OracleDebit(id, e.bondToken, pool); err != nil {
		return err
	}
	q.Status = StatusFinalized
	q.FinalOutcome = q.Best.Encoded
	q.Winner = q.Best.Reporter
	if err := e.storeQuestion(q); err != nil {
		return err
	}
	e.emit(NewFinalizedEvent(q, fee, payout, false))
	e.notifyConsumer(q, q.FinalOutcome)
	return nil
}

// ReceiveArbitratorRuling applies the arbitrator's binding ruling to an
// escalated question. A non-zero payee wins outright; otherwise the standing
// reporter wins iff the ruling matches their answer byte-for-byte, and a
// mismatch slashes the pool to the fee sink. An explicit escalator's bond is
// refunded iff the ruling overturned the optimistic answer.
func (e *Engine) ReceiveArbitratorRuling(caller [20]byte, id [32]byte, encoded [32]byte, payee [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.arbitratorAddr == ([20]byte{}) || caller != e.arbitratorAddr {
		return ErrUnauthorized
	}
	q, err := e.loadQuestion(id)
	if err != nil {
		return err
	}
	if q.Status != StatusArbitrating {
		return fmt.Errorf("oracle: cannot rule in status %s: %w", q.Status, ErrWrongStatus)
	}
	if err := e.ensureFeeSinkConfigured(); err != nil {
		return err
	}
	if e.settling[id] {
		return ErrReentrant
	}
	e.settling[id] = true
	defer delete(e.settling, id)

	var winner [20]byte
	switch {
	case payee != ([20]byte{}):
		winner = payee
	case q.Best != nil && q.Best.Encoded == encoded:
		winner = q.Best.Reporter
	}

	pool := cloneBigInt(q.TotalBonds)
	fee, payout := e.splitFee(pool)
	vault, err := e.state.OracleVaultAddress(e.bondToken)
	if err != nil {
		return err
	}
	if payout.Sign() > 0 {
		recipient := winner
		if recipient == ([20]byte{}) {
			// Slash: nobody earned the pool, so it goes to the sink.
			recipient = e.feeSink
		}
		if err := e.transferToken(vault, recipient, e.bondToken, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transferToken(vault, e.feeSink, e.bondToken, fee); err != nil {
			return err
		}
	}
	if pool.Sign() > 0 {
		if err := e.state.OracleDebit(id, e.bondToken, pool); err != nil {
			return err
		}
	}
	if q.Escalator != ([20]byte{}) && q.EscalatorBond.Sign() > 0 {
		overturned := q.Best == nil || winner != q.Best.Reporter
		recipient := e.feeSink
		if overturned {
			recipient = q.Escalator
		}
		if err := e.transferToken(vault, recipient, e.bondToken, q.EscalatorBond); err != nil {
			return err
		}
		if err := e.state.OracleDebit(id, e.bondToken, q.EscalatorBond); err != nil {
			return err
		}
	}
	q.Status = StatusFinalized
	q.FinalOutcome = encoded
	q.Winner = winner
	if err := e.storeQuestion(q); err != nil {
		return err
	}
	e.emit(NewRuledEvent(q, payee))
	e.emit(NewFinalizedEvent(q, fee, payout, true))
	e.notifyConsumer(q, encoded)
	return nil
}

func (e *Engine) splitFee(pool *big.Int) (fee, payout *big.Int) {
	fee = new(big.Int).Mul(pool, new(big.Int).SetUint64(uint64(e.feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	payout = new(big.Int).Sub(pool, fee)
	return fee, payout
}

func (e *Engine) notifyConsumer(q *Question, outcome [32]byte) {
	if e == nil || q == nil || e.consumers == nil {
		return
	}
	if q.Params.Consumer == ([20]byte{}) {
		return
	}
	hook := e.consumers(q.Params.Consumer)
	if hook == nil {
		return
	}
	func() {
		// A panicking consumer must not roll back settlement.
		defer func() {
			if r := recover(); r != nil {
				e.emit(NewConsumerFailedEvent(q, fmt.Errorf("consumer panic: %v", r)))
			}
		}()
		if err := hook.OnOracleFinalize(q.ID, outcome); err != nil {
			e.emit(NewConsumerFailedEvent(q, err))
		}
	}()
}
