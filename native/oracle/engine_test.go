package oracle

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/DigitalDominance/Predikt/core/events"
	"github.com/DigitalDominance/Predikt/core/types"
)

const testNow int64 = 1_700_000_000

type mockState struct {
	questions map[[32]byte]*Question
	commits   map[string][32]byte
	bonded    map[string]*big.Int
	escrow    map[string]*big.Int
	accounts  map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		questions: make(map[[32]byte]*Question),
		commits:   make(map[string][32]byte),
		bonded:    make(map[string]*big.Int),
		escrow:    make(map[string]*big.Int),
		accounts:  make(map[[20]byte]*types.Account),
	}
}

func commitKey(id [32]byte, reporter [20]byte) string {
	return hex.EncodeToString(id[:]) + "/" + hex.EncodeToString(reporter[:])
}

func escrowKey(id [32]byte, token string) string {
	return hex.EncodeToString(id[:]) + "/" + token
}

func (m *mockState) OraclePut(q *Question) error {
	sanitized, err := SanitizeQuestion(q)
	if err != nil {
		return err
	}
	m.questions[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) OracleGet(id [32]byte) (*Question, bool) {
	q, ok := m.questions[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

func (m *mockState) OracleCommitPut(id [32]byte, reporter [20]byte, hash [32]byte) error {
	m.commits[commitKey(id, reporter)] = hash
	return nil
}

func (m *mockState) OracleCommitGet(id [32]byte, reporter [20]byte) ([32]byte, bool, error) {
	hash, ok := m.commits[commitKey(id, reporter)]
	return hash, ok, nil
}

func (m *mockState) OracleCommitDelete(id [32]byte, reporter [20]byte) error {
	delete(m.commits, commitKey(id, reporter))
	return nil
}

func (m *mockState) OracleBondedGet(id [32]byte, reporter [20]byte) (*big.Int, error) {
	if v, ok := m.bonded[commitKey(id, reporter)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) OracleBondedAdd(id [32]byte, reporter [20]byte, amt *big.Int) error {
	key := commitKey(id, reporter)
	current, ok := m.bonded[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.bonded[key] = new(big.Int).Add(current, amt)
	return nil
}

func (m *mockState) OracleCredit(id [32]byte, token string, amt *big.Int) error {
	key := escrowKey(id, token)
	current, ok := m.escrow[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.escrow[key] = new(big.Int).Add(current, amt)
	return nil
}

func (m *mockState) OracleDebit(id [32]byte, token string, amt *big.Int) error {
	key := escrowKey(id, token)
	current, ok := m.escrow[key]
	if !ok || current.Cmp(amt) < 0 {
		return errors.New("escrow balance insufficient")
	}
	m.escrow[key] = new(big.Int).Sub(current, amt)
	return nil
}

func (m *mockState) OracleVaultAddress(token string) ([20]byte, error) {
	var addr [20]byte
	addr[0] = 0xee
	copy(addr[1:], token)
	return addr, nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	if account, ok := m.accounts[key]; ok {
		return &types.Account{
			Nonce:       account.Nonce,
			BalancePDK:  new(big.Int).Set(account.BalancePDK),
			BalanceWKAS: new(big.Int).Set(account.BalanceWKAS),
		}, nil
	}
	return &types.Account{BalancePDK: big.NewInt(0), BalanceWKAS: big.NewInt(0)}, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account
	return nil
}

func (m *mockState) balancePDK(addr [20]byte) *big.Int {
	if account, ok := m.accounts[addr]; ok {
		return new(big.Int).Set(account.BalancePDK)
	}
	return big.NewInt(0)
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{
		BalancePDK:  big.NewInt(amount),
		BalanceWKAS: big.NewInt(0),
	}
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) typesSeen() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func (c *capturingEmitter) last(t *testing.T, eventType string) *types.Event {
	t.Helper()
	type attributed interface {
		Event() *types.Event
	}
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].EventType() != eventType {
			continue
		}
		wrapped, ok := c.events[i].(attributed)
		if !ok {
			t.Fatalf("event %s does not expose attributes", eventType)
		}
		return wrapped.Event()
	}
	t.Fatalf("no %s event emitted (saw %v)", eventType, c.typesSeen())
	return nil
}

type mockArbitrator struct {
	requests [][32]byte
}

func (m *mockArbitrator) RequestArbitration(id [32]byte) {
	m.requests = append(m.requests, id)
}

type mockConsumer struct {
	calls    int
	lastID   [32]byte
	outcome  [32]byte
	err      error
	panicked bool
}

func (m *mockConsumer) OnOracleFinalize(id [32]byte, outcome [32]byte) error {
	m.calls++
	m.lastID = id
	m.outcome = outcome
	if m.panicked {
		panic("consumer exploded")
	}
	return m.err
}

type testEnv struct {
	engine     *Engine
	state      *mockState
	emitter    *capturingEmitter
	arbitrator *mockArbitrator
	now        int64
	owner      [20]byte
	creator    [20]byte
	arbAddr    [20]byte
	feeSink    [20]byte
}

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:      newMockState(),
		emitter:    &capturingEmitter{},
		arbitrator: &mockArbitrator{},
		now:        testNow,
		owner:      addr(0x01),
		creator:    addr(0x02),
		arbAddr:    addr(0x03),
		feeSink:    addr(0x04),
	}
	engine := NewEngine()
	engine.SetState(env.state)
	engine.SetEmitter(env.emitter)
	engine.SetNowFunc(func() int64 { return env.now })
	engine.SetOwner(env.owner)
	engine.SetCreator(env.creator)
	engine.SetArbitratorAddress(env.arbAddr)
	engine.SetArbitrationPort(env.arbitrator)
	engine.SetPolicy(Policy{
		FeeBps:         250,
		FeeSink:        env.feeSink,
		MinBaseBond:    big.NewInt(100),
		EscalationBond: big.NewInt(500),
	})
	env.engine = engine
	return env
}

func binaryParams() QuestionParams {
	return QuestionParams{
		Type:           QuestionTypeBinary,
		Timeout:        300,
		BondMultiplier: 2,
		MaxRounds:      3,
		TemplateHash:   [32]byte{0xaa},
	}
}

func (env *testEnv) create(t *testing.T, params QuestionParams, salt [32]byte) [32]byte {
	t.Helper()
	q, err := env.engine.CreateQuestion(env.creator, params, salt)
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q.ID
}

func (env *testEnv) reveal(t *testing.T, id [32]byte, reporter [20]byte, encoded [32]byte, bond int64) {
	t.Helper()
	salt := [32]byte{0x99}
	commit := CommitHash(id, encoded, salt, reporter)
	if err := env.engine.Commit(reporter, id, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, encoded, salt, big.NewInt(bond)); err != nil {
		t.Fatalf("reveal: %v", err)
	}
}

func (env *testEnv) vaultAddr(t *testing.T) [20]byte {
	t.Helper()
	vault, err := env.state.OracleVaultAddress("PDK")
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}
	return vault
}

func TestCreateQuestionDeterministicID(t *testing.T) {
	env := newTestEnv(t)
	params := binaryParams()
	salt := [32]byte{0x01}

	id := env.create(t, params, salt)
	if id != QuestionID(params, salt) {
		t.Fatal("stored id does not match the deterministic hash")
	}
	if _, err := env.engine.CreateQuestion(env.creator, params, salt); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// A different salt yields a fresh id for identical params.
	other := env.create(t, params, [32]byte{0x02})
	if other == id {
		t.Fatal("distinct salts collided")
	}
}

func TestCreateQuestionRequiresCreatorRole(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.CreateQuestion(addr(0x55), binaryParams(), [32]byte{0x01}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateQuestionValidatesBounds(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name   string
		mutate func(*QuestionParams)
	}{
		{"timeout too short", func(p *QuestionParams) { p.Timeout = MinTimeoutSeconds - 1 }},
		{"timeout too long", func(p *QuestionParams) { p.Timeout = MaxTimeoutSeconds + 1 }},
		{"multiplier too small", func(p *QuestionParams) { p.BondMultiplier = MinBondMultiplier - 1 }},
		{"multiplier too large", func(p *QuestionParams) { p.BondMultiplier = MaxBondMultiplier + 1 }},
		{"zero rounds", func(p *QuestionParams) { p.MaxRounds = 0 }},
		{"too many rounds", func(p *QuestionParams) { p.MaxRounds = MaxMaxRounds + 1 }},
		{"categorical needs options", func(p *QuestionParams) { p.Type = QuestionTypeCategorical; p.Options = 1 }},
		{"scalar needs bounds", func(p *QuestionParams) { p.Type = QuestionTypeScalar }},
		{"opening too far out", func(p *QuestionParams) { p.OpeningTs = testNow + MaxOpeningLeadSeconds + 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := binaryParams()
			tc.mutate(&params)
			if _, err := env.engine.CreateQuestion(env.creator, params, [32]byte{0x01}); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestCommitBeforeOpeningRejected(t *testing.T) {
	env := newTestEnv(t)
	params := binaryParams()
	params.OpeningTs = testNow + 1_000
	id := env.create(t, params, [32]byte{0x01})

	if err := env.engine.Commit(addr(0x10), id, [32]byte{0x01}); !errors.Is(err, ErrBeforeOpening) {
		t.Fatalf("expected ErrBeforeOpening, got %v", err)
	}

	env.now = params.OpeningTs
	if err := env.engine.Commit(addr(0x10), id, [32]byte{0x01}); err != nil {
		t.Fatalf("commit at opening time: %v", err)
	}
}

func TestCommitOverwritesPendingCommitment(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter := addr(0x10)

	if err := env.engine.Commit(reporter, id, [32]byte{0x01}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := env.engine.Commit(reporter, id, [32]byte{0x02}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	stored, ok, err := env.engine.PendingCommit(id, reporter)
	if err != nil || !ok {
		t.Fatalf("pending commit: ok=%v err=%v", ok, err)
	}
	if stored != ([32]byte{0x02}) {
		t.Fatal("commit was not overwritten")
	}
}

func TestRevealRejectsMismatchedCommitment(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 1_000)

	encoded := EncodeBool(true)
	salt := [32]byte{0x42}
	if err := env.engine.Commit(reporter, id, CommitHash(id, encoded, salt, reporter)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Wrong salt, wrong outcome, and a stranger with no commit all fail.
	if err := env.engine.Reveal(reporter, id, encoded, [32]byte{0x43}, big.NewInt(100)); !errors.Is(err, ErrBadCommit) {
		t.Fatalf("wrong salt: expected ErrBadCommit, got %v", err)
	}
	if err := env.engine.Reveal(reporter, id, EncodeBool(false), salt, big.NewInt(100)); !errors.Is(err, ErrBadCommit) {
		t.Fatalf("wrong outcome: expected ErrBadCommit, got %v", err)
	}
	if err := env.engine.Reveal(addr(0x11), id, encoded, salt, big.NewInt(100)); !errors.Is(err, ErrBadCommit) {
		t.Fatalf("no commitment: expected ErrBadCommit, got %v", err)
	}

	// The failed reveals must not have consumed the commitment.
	if err := env.engine.Reveal(reporter, id, encoded, salt, big.NewInt(100)); err != nil {
		t.Fatalf("matching reveal: %v", err)
	}
}

func TestRevealEnforcesBondLadder(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	alice, bob := addr(0x10), addr(0x11)
	env.state.fund(alice, 10_000)
	env.state.fund(bob, 10_000)

	encoded := EncodeBool(true)
	salt := [32]byte{0x42}
	if err := env.engine.Commit(alice, id, CommitHash(id, encoded, salt, alice)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(alice, id, encoded, salt, big.NewInt(99)); !errors.Is(err, ErrBondTooLow) {
		t.Fatalf("expected ErrBondTooLow below the base bond, got %v", err)
	}
	if err := env.engine.Reveal(alice, id, encoded, salt, big.NewInt(100)); err != nil {
		t.Fatalf("base reveal: %v", err)
	}

	counter := EncodeBool(false)
	if err := env.engine.Commit(bob, id, CommitHash(id, counter, salt, bob)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(bob, id, counter, salt, big.NewInt(199)); !errors.Is(err, ErrBondTooLow) {
		t.Fatalf("expected ErrBondTooLow below 2x, got %v", err)
	}
	if err := env.engine.Reveal(bob, id, counter, salt, big.NewInt(200)); err != nil {
		t.Fatalf("escalating reveal: %v", err)
	}

	best, err := env.engine.BestAnswer(id)
	if err != nil {
		t.Fatalf("best answer: %v", err)
	}
	if best.Reporter != bob || best.Encoded != counter || best.Bond.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected best answer %+v", best)
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Round != 2 || q.TotalBonds.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected round/pool: %d / %s", q.Round, q.TotalBonds)
	}

	bonded, err := env.engine.BondedBy(id, alice)
	if err != nil || bonded.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice bonded %v err %v", bonded, err)
	}
}

func TestRevealValidatesOutcomeDomain(t *testing.T) {
	env := newTestEnv(t)
	params := QuestionParams{
		Type:           QuestionTypeCategorical,
		Options:        3,
		Timeout:        300,
		BondMultiplier: 2,
		MaxRounds:      3,
		TemplateHash:   [32]byte{0xaa},
	}
	id := env.create(t, params, [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 1_000)

	outOfRange, err := EncodeBig(big.NewInt(3))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	salt := [32]byte{0x42}
	if err := env.engine.Commit(reporter, id, CommitHash(id, outOfRange, salt, reporter)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, outOfRange, salt, big.NewInt(100)); !errors.Is(err, ErrBadOutcome) {
		t.Fatalf("expected ErrBadOutcome, got %v", err)
	}

	inRange, err := EncodeBig(big.NewInt(2))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := env.engine.Commit(reporter, id, CommitHash(id, inRange, salt, reporter)); err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, inRange, salt, big.NewInt(100)); err != nil {
		t.Fatalf("reveal in range: %v", err)
	}
}

func TestScalarOutcomeBounds(t *testing.T) {
	env := newTestEnv(t)
	params := QuestionParams{
		Type:           QuestionTypeScalar,
		Min:            big.NewInt(10),
		Max:            big.NewInt(20),
		Timeout:        300,
		BondMultiplier: 2,
		MaxRounds:      3,
		TemplateHash:   [32]byte{0xaa},
	}
	id := env.create(t, params, [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 1_000)

	salt := [32]byte{0x42}
	below, _ := EncodeBig(big.NewInt(9))
	if err := env.engine.Commit(reporter, id, CommitHash(id, below, salt, reporter)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, below, salt, big.NewInt(100)); !errors.Is(err, ErrBadOutcome) {
		t.Fatalf("below min: expected ErrBadOutcome, got %v", err)
	}

	edge, _ := EncodeBig(big.NewInt(20))
	if err := env.engine.Commit(reporter, id, CommitHash(id, edge, salt, reporter)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, edge, salt, big.NewInt(100)); err != nil {
		t.Fatalf("inclusive max: %v", err)
	}
}

func TestAutoEscalationAtRoundLimit(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	a, b, c := addr(0x10), addr(0x11), addr(0x12)
	env.state.fund(a, 10_000)
	env.state.fund(b, 10_000)
	env.state.fund(c, 10_000)

	env.reveal(t, id, a, EncodeBool(true), 100)
	env.reveal(t, id, b, EncodeBool(false), 200)
	env.reveal(t, id, c, EncodeBool(true), 400)

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Status != StatusArbitrating {
		t.Fatalf("expected arbitrating after round limit, got %s", q.Status)
	}
	if q.Escalator != ([20]byte{}) || q.EscalatorBond.Sign() != 0 {
		t.Fatal("auto-escalation must not record an escalator or charge a bond")
	}
	if len(env.arbitrator.requests) != 1 || env.arbitrator.requests[0] != id {
		t.Fatalf("expected one arbitration request for %x", id)
	}

	evt := env.emitter.last(t, EventTypeEscalated)
	if evt.Attributes["auto"] != "true" {
		t.Fatalf("expected auto escalation attribute, got %v", evt.Attributes)
	}

	remaining, err := env.engine.RemainingLiveness(id)
	if err != nil || remaining != ArbitrationPending {
		t.Fatalf("expected arbitration-pending liveness, got %d err %v", remaining, err)
	}
}

func TestTimeoutFinalizePaysReporterAndSink(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	alice, bob := addr(0x10), addr(0x11)
	env.state.fund(alice, 10_000)
	env.state.fund(bob, 10_000)

	env.reveal(t, id, alice, EncodeBool(true), 100)
	env.reveal(t, id, bob, EncodeBool(false), 200)

	if err := env.engine.Finalize(id); !errors.Is(err, ErrLivenessNotExpired) {
		t.Fatalf("expected ErrLivenessNotExpired, got %v", err)
	}

	// The window restarts from the last reveal, and expiry is strict.
	env.now = testNow + 300
	if err := env.engine.Finalize(id); !errors.Is(err, ErrLivenessNotExpired) {
		t.Fatalf("expected strict expiry, got %v", err)
	}
	env.now = testNow + 301
	if err := env.engine.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Pool 300, fee 250 bps -> 7 to the sink, 293 to bob.
	if got := env.state.balancePDK(bob); got.Cmp(big.NewInt(10_000-200+293)) != 0 {
		t.Fatalf("bob balance %s", got)
	}
	if got := env.state.balancePDK(env.feeSink); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("fee sink balance %s", got)
	}
	if got := env.state.balancePDK(env.vaultAddr(t)); got.Sign() != 0 {
		t.Fatalf("vault not drained: %s", got)
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Status != StatusFinalized || q.FinalOutcome != EncodeBool(false) || q.Winner != bob {
		t.Fatalf("unexpected settlement %+v", q)
	}

	if err := env.engine.Finalize(id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("double finalize: expected ErrWrongStatus, got %v", err)
	}

	evt := env.emitter.last(t, EventTypeFinalized)
	if evt.Attributes["arbitrated"] != "false" || evt.Attributes["payout"] != "293" {
		t.Fatalf("unexpected finalized attributes %v", evt.Attributes)
	}
}

func TestFinalizeRequiresAnAnswer(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	env.now = testNow + 10_000
	if err := env.engine.Finalize(id); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}
}

func TestExplicitEscalationChargesBondOnce(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter, challenger := addr(0x10), addr(0x20)
	env.state.fund(reporter, 10_000)
	env.state.fund(challenger, 10_000)

	env.reveal(t, id, reporter, EncodeBool(true), 100)

	if err := env.engine.Escalate(challenger, id); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if got := env.state.balancePDK(challenger); got.Cmp(big.NewInt(9_500)) != 0 {
		t.Fatalf("escalation bond not pulled: %s", got)
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Status != StatusArbitrating || q.Escalator != challenger {
		t.Fatalf("unexpected escalation state %+v", q)
	}
	// Escalator bond is escrowed next to the pool but never joins it.
	if q.TotalBonds.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("escalation bond leaked into the pool: %s", q.TotalBonds)
	}

	if err := env.engine.Escalate(addr(0x21), id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("second escalation: expected ErrWrongStatus, got %v", err)
	}
	if len(env.arbitrator.requests) != 1 {
		t.Fatalf("expected exactly one arbitration request, got %d", len(env.arbitrator.requests))
	}

	// A question past its window can still only settle through the ruling.
	env.now = testNow + 10_000
	if err := env.engine.Finalize(id); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("timeout finalize during arbitration: expected ErrWrongStatus, got %v", err)
	}
}

func TestRulingUpholdsBestAnswerForfeitsEscalatorBond(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter, challenger := addr(0x10), addr(0x20)
	env.state.fund(reporter, 10_000)
	env.state.fund(challenger, 10_000)

	outcome := EncodeBool(true)
	env.reveal(t, id, reporter, outcome, 100)
	if err := env.engine.Escalate(challenger, id); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	if err := env.engine.ReceiveArbitratorRuling(env.arbAddr, id, outcome, [20]byte{}); err != nil {
		t.Fatalf("ruling: %v", err)
	}

	// Pool 100, fee 2 (250 bps), payout 98; escalator's 500 forfeits to sink.
	if got := env.state.balancePDK(reporter); got.Cmp(big.NewInt(10_000-100+98)) != 0 {
		t.Fatalf("reporter balance %s", got)
	}
	if got := env.state.balancePDK(challenger); got.Cmp(big.NewInt(9_500)) != 0 {
		t.Fatalf("challenger should not be refunded: %s", got)
	}
	if got := env.state.balancePDK(env.feeSink); got.Cmp(big.NewInt(502)) != 0 {
		t.Fatalf("fee sink balance %s", got)
	}
	if got := env.state.balancePDK(env.vaultAddr(t)); got.Sign() != 0 {
		t.Fatalf("vault not drained: %s", got)
	}
}

func TestRulingOverturnsAndRefundsEscalator(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter, challenger := addr(0x10), addr(0x20)
	env.state.fund(reporter, 10_000)
	env.state.fund(challenger, 10_000)

	env.reveal(t, id, reporter, EncodeBool(true), 100)
	if err := env.engine.Escalate(challenger, id); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	ruled := EncodeBool(false)
	if err := env.engine.ReceiveArbitratorRuling(env.arbAddr, id, ruled, challenger); err != nil {
		t.Fatalf("ruling: %v", err)
	}

	// Challenger wins the pool net of fee and recovers the escalation bond.
	if got := env.state.balancePDK(challenger); got.Cmp(big.NewInt(10_000-500+98+500)) != 0 {
		t.Fatalf("challenger balance %s", got)
	}
	if got := env.state.balancePDK(reporter); got.Cmp(big.NewInt(9_900)) != 0 {
		t.Fatalf("reporter should stay slashed: %s", got)
	}
	if got := env.state.balancePDK(env.vaultAddr(t)); got.Sign() != 0 {
		t.Fatalf("vault not drained: %s", got)
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.FinalOutcome != ruled || q.Winner != challenger {
		t.Fatalf("unexpected settlement %+v", q)
	}
}

func TestRulingMismatchWithoutPayeeSlashesPool(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter, challenger := addr(0x10), addr(0x20)
	env.state.fund(reporter, 10_000)
	env.state.fund(challenger, 10_000)

	env.reveal(t, id, reporter, EncodeBool(true), 100)
	if err := env.engine.Escalate(challenger, id); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	if err := env.engine.ReceiveArbitratorRuling(env.arbAddr, id, EncodeBool(false), [20]byte{}); err != nil {
		t.Fatalf("ruling: %v", err)
	}

	// The whole pool lands on the sink; the escalator was vindicated and is
	// made whole.
	if got := env.state.balancePDK(env.feeSink); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("fee sink balance %s", got)
	}
	if got := env.state.balancePDK(challenger); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("challenger balance %s", got)
	}
	if got := env.state.balancePDK(env.vaultAddr(t)); got.Sign() != 0 {
		t.Fatalf("vault not drained: %s", got)
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Winner != ([20]byte{}) {
		t.Fatalf("slash must record no winner, got %x", q.Winner)
	}
}

func TestRulingRejectsWrongCallerAndStatus(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 10_000)
	env.reveal(t, id, reporter, EncodeBool(true), 100)

	if err := env.engine.ReceiveArbitratorRuling(addr(0x55), id, EncodeBool(true), [20]byte{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// Still open: a ruling cannot land before escalation.
	if err := env.engine.ReceiveArbitratorRuling(env.arbAddr, id, EncodeBool(true), [20]byte{}); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("expected ErrWrongStatus, got %v", err)
	}
}

func TestConsumerNotificationIsBestEffort(t *testing.T) {
	for _, tc := range []struct {
		name     string
		consumer *mockConsumer
	}{
		{"error", &mockConsumer{err: errors.New("backend down")}},
		{"panic", &mockConsumer{panicked: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			params := binaryParams()
			params.Consumer = addr(0x77)
			id := env.create(t, params, [32]byte{0x01})
			reporter := addr(0x10)
			env.state.fund(reporter, 10_000)
			env.reveal(t, id, reporter, EncodeBool(true), 100)

			env.engine.SetConsumerResolver(func(target [20]byte) Consumer {
				if target != params.Consumer {
					t.Fatalf("resolver got %x", target)
				}
				return tc.consumer
			})

			env.now = testNow + 301
			if err := env.engine.Finalize(id); err != nil {
				t.Fatalf("finalize must not surface consumer failure: %v", err)
			}
			if tc.consumer.calls != 1 || tc.consumer.lastID != id {
				t.Fatalf("consumer not invoked: %+v", tc.consumer)
			}
			status, err := env.engine.Status(id)
			if err != nil || status != StatusFinalized {
				t.Fatalf("settlement rolled back: %v %v", status, err)
			}
			evt := env.emitter.last(t, EventTypeConsumerFailed)
			if evt.Attributes["error"] == "" {
				t.Fatalf("missing error attribute: %v", evt.Attributes)
			}
		})
	}
}

func TestConsumerSuccessEmitsNoFailure(t *testing.T) {
	env := newTestEnv(t)
	params := binaryParams()
	params.Consumer = addr(0x77)
	id := env.create(t, params, [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 10_000)
	env.reveal(t, id, reporter, EncodeBool(true), 100)

	consumer := &mockConsumer{}
	env.engine.SetConsumerResolver(func([20]byte) Consumer { return consumer })

	env.now = testNow + 301
	if err := env.engine.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if consumer.outcome != EncodeBool(true) {
		t.Fatalf("consumer saw outcome %x", consumer.outcome)
	}
	for _, evt := range env.emitter.events {
		if evt.EventType() == EventTypeConsumerFailed {
			t.Fatal("unexpected consumer failure event")
		}
	}
}

func TestPauseBlocksEntryPointsButNotSettlement(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 10_000)
	env.reveal(t, id, reporter, EncodeBool(true), 100)

	if err := env.engine.SetPaused(env.owner, true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := env.engine.CreateQuestion(env.creator, binaryParams(), [32]byte{0x02}); err == nil {
		t.Fatal("create should be blocked while paused")
	}
	if err := env.engine.Commit(reporter, id, [32]byte{0x01}); err == nil {
		t.Fatal("commit should be blocked while paused")
	}
	if err := env.engine.Escalate(addr(0x20), id); err == nil {
		t.Fatal("escalate should be blocked while paused")
	}

	// Settlement of already-answered questions continues under pause.
	env.now = testNow + 301
	if err := env.engine.Finalize(id); err != nil {
		t.Fatalf("finalize under pause: %v", err)
	}

	if err := env.engine.SetPaused(env.owner, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := env.engine.CreateQuestion(env.creator, binaryParams(), [32]byte{0x03}); err != nil {
		t.Fatalf("create after unpause: %v", err)
	}
}

func TestRevealInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, binaryParams(), [32]byte{0x01})
	reporter := addr(0x10)
	env.state.fund(reporter, 50)

	encoded := EncodeBool(true)
	salt := [32]byte{0x42}
	if err := env.engine.Commit(reporter, id, CommitHash(id, encoded, salt, reporter)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.Reveal(reporter, id, encoded, salt, big.NewInt(100)); err == nil {
		t.Fatal("expected insufficient balance failure")
	}

	q, err := env.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Round != 0 || q.Best != nil || q.TotalBonds.Sign() != 0 {
		t.Fatalf("failed reveal mutated the question: %+v", q)
	}
	if got := env.state.balancePDK(reporter); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("reporter balance changed: %s", got)
	}
}
