package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DigitalDominance/Predikt/native/oracle"
	"github.com/DigitalDominance/Predikt/storage"
)

// Manager persists oracle questions, per-reporter bookkeeping, vault balances
// and accounts in a keyed store. Records are RLP encoded under keccak-hashed
// prefixed keys so any Database backend yields the same layout.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	questionPrefix  = []byte("oracle/question/")
	commitPrefix    = []byte("oracle/commit/")
	bondedPrefix    = []byte("oracle/bonded/")
	vaultPrefix     = []byte("oracle/vault/")
	vaultSeedPrefix = []byte("oracle/module/vault/")
)

func questionKey(id [32]byte) []byte {
	return ethcrypto.Keccak256(questionPrefix, id[:])
}

func commitKey(id [32]byte, reporter [20]byte) []byte {
	return ethcrypto.Keccak256(commitPrefix, id[:], reporter[:])
}

func bondedKey(id [32]byte, reporter [20]byte) []byte {
	return ethcrypto.Keccak256(bondedPrefix, id[:], reporter[:])
}

func vaultBalanceKey(token string, id [32]byte) []byte {
	return ethcrypto.Keccak256(vaultPrefix, []byte(token), id[:])
}

// storedParams mirrors oracle.QuestionParams with RLP-friendly field types.
type storedParams struct {
	Type           uint8
	Options        uint32
	Min            *big.Int
	Max            *big.Int
	Timeout        uint64
	BondMultiplier uint32
	MaxRounds      uint32
	TemplateHash   [32]byte
	DataSource     string
	Consumer       [20]byte
	OpeningTs      uint64
}

type storedAnswer struct {
	Reporter   [20]byte
	Encoded    [32]byte
	Bond       *big.Int
	RevealedAt uint64
}

type storedQuestion struct {
	ID            [32]byte
	Params        storedParams
	Status        uint8
	HasBest       bool
	Best          storedAnswer
	Round         uint32
	LastActionTs  uint64
	TotalBonds    *big.Int
	Escalator     [20]byte
	EscalatorBond *big.Int
	CreatedAt     uint64
	FinalOutcome  [32]byte
	Winner        [20]byte
}

func toStoredQuestion(q *oracle.Question) *storedQuestion {
	stored := &storedQuestion{
		ID: q.ID,
		Params: storedParams{
			Type:           uint8(q.Params.Type),
			Options:        q.Params.Options,
			Min:            q.Params.Min,
			Max:            q.Params.Max,
			Timeout:        uint64(q.Params.Timeout),
			BondMultiplier: q.Params.BondMultiplier,
			MaxRounds:      q.Params.MaxRounds,
			TemplateHash:   q.Params.TemplateHash,
			DataSource:     q.Params.DataSource,
			Consumer:       q.Params.Consumer,
			OpeningTs:      uint64(q.Params.OpeningTs),
		},
		Status:        uint8(q.Status),
		Round:         q.Round,
		LastActionTs:  uint64(q.LastActionTs),
		TotalBonds:    q.TotalBonds,
		Escalator:     q.Escalator,
		EscalatorBond: q.EscalatorBond,
		CreatedAt:     uint64(q.CreatedAt),
		FinalOutcome:  q.FinalOutcome,
		Winner:        q.Winner,
	}
	if q.Best != nil {
		stored.HasBest = true
		stored.Best = storedAnswer{
			Reporter:   q.Best.Reporter,
			Encoded:    q.Best.Encoded,
			Bond:       q.Best.Bond,
			RevealedAt: uint64(q.Best.RevealedAt),
		}
	}
	return stored
}

func fromStoredQuestion(stored *storedQuestion) *oracle.Question {
	q := &oracle.Question{
		ID: stored.ID,
		Params: oracle.QuestionParams{
			Type:           oracle.QuestionType(stored.Params.Type),
			Options:        stored.Params.Options,
			Timeout:        int64(stored.Params.Timeout),
			BondMultiplier: stored.Params.BondMultiplier,
			MaxRounds:      stored.Params.MaxRounds,
			TemplateHash:   stored.Params.TemplateHash,
			DataSource:     stored.Params.DataSource,
			Consumer:       stored.Params.Consumer,
			OpeningTs:      int64(stored.Params.OpeningTs),
		},
		Status:        oracle.QuestionStatus(stored.Status),
		Round:         stored.Round,
		LastActionTs:  int64(stored.LastActionTs),
		TotalBonds:    stored.TotalBonds,
		Escalator:     stored.Escalator,
		EscalatorBond: stored.EscalatorBond,
		CreatedAt:     int64(stored.CreatedAt),
		FinalOutcome:  stored.FinalOutcome,
		Winner:        stored.Winner,
	}
	if q.Params.Type == oracle.QuestionTypeScalar {
		q.Params.Min = stored.Params.Min
		q.Params.Max = stored.Params.Max
	}
	if stored.HasBest {
		q.Best = &oracle.Answer{
			Reporter:   stored.Best.Reporter,
			Encoded:    stored.Best.Encoded,
			Bond:       stored.Best.Bond,
			RevealedAt: int64(stored.Best.RevealedAt),
		}
	}
	return q
}

// OraclePut sanitises and persists the question record.
func (m *Manager) OraclePut(q *oracle.Question) error {
	sanitized, err := oracle.SanitizeQuestion(q)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(toStoredQuestion(sanitized))
	if err != nil {
		return fmt.Errorf("state: encode question: %w", err)
	}
	return m.db.Put(questionKey(sanitized.ID), encoded)
}

// OracleGet loads the question record, reporting absence via the boolean.
func (m *Manager) OracleGet(id [32]byte) (*oracle.Question, bool) {
	data, err := m.db.Get(questionKey(id))
	if err != nil {
		return nil, false
	}
	stored := new(storedQuestion)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return fromStoredQuestion(stored), true
}

// OracleCommitPut stores the reporter's commitment hash, overwriting any
// pending one.
func (m *Manager) OracleCommitPut(id [32]byte, reporter [20]byte, hash [32]byte) error {
	return m.db.Put(commitKey(id, reporter), hash[:])
}

// OracleCommitGet returns the reporter's pending commitment hash, if any.
func (m *Manager) OracleCommitGet(id [32]byte, reporter [20]byte) ([32]byte, bool, error) {
	data, err := m.db.Get(commitKey(id, reporter))
	if errors.Is(err, storage.ErrNotFound) {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, err
	}
	if len(data) != 32 {
		return [32]byte{}, false, fmt.Errorf("state: malformed commitment record")
	}
	var hash [32]byte
	copy(hash[:], data)
	return hash, true, nil
}

// OracleCommitDelete consumes the reporter's pending commitment.
func (m *Manager) OracleCommitDelete(id [32]byte, reporter [20]byte) error {
	return m.db.Delete(commitKey(id, reporter))
}

// OracleBondedGet returns the cumulative bond the reporter has contributed.
func (m *Manager) OracleBondedGet(id [32]byte, reporter [20]byte) (*big.Int, error) {
	data, err := m.db.Get(bondedKey(id, reporter))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(data), nil
}

// OracleBondedAdd adds to the reporter's cumulative bond bookkeeping.
func (m *Manager) OracleBondedAdd(id [32]byte, reporter [20]byte, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: bonded amount must not be negative")
	}
	current, err := m.OracleBondedGet(id, reporter)
	if err != nil {
		return err
	}
	current.Add(current, amt)
	return m.db.Put(bondedKey(id, reporter), current.Bytes())
}

// OracleVaultAddress derives the deterministic module vault address holding
// escrowed funds for the token.
func (m *Manager) OracleVaultAddress(token string) ([20]byte, error) {
	normalized, err := oracle.NormalizeToken(token)
	if err != nil {
		return [20]byte{}, err
	}
	digest := ethcrypto.Keccak256(vaultSeedPrefix, []byte(normalized))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr, nil
}

// OracleCredit increases the escrowed balance attributed to the question.
func (m *Manager) OracleCredit(id [32]byte, token string, amt *big.Int) error {
	normalized, err := oracle.NormalizeToken(token)
	if err != nil {
		return err
	}
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: negative credit")
	}
	if amt.Sign() == 0 {
		return nil
	}
	current, err := m.OracleVaultBalance(id, normalized)
	if err != nil {
		return err
	}
	current.Add(current, amt)
	return m.db.Put(vaultBalanceKey(normalized, id), current.Bytes())
}

// OracleDebit decreases the escrowed balance attributed to the question. The
// record is removed once the balance reaches zero.
func (m *Manager) OracleDebit(id [32]byte, token string, amt *big.Int) error {
	normalized, err := oracle.NormalizeToken(token)
	if err != nil {
		return err
	}
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: negative debit")
	}
	if amt.Sign() == 0 {
		return nil
	}
	current, err := m.OracleVaultBalance(id, normalized)
	if err != nil {
		return err
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("state: insufficient escrow balance")
	}
	current.Sub(current, amt)
	if current.Sign() == 0 {
		return m.db.Delete(vaultBalanceKey(normalized, id))
	}
	return m.db.Put(vaultBalanceKey(normalized, id), current.Bytes())
}

// OracleVaultBalance returns the escrowed balance attributed to the question.
func (m *Manager) OracleVaultBalance(id [32]byte, token string) (*big.Int, error) {
	normalized, err := oracle.NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	data, err := m.db.Get(vaultBalanceKey(normalized, id))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(data), nil
}
