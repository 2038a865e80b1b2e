package oracle

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// QuestionType selects the outcome domain of a question.
type QuestionType uint8

const (
	QuestionTypeBinary QuestionType = iota
	QuestionTypeCategorical
	QuestionTypeScalar
)

// Valid reports whether the type value is within the supported range.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeBinary, QuestionTypeCategorical, QuestionTypeScalar:
		return true
	default:
		return false
	}
}

func (t QuestionType) String() string {
	switch t {
	case QuestionTypeBinary:
		return "binary"
	case QuestionTypeCategorical:
		return "categorical"
	case QuestionTypeScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// QuestionStatus represents the lifecycle states of a question. Absence of a
// record is the implicit initial state; transitions only ever move forward
// (open -> arbitrating -> finalized, or open -> finalized on the timeout
// path).
type QuestionStatus uint8

const (
	StatusOpen QuestionStatus = iota + 1
	StatusArbitrating
	StatusFinalized
)

// Valid reports whether the status value is within the supported range.
func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusArbitrating, StatusFinalized:
		return true
	default:
		return false
	}
}

func (s QuestionStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusArbitrating:
		return "arbitrating"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Parameter bounds enforced at question creation.
const (
	MinTimeoutSeconds int64 = 5 * 60
	MaxTimeoutSeconds int64 = 7 * 24 * 60 * 60

	MinBondMultiplier uint32 = 2
	MaxBondMultiplier uint32 = 6

	MinMaxRounds uint32 = 1
	MaxMaxRounds uint32 = 10

	// Opening times further out than this are rejected as misconfigured.
	MaxOpeningLeadSeconds int64 = 365 * 24 * 60 * 60
)

// QuestionParams is the immutable definition of a question. TemplateHash is
// the content hash of the human-readable question text and is opaque to the
// engine; DataSource is informational only.
type QuestionParams struct {
	Type           QuestionType
	Options        uint32   // outcome count, categorical only
	Min            *big.Int // scalar lower bound, inclusive
	Max            *big.Int // scalar upper bound, inclusive
	Timeout        int64    // liveness window per round, seconds
	BondMultiplier uint32
	MaxRounds      uint32
	TemplateHash   [32]byte
	DataSource     string
	Consumer       [20]byte // optional notification target, zero = none
	OpeningTs      int64    // earliest time commits are accepted
}

// Validate checks every creation-time bound against the supplied reference
// time.
func (p QuestionParams) Validate(now int64) error {
	if !p.Type.Valid() {
		return fmt.Errorf("oracle: invalid question type %d", p.Type)
	}
	if p.Timeout < MinTimeoutSeconds || p.Timeout > MaxTimeoutSeconds {
		return fmt.Errorf("oracle: timeout %d outside [%d,%d]", p.Timeout, MinTimeoutSeconds, MaxTimeoutSeconds)
	}
	if p.BondMultiplier < MinBondMultiplier || p.BondMultiplier > MaxBondMultiplier {
		return fmt.Errorf("oracle: bond multiplier %d outside [%d,%d]", p.BondMultiplier, MinBondMultiplier, MaxBondMultiplier)
	}
	if p.MaxRounds < MinMaxRounds || p.MaxRounds > MaxMaxRounds {
		return fmt.Errorf("oracle: max rounds %d outside [%d,%d]", p.MaxRounds, MinMaxRounds, MaxMaxRounds)
	}
	if p.OpeningTs > now+MaxOpeningLeadSeconds {
		return fmt.Errorf("oracle: opening time too far in the future")
	}
	switch p.Type {
	case QuestionTypeBinary:
		if p.Options != 0 {
			return fmt.Errorf("oracle: binary question must not declare options")
		}
		if p.Min != nil || p.Max != nil {
			return fmt.Errorf("oracle: binary question must not declare scalar bounds")
		}
	case QuestionTypeCategorical:
		if p.Options < 2 {
			return fmt.Errorf("oracle: categorical question needs at least two options")
		}
		if p.Min != nil || p.Max != nil {
			return fmt.Errorf("oracle: categorical question must not declare scalar bounds")
		}
	case QuestionTypeScalar:
		if p.Options != 0 {
			return fmt.Errorf("oracle: scalar question must not declare options")
		}
		if p.Min == nil || p.Max == nil {
			return fmt.Errorf("oracle: scalar question requires both bounds")
		}
		if p.Min.Sign() < 0 {
			return fmt.Errorf("oracle: scalar lower bound must not be negative")
		}
		if p.Min.Cmp(p.Max) >= 0 {
			return fmt.Errorf("oracle: scalar bounds must satisfy min < max")
		}
		if p.Max.BitLen() > 256 {
			return fmt.Errorf("oracle: scalar upper bound exceeds 256 bits")
		}
	}
	return nil
}

// ValidateOutcome checks an encoded outcome word against the question's
// domain.
func (p QuestionParams) ValidateOutcome(encoded [32]byte) error {
	value := new(big.Int).SetBytes(encoded[:])
	switch p.Type {
	case QuestionTypeBinary:
		if value.Cmp(big.NewInt(1)) > 0 {
			return ErrBadOutcome
		}
	case QuestionTypeCategorical:
		if value.Cmp(new(big.Int).SetUint64(uint64(p.Options))) >= 0 {
			return ErrBadOutcome
		}
	case QuestionTypeScalar:
		if p.Min == nil || p.Max == nil {
			return ErrBadOutcome
		}
		if value.Cmp(p.Min) < 0 || value.Cmp(p.Max) > 0 {
			return ErrBadOutcome
		}
	default:
		return ErrBadOutcome
	}
	return nil
}

// Answer is the highest-bonded revealed answer currently standing. It is
// replaced wholesale on every accepted reveal.
type Answer struct {
	Reporter   [20]byte
	Encoded    [32]byte
	Bond       *big.Int
	RevealedAt int64
}

// Clone returns a deep copy of the answer.
func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Bond = cloneBigInt(a.Bond)
	return &clone
}

// Question captures the immutable parameters and mutable lifecycle state of a
// single oracle question. The identifier is the keccak256 hash of the
// parameters and a caller-supplied salt, giving deterministic, predictable
// IDs.
type Question struct {
	ID            [32]byte
	Params        QuestionParams
	Status        QuestionStatus
	Best          *Answer
	Round         uint32
	LastActionTs  int64
	TotalBonds    *big.Int // running sum of every reveal bond pulled into escrow
	Escalator     [20]byte // zero unless explicitly escalated
	EscalatorBond *big.Int
	CreatedAt     int64
	FinalOutcome  [32]byte // set at finalization
	Winner        [20]byte // zero when the pool was slashed
}

// Clone returns a deep copy of the question so callers can safely mutate the
// copy without affecting the stored instance.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	clone := *q
	clone.Best = q.Best.Clone()
	clone.TotalBonds = cloneBigInt(q.TotalBonds)
	clone.EscalatorBond = cloneBigInt(q.EscalatorBond)
	if q.Params.Min != nil {
		clone.Params.Min = new(big.Int).Set(q.Params.Min)
	}
	if q.Params.Max != nil {
		clone.Params.Max = new(big.Int).Set(q.Params.Max)
	}
	return &clone
}

// SanitizeQuestion validates and normalises a stored question, returning a
// cloned instance with non-nil amount fields. The original is not mutated.
func SanitizeQuestion(q *Question) (*Question, error) {
	if q == nil {
		return nil, fmt.Errorf("oracle: nil question")
	}
	if !q.Status.Valid() {
		return nil, fmt.Errorf("oracle: invalid question status %d", q.Status)
	}
	clone := q.Clone()
	if clone.TotalBonds.Sign() < 0 {
		return nil, fmt.Errorf("oracle: total bonds must not be negative")
	}
	if clone.EscalatorBond.Sign() < 0 {
		return nil, fmt.Errorf("oracle: escalator bond must not be negative")
	}
	if clone.Best != nil && clone.Best.Bond.Sign() <= 0 {
		return nil, fmt.Errorf("oracle: best answer bond must be positive")
	}
	return clone, nil
}

// NormalizeToken ensures the provided token symbol matches a supported value
// ("PDK" or "WKAS") and returns the canonical uppercase form.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case "PDK", "WKAS":
		return trimmed, nil
	default:
		return "", fmt.Errorf("unsupported oracle token: %s", symbol)
	}
}

// QuestionID computes the deterministic identifier for a (params, salt) pair.
// Every field feeds the hash in a fixed order so off-chain indexers can
// predict the id before submission.
func QuestionID(p QuestionParams, salt [32]byte) [32]byte {
	var fixed [1 + 4 + 4 + 4 + 8 + 8]byte
	fixed[0] = byte(p.Type)
	binary.BigEndian.PutUint32(fixed[1:5], p.Options)
	binary.BigEndian.PutUint32(fixed[5:9], p.BondMultiplier)
	binary.BigEndian.PutUint32(fixed[9:13], p.MaxRounds)
	binary.BigEndian.PutUint64(fixed[13:21], uint64(p.Timeout))
	binary.BigEndian.PutUint64(fixed[21:29], uint64(p.OpeningTs))
	minWord := bigWord(p.Min)
	maxWord := bigWord(p.Max)
	source := ethcrypto.Keccak256([]byte(p.DataSource))
	hash := ethcrypto.Keccak256Hash(
		fixed[:],
		minWord[:],
		maxWord[:],
		p.TemplateHash[:],
		source,
		p.Consumer[:],
		salt[:],
	)
	var id [32]byte
	copy(id[:], hash[:])
	return id
}

// CommitHash binds a reporter's future reveal to the question. The reporter
// address is part of the preimage so observers cannot replay someone else's
// commitment.
func CommitHash(id [32]byte, encoded [32]byte, salt [32]byte, reporter [20]byte) [32]byte {
	hash := ethcrypto.Keccak256Hash(id[:], encoded[:], salt[:], reporter[:])
	var out [32]byte
	copy(out[:], hash[:])
	return out
}

// EncodeBool returns the canonical outcome word for a binary answer.
func EncodeBool(v bool) [32]byte {
	var out [32]byte
	if v {
		out[31] = 1
	}
	return out
}

// EncodeBig returns the canonical outcome word for a categorical index or
// scalar value.
func EncodeBig(v *big.Int) ([32]byte, error) {
	var out [32]byte
	if v == nil || v.Sign() < 0 {
		return out, fmt.Errorf("oracle: outcome value must be non-negative")
	}
	if v.BitLen() > 256 {
		return out, fmt.Errorf("oracle: outcome value exceeds 256 bits")
	}
	v.FillBytes(out[:])
	return out, nil
}

func bigWord(v *big.Int) [32]byte {
	var out [32]byte
	if v == nil || v.Sign() <= 0 || v.BitLen() > 256 {
		return out
	}
	v.FillBytes(out[:])
	return out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
