package oracle

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/DigitalDominance/Predikt/core/types"
)

const (
	EventTypeQuestionCreated   = "oracle.question.created"
	EventTypeCommitted         = "oracle.committed"
	EventTypeRevealed          = "oracle.revealed"
	EventTypeEscalated         = "oracle.escalated"
	EventTypeRuled             = "oracle.ruled"
	EventTypeFinalized         = "oracle.finalized"
	EventTypeConsumerFailed    = "oracle.consumer_failed"
	EventTypeOwnershipProposed = "oracle.ownership.proposed"
	EventTypeOwnershipAccepted = "oracle.ownership.accepted"
)

// NewQuestionCreatedEvent returns the canonical payload for a newly created
// question.
func NewQuestionCreatedEvent(q *Question) *types.Event {
	attrs := baseAttrs(q)
	if q != nil {
		attrs["type"] = q.Params.Type.String()
		attrs["timeout"] = strconv.FormatInt(q.Params.Timeout, 10)
		attrs["bondMultiplier"] = strconv.FormatUint(uint64(q.Params.BondMultiplier), 10)
		attrs["maxRounds"] = strconv.FormatUint(uint64(q.Params.MaxRounds), 10)
		attrs["templateHash"] = hex.EncodeToString(q.Params.TemplateHash[:])
		attrs["openingTs"] = strconv.FormatInt(q.Params.OpeningTs, 10)
		if q.Params.Consumer != ([20]byte{}) {
			attrs["consumer"] = hex.EncodeToString(q.Params.Consumer[:])
		}
	}
	return &types.Event{Type: EventTypeQuestionCreated, Attributes: attrs}
}

// NewCommittedEvent returns the payload emitted when a commitment hash is
// stored or overwritten.
func NewCommittedEvent(q *Question, reporter [20]byte) *types.Event {
	attrs := baseAttrs(q)
	attrs["reporter"] = hex.EncodeToString(reporter[:])
	return &types.Event{Type: EventTypeCommitted, Attributes: attrs}
}

// NewRevealedEvent returns the payload emitted when a reveal replaces the
// best answer.
func NewRevealedEvent(q *Question) *types.Event {
	attrs := baseAttrs(q)
	if q != nil && q.Best != nil {
		attrs["reporter"] = hex.EncodeToString(q.Best.Reporter[:])
		attrs["outcome"] = hex.EncodeToString(q.Best.Encoded[:])
		attrs["bond"] = bigString(q.Best.Bond)
	}
	if q != nil {
		attrs["round"] = strconv.FormatUint(uint64(q.Round), 10)
		attrs["totalBonds"] = bigString(q.TotalBonds)
	}
	return &types.Event{Type: EventTypeRevealed, Attributes: attrs}
}

// NewEscalatedEvent returns the payload emitted when a question enters
// arbitration, either from the round limit or an explicit escalation.
func NewEscalatedEvent(q *Question, auto bool) *types.Event {
	attrs := baseAttrs(q)
	attrs["auto"] = strconv.FormatBool(auto)
	if q != nil && q.Escalator != ([20]byte{}) {
		attrs["escalator"] = hex.EncodeToString(q.Escalator[:])
		attrs["escalatorBond"] = bigString(q.EscalatorBond)
	}
	return &types.Event{Type: EventTypeEscalated, Attributes: attrs}
}

// NewRuledEvent returns the payload emitted when the arbitrator's ruling is
// applied.
func NewRuledEvent(q *Question, payee [20]byte) *types.Event {
	attrs := baseAttrs(q)
	if q != nil {
		attrs["outcome"] = hex.EncodeToString(q.FinalOutcome[:])
		attrs["winner"] = hex.EncodeToString(q.Winner[:])
	}
	if payee != ([20]byte{}) {
		attrs["payee"] = hex.EncodeToString(payee[:])
	}
	return &types.Event{Type: EventTypeRuled, Attributes: attrs}
}

// NewFinalizedEvent returns the payload emitted when a question reaches its
// terminal status, on either settlement path.
func NewFinalizedEvent(q *Question, fee, payout *big.Int, arbitrated bool) *types.Event {
	attrs := baseAttrs(q)
	attrs["arbitrated"] = strconv.FormatBool(arbitrated)
	attrs["fee"] = bigString(fee)
	attrs["payout"] = bigString(payout)
	if q != nil {
		attrs["outcome"] = hex.EncodeToString(q.FinalOutcome[:])
		attrs["winner"] = hex.EncodeToString(q.Winner[:])
		attrs["totalBonds"] = bigString(q.TotalBonds)
	}
	return &types.Event{Type: EventTypeFinalized, Attributes: attrs}
}

// NewConsumerFailedEvent records a swallowed consumer notification failure.
func NewConsumerFailedEvent(q *Question, err error) *types.Event {
	attrs := baseAttrs(q)
	if q != nil {
		attrs["consumer"] = hex.EncodeToString(q.Params.Consumer[:])
	}
	if err != nil {
		attrs["error"] = err.Error()
	}
	return &types.Event{Type: EventTypeConsumerFailed, Attributes: attrs}
}

// NewOwnershipProposedEvent records the first half of the two-step handoff.
func NewOwnershipProposedEvent(current, pending [20]byte) *types.Event {
	return &types.Event{Type: EventTypeOwnershipProposed, Attributes: map[string]string{
		"owner":   hex.EncodeToString(current[:]),
		"pending": hex.EncodeToString(pending[:]),
	}}
}

// NewOwnershipAcceptedEvent records the completion of the handoff.
func NewOwnershipAcceptedEvent(previous, current [20]byte) *types.Event {
	return &types.Event{Type: EventTypeOwnershipAccepted, Attributes: map[string]string{
		"previous": hex.EncodeToString(previous[:]),
		"owner":    hex.EncodeToString(current[:]),
	}}
}

func baseAttrs(q *Question) map[string]string {
	attrs := make(map[string]string)
	if q != nil {
		attrs["id"] = hex.EncodeToString(q.ID[:])
		attrs["status"] = q.Status.String()
	}
	return attrs
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
