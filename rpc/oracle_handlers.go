package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/DigitalDominance/Predikt/crypto"
	"github.com/DigitalDominance/Predikt/native/common"
	"github.com/DigitalDominance/Predikt/native/oracle"
)

type createQuestionParams struct {
	Caller         string `json:"caller"`
	Type           string `json:"type"`
	Options        uint32 `json:"options,omitempty"`
	Min            string `json:"min,omitempty"`
	Max            string `json:"max,omitempty"`
	Timeout        int64  `json:"timeout"`
	BondMultiplier uint32 `json:"bondMultiplier"`
	MaxRounds      uint32 `json:"maxRounds"`
	TemplateHash   string `json:"templateHash"`
	DataSource     string `json:"dataSource,omitempty"`
	Consumer       string `json:"consumer,omitempty"`
	OpeningTs      int64  `json:"openingTs,omitempty"`
	Salt           string `json:"salt"`
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, req *RPCRequest) {
	var p createQuestionParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	params := oracle.QuestionParams{
		Options:        p.Options,
		Timeout:        p.Timeout,
		BondMultiplier: p.BondMultiplier,
		MaxRounds:      p.MaxRounds,
		DataSource:     p.DataSource,
		OpeningTs:      p.OpeningTs,
	}
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "binary":
		params.Type = oracle.QuestionTypeBinary
	case "categorical":
		params.Type = oracle.QuestionTypeCategorical
	case "scalar":
		params.Type = oracle.QuestionTypeScalar
	default:
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("unknown question type %q", p.Type))
		return
	}
	if params.Type == oracle.QuestionTypeScalar {
		min, err := parseAmount(p.Min)
		if err != nil {
			writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("min: %v", err))
			return
		}
		max, err := parseAmount(p.Max)
		if err != nil {
			writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("max: %v", err))
			return
		}
		params.Min, params.Max = min, max
	}
	if params.TemplateHash, err = parseHash32(p.TemplateHash); err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("templateHash: %v", err))
		return
	}
	if p.Consumer != "" {
		if params.Consumer, err = parseAddress(p.Consumer); err != nil {
			writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("consumer: %v", err))
			return
		}
	}
	salt, err := parseHash32(p.Salt)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("salt: %v", err))
		return
	}
	q, err := s.engine.CreateQuestion(caller, params, salt)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, questionToJSON(q))
}

type commitParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Hash   string `json:"hash"`
}

func (s *Server) handleCommit(w http.ResponseWriter, req *RPCRequest) {
	var p commitParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, id, ok := parseCallerAndID(w, req, p.Caller, p.ID)
	if !ok {
		return
	}
	hash, err := parseHash32(p.Hash)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("hash: %v", err))
		return
	}
	if err := s.engine.Commit(caller, id, hash); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type revealParams struct {
	Caller  string `json:"caller"`
	ID      string `json:"id"`
	Encoded string `json:"encoded"`
	Salt    string `json:"salt"`
	Bond    string `json:"bond"`
}

func (s *Server) handleReveal(w http.ResponseWriter, req *RPCRequest) {
	var p revealParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, id, ok := parseCallerAndID(w, req, p.Caller, p.ID)
	if !ok {
		return
	}
	encoded, err := parseHash32(p.Encoded)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("encoded: %v", err))
		return
	}
	salt, err := parseHash32(p.Salt)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("salt: %v", err))
		return
	}
	bond, err := parseAmount(p.Bond)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("bond: %v", err))
		return
	}
	if err := s.engine.Reveal(caller, id, encoded, salt, bond); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type escalateParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

func (s *Server) handleEscalate(w http.ResponseWriter, req *RPCRequest) {
	var p escalateParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, id, ok := parseCallerAndID(w, req, p.Caller, p.ID)
	if !ok {
		return
	}
	if err := s.engine.Escalate(caller, id); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, req *RPCRequest) {
	var p idParams
	if !decodeParams(w, req, &p) {
		return
	}
	id, err := parseHash32(p.ID)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return
	}
	if err := s.engine.Finalize(id); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type rulingParams struct {
	Caller  string `json:"caller"`
	ID      string `json:"id"`
	Encoded string `json:"encoded"`
	Payee   string `json:"payee,omitempty"`
}

func (s *Server) handleSubmitRuling(w http.ResponseWriter, req *RPCRequest) {
	var p rulingParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, id, ok := parseCallerAndID(w, req, p.Caller, p.ID)
	if !ok {
		return
	}
	encoded, err := parseHash32(p.Encoded)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("encoded: %v", err))
		return
	}
	var payee [20]byte
	if p.Payee != "" {
		if payee, err = parseAddress(p.Payee); err != nil {
			writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("payee: %v", err))
			return
		}
	}
	if err := s.engine.ReceiveArbitratorRuling(caller, id, encoded, payee); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type ownershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner,omitempty"`
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, req *RPCRequest) {
	var p ownershipParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	newOwner, err := parseAddress(p.NewOwner)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("newOwner: %v", err))
		return
	}
	if err := s.engine.TransferOwnership(caller, newOwner); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

func (s *Server) handleAcceptOwnership(w http.ResponseWriter, req *RPCRequest) {
	var p ownershipParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	if err := s.engine.AcceptOwnership(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type adminAddressParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleSetFeeSink(w http.ResponseWriter, req *RPCRequest) {
	s.adminAddress(w, req, s.engine.UpdateFeeSink)
}

func (s *Server) handleSetArbitrator(w http.ResponseWriter, req *RPCRequest) {
	s.adminAddress(w, req, s.engine.UpdateArbitrator)
}

func (s *Server) adminAddress(w http.ResponseWriter, req *RPCRequest, apply func(caller, addr [20]byte) error) {
	var p adminAddressParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("address: %v", err))
		return
	}
	if err := apply(caller, addr); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type feeBpsParams struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

func (s *Server) handleSetFeeBps(w http.ResponseWriter, req *RPCRequest) {
	var p feeBpsParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	if err := s.engine.UpdateFeeBps(caller, p.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type adminAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleSetMinBaseBond(w http.ResponseWriter, req *RPCRequest) {
	s.adminAmount(w, req, s.engine.UpdateMinBaseBond)
}

func (s *Server) handleSetEscalationBond(w http.ResponseWriter, req *RPCRequest) {
	s.adminAmount(w, req, s.engine.UpdateEscalationBond)
}

func (s *Server) adminAmount(w http.ResponseWriter, req *RPCRequest, apply func(caller [20]byte, amount *big.Int) error) {
	var p adminAmountParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("amount: %v", err))
		return
	}
	if err := apply(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type pauseParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var p pauseParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	if err := s.engine.SetPaused(caller, p.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

type rescueParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleRescue(w http.ResponseWriter, req *RPCRequest) {
	var p rescueParams
	if !decodeParams(w, req, &p) {
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	to, err := parseAddress(p.To)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("to: %v", err))
		return
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("amount: %v", err))
		return
	}
	if err := s.engine.Rescue(caller, p.Token, to, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusOK())
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, req *RPCRequest) {
	var p idParams
	if !decodeParams(w, req, &p) {
		return
	}
	id, err := parseHash32(p.ID)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return
	}
	q, err := s.engine.Get(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, questionToJSON(q))
}

func (s *Server) handleStatus(w http.ResponseWriter, req *RPCRequest) {
	var p idParams
	if !decodeParams(w, req, &p) {
		return
	}
	id, err := parseHash32(p.ID)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return
	}
	status, err := s.engine.Status(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": status.String()})
}

func (s *Server) handleBestAnswer(w http.ResponseWriter, req *RPCRequest) {
	var p idParams
	if !decodeParams(w, req, &p) {
		return
	}
	id, err := parseHash32(p.ID)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return
	}
	best, err := s.engine.BestAnswer(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, answerToJSON(best))
}

func (s *Server) handleRemainingLiveness(w http.ResponseWriter, req *RPCRequest) {
	var p idParams
	if !decodeParams(w, req, &p) {
		return
	}
	id, err := parseHash32(p.ID)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return
	}
	remaining, err := s.engine.RemainingLiveness(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]int64{"remaining": remaining})
}

type reporterParams struct {
	ID       string `json:"id"`
	Reporter string `json:"reporter"`
}

func (s *Server) handlePendingCommit(w http.ResponseWriter, req *RPCRequest) {
	var p reporterParams
	if !decodeParams(w, req, &p) {
		return
	}
	reporter, id, ok := parseCallerAndID(w, req, p.Reporter, p.ID)
	if !ok {
		return
	}
	hash, found, err := s.engine.PendingCommit(id, reporter)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := map[string]interface{}{"found": found}
	if found {
		result["hash"] = hexHash(hash)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleBondedBy(w http.ResponseWriter, req *RPCRequest) {
	var p reporterParams
	if !decodeParams(w, req, &p) {
		return
	}
	reporter, id, ok := parseCallerAndID(w, req, p.Reporter, p.ID)
	if !ok {
		return
	}
	bonded, err := s.engine.BondedBy(id, reporter)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"bonded": bonded.String()})
}

// questionJSON is the wire form of a question for RPC clients. Amounts are
// decimal strings and hashes are 0x-prefixed hex.
type questionJSON struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	Type           string      `json:"type"`
	Options        uint32      `json:"options,omitempty"`
	Min            string      `json:"min,omitempty"`
	Max            string      `json:"max,omitempty"`
	Timeout        int64       `json:"timeout"`
	BondMultiplier uint32      `json:"bondMultiplier"`
	MaxRounds      uint32      `json:"maxRounds"`
	TemplateHash   string      `json:"templateHash"`
	DataSource     string      `json:"dataSource,omitempty"`
	Consumer       string      `json:"consumer,omitempty"`
	OpeningTs      int64       `json:"openingTs"`
	Round          uint32      `json:"round"`
	LastActionTs   int64       `json:"lastActionTs"`
	TotalBonds     string      `json:"totalBonds"`
	Escalator      string      `json:"escalator,omitempty"`
	EscalatorBond  string      `json:"escalatorBond,omitempty"`
	CreatedAt      int64       `json:"createdAt"`
	Best           *answerJSON `json:"best,omitempty"`
	FinalOutcome   string      `json:"finalOutcome,omitempty"`
	Winner         string      `json:"winner,omitempty"`
}

type answerJSON struct {
	Reporter   string `json:"reporter"`
	Encoded    string `json:"encoded"`
	Bond       string `json:"bond"`
	RevealedAt int64  `json:"revealedAt"`
}

func questionToJSON(q *oracle.Question) *questionJSON {
	if q == nil {
		return nil
	}
	out := &questionJSON{
		ID:             hexHash(q.ID),
		Status:         q.Status.String(),
		Type:           q.Params.Type.String(),
		Options:        q.Params.Options,
		Timeout:        q.Params.Timeout,
		BondMultiplier: q.Params.BondMultiplier,
		MaxRounds:      q.Params.MaxRounds,
		TemplateHash:   hexHash(q.Params.TemplateHash),
		DataSource:     q.Params.DataSource,
		OpeningTs:      q.Params.OpeningTs,
		Round:          q.Round,
		LastActionTs:   q.LastActionTs,
		TotalBonds:     bigString(q.TotalBonds),
		CreatedAt:      q.CreatedAt,
		Best:           answerToJSON(q.Best),
	}
	if q.Params.Min != nil {
		out.Min = q.Params.Min.String()
	}
	if q.Params.Max != nil {
		out.Max = q.Params.Max.String()
	}
	if q.Params.Consumer != ([20]byte{}) {
		out.Consumer = addressString(q.Params.Consumer)
	}
	if q.Escalator != ([20]byte{}) {
		out.Escalator = addressString(q.Escalator)
		out.EscalatorBond = bigString(q.EscalatorBond)
	}
	if q.Status == oracle.StatusFinalized {
		out.FinalOutcome = hexHash(q.FinalOutcome)
		if q.Winner != ([20]byte{}) {
			out.Winner = addressString(q.Winner)
		}
	}
	return out
}

func answerToJSON(a *oracle.Answer) *answerJSON {
	if a == nil {
		return nil
	}
	return &answerJSON{
		Reporter:   addressString(a.Reporter),
		Encoded:    hexHash(a.Encoded),
		Bond:       bigString(a.Bond),
		RevealedAt: a.RevealedAt,
	}
}

func statusOK() map[string]string {
	return map[string]string{"status": "ok"}
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, "expected a single params object")
		return false
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return false
	}
	return true
}

func parseCallerAndID(w http.ResponseWriter, req *RPCRequest, caller, id string) ([20]byte, [32]byte, bool) {
	addr, err := parseAddress(caller)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return [20]byte{}, [32]byte{}, false
	}
	qid, err := parseHash32(id)
	if err != nil {
		writeError(w, req.ID, http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("id: %v", err))
		return [20]byte{}, [32]byte{}, false
	}
	return addr, qid, true
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("address is required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseHash32(raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return out, fmt.Errorf("value is required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", raw)
	}
	return v, nil
}

func hexHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.PDKPrefix, addr[:]).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeEngineError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, oracle.ErrNotFound):
		writeError(w, id, http.StatusNotFound, codeOracleNotFound, err.Error())
	case errors.Is(err, oracle.ErrUnauthorized):
		writeError(w, id, http.StatusForbidden, codeOracleForbidden, err.Error())
	case errors.Is(err, oracle.ErrAlreadyExists),
		errors.Is(err, oracle.ErrAlreadyEscalated),
		errors.Is(err, oracle.ErrReentrant):
		writeError(w, id, http.StatusConflict, codeOracleConflict, err.Error())
	case errors.Is(err, oracle.ErrWrongStatus),
		errors.Is(err, oracle.ErrLivenessNotExpired),
		errors.Is(err, oracle.ErrBeforeOpening),
		errors.Is(err, common.ErrModulePaused):
		writeError(w, id, http.StatusConflict, codeOracleState, err.Error())
	case errors.Is(err, oracle.ErrBadCommit),
		errors.Is(err, oracle.ErrBondTooLow),
		errors.Is(err, oracle.ErrBadOutcome),
		errors.Is(err, oracle.ErrNoAnswer):
		writeError(w, id, http.StatusBadRequest, codeInvalidParams, err.Error())
	default:
		writeError(w, id, http.StatusInternalServerError, codeServerError, err.Error())
	}
}
