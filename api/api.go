// Package api exposes the stability pool's read-only views and its one
// write path (action_propose) as a JSON-RPC service, registered the way
// the rest of the luxfi stack exposes peer APIs: github.com/gorilla/rpc's
// JSON-RPC 2.0 codec over a single HTTP handler, with one Go method per
// endpoint (see _examples/luxfi-evm/utils/rpc/json.go for the client
// side of the same wire format this serves).
package api

import (
	"encoding/hex"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/epoch"
	"github.com/luxfi/stabilitypool/logging"
	"github.com/luxfi/stabilitypool/pool"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/store"
)

// Empty is the argument type for endpoints that take no parameters.
type Empty struct{}

// Service implements the endpoints in spec §4.5 as JSON-RPC methods.
// All of them are read-only over a consistent store snapshot except
// ActionPropose, which only ever writes to the pool's volatile pending
// pool.
type Service struct {
	pool *pool.StabilityPool
	log  logging.Logger
}

// NewHandler builds the http.Handler a peer mounts its JSON-RPC API
// under, wrapping p.
func NewHandler(p *pool.StabilityPool, log logging.Logger) http.Handler {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	if err := server.RegisterService(&Service{pool: p, log: log}, "stabilitypool"); err != nil {
		panic(err) // only fails on a malformed Service method signature
	}
	return server
}

// EpochArgs requests a specific epoch's outcome.
type EpochArgs struct {
	EpochID uint64 `json:"epoch_id"`
}

// EpochReply mirrors epoch.Outcome over the wire with a hex-free,
// JSON-friendly shape.
type EpochReply struct {
	Found         bool    `json:"found"`
	FeeratePPM    uint64  `json:"feerate_ppm"`
	SeekerTotal   uint64  `json:"seeker_total"`
	ProviderTotal uint64  `json:"provider_total"`
	SettledPrice  *uint64 `json:"settled_price,omitempty"`
}

// Epoch looks up the outcome recorded for an epoch id. An outcome exists
// once the epoch's positions are matched; SettledPrice is set once the
// epoch itself closes.
func (s *Service) Epoch(r *http.Request, args *EpochArgs, reply *EpochReply) error {
	tx := s.pool.NewTx()
	out, found, err := s.pool.EpochOutcome(tx, args.EpochID)
	if err != nil {
		return err
	}
	reply.Found = found
	if found {
		reply.FeeratePPM = out.FeeratePPM
		reply.SeekerTotal = uint64(out.SeekerTotal)
		reply.ProviderTotal = uint64(out.ProviderTotal)
		reply.SettledPrice = out.SettledPrice
	}
	return nil
}

// EpochNextReply reports the epoch currently accepting staged actions.
type EpochNextReply struct {
	StagingEpochID uint64 `json:"staging_epoch_id"`
}

// EpochNext returns the staging epoch id.
func (s *Service) EpochNext(r *http.Request, _ *Empty, reply *EpochNextReply) error {
	tx := s.pool.NewTx()
	ids, err := s.pool.DeriveIds(tx)
	if err != nil {
		return err
	}
	reply.StagingEpochID = ids.Staging
	return nil
}

// EpochLastSettledReply reports the most recently settled epoch, if any.
type EpochLastSettledReply struct {
	EpochID *uint64 `json:"epoch_id,omitempty"`
}

// EpochLastSettled returns last_epoch_settled.
func (s *Service) EpochLastSettled(r *http.Request, _ *Empty, reply *EpochLastSettledReply) error {
	tx := s.pool.NewTx()
	settled, err := s.pool.LastSettled(tx)
	if err != nil {
		return err
	}
	if settled > 0 {
		reply.EpochID = &settled
	}
	return nil
}

// AccountArgs requests one account's view of its own balance.
type AccountArgs struct {
	AccountID string `json:"account_id"` // hex-encoded x-only pubkey
}

// LockedView is the JSON shape of an account's open position.
type LockedView struct {
	Value uint64 `json:"value"`
	Side  string `json:"side"`
	// EpochID is the open epoch the position is currently locked for.
	EpochID uint64 `json:"epoch_id"`
	// EpochStartPrice is the oracle price the locked epoch opened at —
	// the prior epoch's settled price, or nil if no prior epoch has
	// settled yet (epoch 1 has no opening price distinct from its own
	// close).
	EpochStartPrice *uint64 `json:"epoch_start_price,omitempty"`
}

// epochStartPrice returns the opening price of currentEpochID: the
// settled price of the epoch before it, or nil if currentEpochID is the
// first epoch or that prior epoch hasn't settled yet.
func epochStartPrice(s *Service, tx *store.Tx, currentEpochID uint64) (*uint64, error) {
	if currentEpochID <= 1 {
		return nil, nil
	}
	out, found, err := s.pool.EpochOutcome(tx, currentEpochID-1)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out.SettledPrice, nil
}

// AccountReply is the /account response shape from spec §4.5.
type AccountReply struct {
	Unlocked uint64      `json:"unlocked"`
	Locked   *LockedView `json:"locked,omitempty"`
}

func parseAccountID(s string) (pubkey.XOnly, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return pubkey.XOnly{}, err
	}
	return pubkey.FromBytes(b)
}

// Account returns unlocked/locked for an account.
func (s *Service) Account(r *http.Request, args *AccountArgs, reply *AccountReply) error {
	acc, err := parseAccountID(args.AccountID)
	if err != nil {
		return err
	}
	tx := s.pool.NewTx()
	bal, err := s.pool.Account(tx, acc)
	if err != nil {
		return err
	}
	reply.Unlocked = uint64(bal.Unlocked)
	if !bal.Locked.None() {
		ids, err := s.pool.DeriveIds(tx)
		if err != nil {
			return err
		}
		startPrice, err := epochStartPrice(s, tx, ids.Current)
		if err != nil {
			return err
		}
		reply.Locked = &LockedView{
			Value:           uint64(bal.Locked.Amount),
			Side:            bal.Locked.Side.String(),
			EpochID:         ids.Current,
			EpochStartPrice: startPrice,
		}
	}
	return nil
}

// ActionArgs requests the staged action for an account.
type ActionArgs struct {
	AccountID string `json:"account_id"`
}

// ActionReply carries the staged action, if any.
type ActionReply struct {
	Found    bool   `json:"found"`
	EpochID  uint64 `json:"epoch_id,omitempty"`
	Sequence uint64 `json:"sequence,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

// Action looks up the staged action for an account.
func (s *Service) Action(r *http.Request, args *ActionArgs, reply *ActionReply) error {
	acc, err := parseAccountID(args.AccountID)
	if err != nil {
		return err
	}
	tx := s.pool.NewTx()
	staged, found, err := s.pool.StagedAction(tx, acc)
	if err != nil {
		return err
	}
	reply.Found = found
	if found {
		reply.EpochID = staged.EpochID
		reply.Sequence = staged.Sequence
		reply.Tag = staged.Body.Tag().String()
	}
	return nil
}

// ActionProposeArgs carries a signed action's canonical wire encoding
// plus its signature, both hex-encoded.
type ActionProposeArgs struct {
	ActionHex    string `json:"action_hex"`
	SignatureHex string `json:"signature_hex"`
}

// ActionProposeReply is empty on success; a non-nil error on the
// envelope maps to the JSON-RPC error response.
type ActionProposeReply struct{}

// ActionPropose is the one write endpoint: it verifies and admits a
// signed action into the pool's pending proposal pool.
func (s *Service) ActionPropose(r *http.Request, args *ActionProposeArgs, reply *ActionProposeReply) error {
	actionBytes, err := hex.DecodeString(args.ActionHex)
	if err != nil {
		return pool.ErrBadRequest{Reason: "action_hex is not valid hex"}
	}
	sigBytes, err := hex.DecodeString(args.SignatureHex)
	if err != nil {
		return pool.ErrBadRequest{Reason: "signature_hex is not valid hex"}
	}
	decoded, err := action.DecodeAction(actionBytes)
	if err != nil {
		return pool.ErrBadRequest{Reason: "malformed action encoding"}
	}
	sig, err := pubkey.SignatureFromBytes(sigBytes)
	if err != nil {
		return pool.ErrBadRequest{Reason: "malformed signature"}
	}

	tx := s.pool.NewTx()
	lastEnded, err := s.pool.LastEnded(tx)
	if err != nil {
		return err
	}
	if err := s.pool.ProposeAction(tx, lastEnded, action.Proposed{Signature: sig, Action: decoded}); err != nil {
		return err
	}
	return nil
}

// StateReply is the full snapshot spec §4.5 describes for /state.
type StateReply struct {
	CurrentEpochOutcome  *EpochReply         `json:"current_epoch_outcome,omitempty"`
	PreviousEpochOutcome *EpochReply         `json:"previous_epoch_outcome,omitempty"`
	Accounts             []StateAccount      `json:"accounts"`
	StagedActions        []StateStagedAction `json:"staged_actions"`
}

// StateAccount is one account's full record within a /state snapshot.
type StateAccount struct {
	AccountID string      `json:"account_id"`
	Unlocked  uint64      `json:"unlocked"`
	Locked    *LockedView `json:"locked,omitempty"`
}

// StateStagedAction is one account's staged action within a /state
// snapshot.
type StateStagedAction struct {
	AccountID string `json:"account_id"`
	EpochID   uint64 `json:"epoch_id"`
	Sequence  uint64 `json:"sequence"`
	Tag       string `json:"tag"`
}

// State returns a full snapshot of the pool's durable state.
func (s *Service) State(r *http.Request, _ *Empty, reply *StateReply) error {
	tx := s.pool.NewTx()
	ids, err := s.pool.DeriveIds(tx)
	if err != nil {
		return err
	}

	if out, found, err := s.pool.EpochOutcome(tx, ids.Current); err != nil {
		return err
	} else if found {
		reply.CurrentEpochOutcome = outcomeReply(out)
	}
	if ids.Current > 1 {
		if out, found, err := s.pool.EpochOutcome(tx, ids.Current-1); err != nil {
			return err
		} else if found {
			reply.PreviousEpochOutcome = outcomeReply(out)
		}
	}

	startPrice, err := epochStartPrice(s, tx, ids.Current)
	if err != nil {
		return err
	}

	accounts, err := s.pool.AllAccounts(tx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		sa := StateAccount{AccountID: a.ID.String(), Unlocked: uint64(a.Balance.Unlocked)}
		if !a.Balance.Locked.None() {
			sa.Locked = &LockedView{
				Value:           uint64(a.Balance.Locked.Amount),
				Side:            a.Balance.Locked.Side.String(),
				EpochID:         ids.Current,
				EpochStartPrice: startPrice,
			}
		}
		reply.Accounts = append(reply.Accounts, sa)
	}

	staged, err := s.pool.AllStagedActions(tx)
	if err != nil {
		return err
	}
	for _, st := range staged {
		reply.StagedActions = append(reply.StagedActions, StateStagedAction{
			AccountID: st.AccountID.String(),
			EpochID:   st.EpochID,
			Sequence:  st.Sequence,
			Tag:       st.Body.Tag().String(),
		})
	}
	return nil
}

func outcomeReply(o epoch.Outcome) *EpochReply {
	return &EpochReply{
		Found:         true,
		FeeratePPM:    o.FeeratePPM,
		SeekerTotal:   uint64(o.SeekerTotal),
		ProviderTotal: uint64(o.ProviderTotal),
		SettledPrice:  o.SettledPrice,
	}
}
