// Package action implements the seeker/provider action types that
// accounts submit for the next epoch: signed instructions to lock or
// unlock a seeker position, or to offer provider collateral at a
// minimum fee rate.
//
// Grounded on the SeekerAction/ProviderBid shapes implied by
// _examples/original_source/stabilitypool-server/src/api.rs
// (ActionProposed, ActionStaged) and signed the way the spec's wire
// section describes: BIP-340 Schnorr over SHA-256 of the canonical
// encoding, verified against the 32-byte account id.
package action

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/wire"
)

// Tag identifies the variant of an action body on the wire.
type Tag uint8

const (
	TagSeekerLock   Tag = 0x00
	TagSeekerUnlock Tag = 0x01
	TagProviderBid  Tag = 0x02
)

func (t Tag) String() string {
	switch t {
	case TagSeekerLock:
		return "seeker_lock"
	case TagSeekerUnlock:
		return "seeker_unlock"
	case TagProviderBid:
		return "provider_bid"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// Body is the variant-specific payload of an Action.
type Body interface {
	Tag() Tag
	encode(w *wire.Writer)
}

// SeekerLock moves amount from unlocked into a seeker position at the
// start of the staging epoch, adding to any existing seeker position.
type SeekerLock struct {
	Amount msat.Amount
}

func (SeekerLock) Tag() Tag { return TagSeekerLock }
func (b SeekerLock) encode(w *wire.Writer) {
	w.U64(uint64(b.Amount))
}

// SeekerUnlock moves amount from a seeker position back to unlocked.
type SeekerUnlock struct {
	Amount msat.Amount
}

func (SeekerUnlock) Tag() Tag { return TagSeekerUnlock }
func (b SeekerUnlock) encode(w *wire.Writer) {
	w.U64(uint64(b.Amount))
}

// ProviderBid offers up to MaxAmount of provider collateral from
// unlocked at any fee rate at or above MinFeerate (parts-per-million).
type ProviderBid struct {
	MaxAmount  msat.Amount
	MinFeerate uint64
}

func (ProviderBid) Tag() Tag { return TagProviderBid }
func (b ProviderBid) encode(w *wire.Writer) {
	w.U64(uint64(b.MaxAmount))
	w.U64(b.MinFeerate)
}

// decodeBody reads a body of the given tag from r.
func decodeBody(tag Tag, r *wire.Reader) (Body, error) {
	switch tag {
	case TagSeekerLock:
		v, err := r.U64()
		if err != nil {
			return nil, err
		}
		return SeekerLock{Amount: msat.Amount(v)}, nil
	case TagSeekerUnlock:
		v, err := r.U64()
		if err != nil {
			return nil, err
		}
		return SeekerUnlock{Amount: msat.Amount(v)}, nil
	case TagProviderBid:
		max, err := r.U64()
		if err != nil {
			return nil, err
		}
		rate, err := r.U64()
		if err != nil {
			return nil, err
		}
		return ProviderBid{MaxAmount: msat.Amount(max), MinFeerate: rate}, nil
	default:
		return nil, fmt.Errorf("action: unknown body tag 0x%02x", uint8(tag))
	}
}

// Action is a signed instruction submitted by an account for a specific
// epoch, ordered by a strictly-increasing per-account sequence number.
type Action struct {
	EpochID   uint64
	Sequence  uint64
	AccountID pubkey.XOnly
	Body      Body
}

// CanonicalEncoding returns the exact byte string that is hashed and
// signed: epoch_id (u64 BE), sequence (u64 BE), account_id (32 bytes),
// body tag, body fields.
func (a Action) CanonicalEncoding() []byte {
	w := wire.NewWriter()
	w.U64(a.EpochID)
	w.U64(a.Sequence)
	w.Fixed(a.AccountID.Bytes())
	w.U8(uint8(a.Body.Tag()))
	a.Body.encode(w)
	return w.Bytes()
}

// SigningHash is SHA-256 of the canonical encoding, the message that
// gets Schnorr-signed.
func (a Action) SigningHash() [32]byte {
	return sha256.Sum256(a.CanonicalEncoding())
}

// DecodeAction parses an Action from its canonical encoding.
func DecodeAction(b []byte) (Action, error) {
	r := wire.NewReader(b)
	epochID, err := r.U64()
	if err != nil {
		return Action{}, err
	}
	seq, err := r.U64()
	if err != nil {
		return Action{}, err
	}
	accBytes, err := r.Fixed(pubkey.Size)
	if err != nil {
		return Action{}, err
	}
	accountID, err := pubkey.FromBytes(accBytes)
	if err != nil {
		return Action{}, err
	}
	tagByte, err := r.U8()
	if err != nil {
		return Action{}, err
	}
	body, err := decodeBody(Tag(tagByte), r)
	if err != nil {
		return Action{}, err
	}
	if !r.Done() {
		return Action{}, errors.New("action: trailing bytes after decoding")
	}
	return Action{EpochID: epochID, Sequence: seq, AccountID: accountID, Body: body}, nil
}

// Proposed is a signed Action as submitted to the API and gossiped as a
// consensus item, prior to being accepted and persisted as Staged.
type Proposed struct {
	Signature pubkey.Signature
	Action    Action
}

// ErrBadSignature is returned when a Proposed action's signature does not
// verify against its AccountID.
var ErrBadSignature = errors.New("action: bad signature")

// VerifySignature checks the Schnorr signature over the action's
// canonical encoding against its own AccountID.
func (p Proposed) VerifySignature() error {
	hash := p.Action.SigningHash()
	if err := p.Action.AccountID.Verify(hash[:], p.Signature); err != nil {
		return ErrBadSignature
	}
	return nil
}

// Staged is the persisted form of the most recently accepted action for
// an account, keyed by AccountID in the store.
type Staged struct {
	EpochID   uint64
	Sequence  uint64
	AccountID pubkey.XOnly
	Body      Body
}

// FromProposed converts an already-verified Proposed action into its
// persisted Staged form.
func FromProposed(p Proposed) Staged {
	return Staged{
		EpochID:   p.Action.EpochID,
		Sequence:  p.Action.Sequence,
		AccountID: p.Action.AccountID,
		Body:      p.Action.Body,
	}
}

// Encode renders a Staged action using the same field layout as
// Action.CanonicalEncoding, since a Staged action carries exactly the
// fields of the Action it was accepted from.
func (s Staged) Encode() []byte {
	return Action{EpochID: s.EpochID, Sequence: s.Sequence, AccountID: s.AccountID, Body: s.Body}.CanonicalEncoding()
}

// DecodeStaged parses a Staged action from its encoding.
func DecodeStaged(b []byte) (Staged, error) {
	a, err := DecodeAction(b)
	if err != nil {
		return Staged{}, err
	}
	return Staged{EpochID: a.EpochID, Sequence: a.Sequence, AccountID: a.AccountID, Body: a.Body}, nil
}
