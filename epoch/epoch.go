// Package epoch holds the data types and pure helpers of the epoch state
// machine (spec §4.2): epoch outcomes, EpochEnd votes and items with
// their encodings, derived current/staging epoch ids, and the median
// price. The voting protocol, price-threshold finalization and the
// settlement trigger that use them live in package pool.
//
// Grounded on the deterministic, consensus-item-driven state transition
// style of _examples/original_source (the epoch close / finalize flow)
// and the checked, store-backed mutation idiom of luxfi-evm's state
// transition functions.
package epoch

import (
	"fmt"
	"sort"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/wire"
)

// Outcome is the record materialized for an epoch when its positions are
// matched (at the close of the epoch before it), and filled in with a
// settled price once the price-threshold is met for the epoch itself.
type Outcome struct {
	FeeratePPM    uint64
	SeekerTotal   msat.Amount
	ProviderTotal msat.Amount
	// SettledPrice is nil until the oracle-price threshold is met for
	// this epoch.
	SettledPrice *uint64
}

// Encode renders an Outcome in the module's canonical wire format.
func (o Outcome) Encode() []byte {
	w := wire.NewWriter()
	w.U64(o.FeeratePPM)
	w.U64(uint64(o.SeekerTotal))
	w.U64(uint64(o.ProviderTotal))
	if o.SettledPrice == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U64(*o.SettledPrice)
	}
	return w.Bytes()
}

// DecodeOutcome parses an Outcome from its encoding.
func DecodeOutcome(b []byte) (Outcome, error) {
	r := wire.NewReader(b)
	rate, err := r.U64()
	if err != nil {
		return Outcome{}, err
	}
	seekerTotal, err := r.U64()
	if err != nil {
		return Outcome{}, err
	}
	providerTotal, err := r.U64()
	if err != nil {
		return Outcome{}, err
	}
	present, err := r.U8()
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{FeeratePPM: rate, SeekerTotal: msat.Amount(seekerTotal), ProviderTotal: msat.Amount(providerTotal)}
	if present != 0 {
		price, err := r.U64()
		if err != nil {
			return Outcome{}, err
		}
		out.SettledPrice = &price
	}
	if !r.Done() {
		return Outcome{}, fmt.Errorf("epoch: trailing bytes after decoding outcome")
	}
	return out, nil
}

// EndVote is one peer's announced closing price for the open epoch.
type EndVote struct {
	EpochID uint64
	Price   uint64
}

// Encode renders an EndVote in the module's canonical wire format.
func (v EndVote) Encode() []byte {
	w := wire.NewWriter()
	w.U64(v.EpochID)
	w.U64(v.Price)
	return w.Bytes()
}

// DecodeEndVote parses an EndVote from its encoding.
func DecodeEndVote(b []byte) (EndVote, error) {
	r := wire.NewReader(b)
	epochID, err := r.U64()
	if err != nil {
		return EndVote{}, err
	}
	price, err := r.U64()
	if err != nil {
		return EndVote{}, err
	}
	if !r.Done() {
		return EndVote{}, fmt.Errorf("epoch: trailing bytes after decoding end vote")
	}
	return EndVote{EpochID: epochID, Price: price}, nil
}

// EndItem is the consensus item a peer gossips to announce its view of
// the closing price for the open epoch. Price is nil when no oracle
// price was available; per the spec's design notes such an item is
// never actually emitted (the proposer suppresses it and backs off
// instead), so a nil Price arriving from the wire is itself a protocol
// violation the caller should ban.
type EndItem struct {
	EpochID uint64
	Price   *uint64
}

// Encode renders an EndItem the way it travels as a consensus item
// payload (after the 0x01 item tag).
func (e EndItem) Encode() []byte {
	w := wire.NewWriter()
	w.U64(e.EpochID)
	if e.Price == nil {
		w.U8(0)
	} else {
		w.U8(1)
		w.U64(*e.Price)
	}
	return w.Bytes()
}

// DecodeEndItem parses an EndItem from its payload encoding.
func DecodeEndItem(b []byte) (EndItem, error) {
	r := wire.NewReader(b)
	epochID, err := r.U64()
	if err != nil {
		return EndItem{}, err
	}
	present, err := r.U8()
	if err != nil {
		return EndItem{}, err
	}
	item := EndItem{EpochID: epochID}
	if present != 0 {
		price, err := r.U64()
		if err != nil {
			return EndItem{}, err
		}
		item.Price = &price
	}
	if !r.Done() {
		return EndItem{}, fmt.Errorf("epoch: trailing bytes after decoding end item")
	}
	return item, nil
}

// Ids is the pair of derived epoch ids the rest of the module reasons
// about: the open epoch that is settling, and the staging epoch that is
// accepting new actions (spec §3, "epoch id semantics").
type Ids struct {
	Current uint64
	Staging uint64
}

// DeriveIds computes Current/Staging from the persisted last-ended
// singleton.
func DeriveIds(lastEnded uint64) Ids {
	current := lastEnded + 1
	return Ids{Current: current, Staging: current + 1}
}

// MedianPrice computes the deterministic median of a set of votes, with
// ties on an even count broken by taking the lower of the two middle
// values (spec §4.2, §9).
func MedianPrice(prices []uint64) uint64 {
	sorted := make([]uint64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}
