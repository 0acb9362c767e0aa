// Package stability implements the pure, deterministic arithmetic of the
// stability pool: fee computation, seeker/provider matching at the
// minimum sufficient clearing rate, and the price-delta payout that
// redistributes locked balances at epoch settlement. Every function here
// is free of I/O, clocks and randomness — the matching and payout math
// the module's epoch state machine drives at finalization time (spec
// §4.4), grounded on the fee/collateral shapes in
// _examples/original_source/stabilitypool-common/src/config.rs
// (CollateralRatio, max_feerate_ppm).
package stability

import (
	"errors"
	"math/big"
	"sort"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
)

// Feerate is a fee per epoch expressed in parts-per-million of locked
// principal.
type Feerate uint64

// FeerateDenominator is the fixed denominator a Feerate is measured
// against (1,000,000 = 100%).
const FeerateDenominator = 1_000_000

// CollateralRatio is the configured ratio of seeker position to provider
// collateral required to back it: Numer units of seeker value require
// Denom units of provider collateral.
type CollateralRatio struct {
	Numer uint64
	Denom uint64
}

// DefaultCollateralRatio is 1:1 collateralization, the implementation
// default the spec calls out as fixed by configuration.
var DefaultCollateralRatio = CollateralRatio{Numer: 1, Denom: 1}

// mulDiv computes a*b/c using arbitrary precision to avoid u64 overflow
// on the intermediate product, then floors back to a u64. There is no
// ecosystem library in the example corpus that performs correctly
// rounded 64-bit mul-div (holiman/uint256 targets 256-bit EVM words, the
// wrong shape for msat accounting), so this one helper is built on
// math/big.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	prod := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	prod.Div(prod, new(big.Int).SetUint64(c))
	return prod.Uint64()
}

// ProviderFee is the fee a provider earns for backing locked seeker
// value S at rate r: r*S*cr.Denom/cr.Numer/1_000_000, floored.
func ProviderFee(r Feerate, s msat.Amount, cr CollateralRatio) msat.Amount {
	if cr.Numer == 0 {
		return 0
	}
	prod := new(big.Int).Mul(new(big.Int).SetUint64(uint64(r)), new(big.Int).SetUint64(uint64(s)))
	prod.Mul(prod, new(big.Int).SetUint64(cr.Denom))
	prod.Div(prod, new(big.Int).SetUint64(cr.Numer))
	prod.Div(prod, big.NewInt(FeerateDenominator))
	return msat.Amount(prod.Uint64())
}

// SeekerFee is the fee charged against locked seeker value S at rate r:
// r*S/1_000_000, floored.
func SeekerFee(r Feerate, s msat.Amount) msat.Amount {
	return msat.Amount(mulDiv(uint64(r), uint64(s), FeerateDenominator))
}

// collateralFor converts a seeker position into the collateral required
// to back it under cr, floored.
func collateralFor(seeker msat.Amount, cr CollateralRatio) msat.Amount {
	if cr.Numer == 0 {
		return 0
	}
	return msat.Amount(mulDiv(uint64(seeker), cr.Denom, cr.Numer))
}

// SeekerInput is one account's requested seeker lock amount for the
// epoch being matched.
type SeekerInput struct {
	Account pubkey.XOnly
	Amount  msat.Amount
}

// ProviderBidInput is one account's provider offer for the epoch being
// matched.
type ProviderBidInput struct {
	Account    pubkey.XOnly
	MaxAmount  msat.Amount
	MinFeerate uint64
}

// SeekerAllocation is the outcome of matching for a single seeker: the
// Accepted amount is what actually gets locked; Requested-Accepted
// returns to the account's unlocked balance.
type SeekerAllocation struct {
	Account   pubkey.XOnly
	Requested msat.Amount
	Accepted  msat.Amount
}

// ProviderAllocation is the outcome of matching for a single provider
// bid: Accepted is the portion of MaxAmount that actually backs seeker
// positions; the remainder stays unlocked.
type ProviderAllocation struct {
	Account  pubkey.XOnly
	Accepted msat.Amount
}

// MatchResult is the full outcome of one epoch's seeker/provider
// matching.
type MatchResult struct {
	ClearingFeerate uint64
	Seekers         []SeekerAllocation
	Providers       []ProviderAllocation
	SeekerTotal     msat.Amount
	ProviderTotal   msat.Amount
}

// ErrNoSupply is returned by Match when there are seekers but zero
// provider supply is offered at all, so no clearing rate exists.
var ErrNoSupply = errors.New("stability: no provider supply to clear against seeker demand")

// Match pairs seeker demand against provider bids at the minimum
// sufficient fee rate, per spec §4.4:
//  1. total demand D = sum of collateral required for every seeker lock
//  2. bids sorted ascending by (min_feerate, max_amount, account id)
//  3. walk bids until accepted supply >= D; the clearing rate is the last
//     (marginal) bid's min_feerate
//  4. clamp the clearing rate to maxFeeratePPM
//  5. if total available supply < D, scale seeker positions down
//     proportionally (floor) so accepted demand exactly matches supply
//  6. the marginal bid is pro-rated (floor); dust stays with the bidder
func Match(seekers []SeekerInput, bids []ProviderBidInput, maxFeeratePPM uint64, cr CollateralRatio) (MatchResult, error) {
	sorted := make([]ProviderBidInput, len(bids))
	copy(sorted, bids)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MinFeerate != sorted[j].MinFeerate {
			return sorted[i].MinFeerate < sorted[j].MinFeerate
		}
		if sorted[i].MaxAmount != sorted[j].MaxAmount {
			return sorted[i].MaxAmount < sorted[j].MaxAmount
		}
		return sorted[i].Account.Less(sorted[j].Account)
	})

	var demand msat.Amount
	for _, s := range seekers {
		demand = msat.MustAdd(demand, collateralFor(s.Amount, cr))
	}

	if demand == 0 {
		result := MatchResult{}
		for _, s := range seekers {
			result.Seekers = append(result.Seekers, SeekerAllocation{Account: s.Account, Requested: s.Amount, Accepted: s.Amount})
		}
		for _, b := range sorted {
			result.Providers = append(result.Providers, ProviderAllocation{Account: b.Account, Accepted: 0})
		}
		return result, nil
	}

	if len(sorted) == 0 {
		return MatchResult{}, ErrNoSupply
	}

	var (
		totalSupply     msat.Amount
		clearingFeerate uint64
		acceptedUpTo    = -1 // index of the last bid consumed (fully or partially)
	)
	for i, b := range sorted {
		totalSupply = msat.MustAdd(totalSupply, b.MaxAmount)
		clearingFeerate = b.MinFeerate
		acceptedUpTo = i
		if totalSupply >= demand {
			break
		}
	}
	if clearingFeerate > maxFeeratePPM {
		clearingFeerate = maxFeeratePPM
	}

	result := MatchResult{ClearingFeerate: clearingFeerate}

	if totalSupply >= demand {
		// Full demand cleared: every seeker gets their full request,
		// bids up to acceptedUpTo are used (the marginal one pro-rated),
		// later bids are untouched.
		for _, s := range seekers {
			result.Seekers = append(result.Seekers, SeekerAllocation{Account: s.Account, Requested: s.Amount, Accepted: s.Amount})
			result.SeekerTotal = msat.MustAdd(result.SeekerTotal, s.Amount)
		}

		var suppliedBeforeMarginal msat.Amount
		for i := 0; i < acceptedUpTo; i++ {
			suppliedBeforeMarginal = msat.MustAdd(suppliedBeforeMarginal, sorted[i].MaxAmount)
			result.Providers = append(result.Providers, ProviderAllocation{Account: sorted[i].Account, Accepted: sorted[i].MaxAmount})
			result.ProviderTotal = msat.MustAdd(result.ProviderTotal, sorted[i].MaxAmount)
		}
		marginalNeeded := msat.MustSub(demand, suppliedBeforeMarginal)
		marginal := sorted[acceptedUpTo]
		if marginalNeeded > marginal.MaxAmount {
			marginalNeeded = marginal.MaxAmount
		}
		result.Providers = append(result.Providers, ProviderAllocation{Account: marginal.Account, Accepted: marginalNeeded})
		result.ProviderTotal = msat.MustAdd(result.ProviderTotal, marginalNeeded)

		for i := acceptedUpTo + 1; i < len(sorted); i++ {
			result.Providers = append(result.Providers, ProviderAllocation{Account: sorted[i].Account, Accepted: 0})
		}
		return result, nil
	}

	// Insufficient supply: every bid is fully accepted, and seeker
	// positions are scaled down proportionally (floored) to match.
	for _, b := range sorted {
		result.Providers = append(result.Providers, ProviderAllocation{Account: b.Account, Accepted: b.MaxAmount})
		result.ProviderTotal = msat.MustAdd(result.ProviderTotal, b.MaxAmount)
	}
	for _, s := range seekers {
		accepted := msat.Amount(mulDiv(uint64(s.Amount), uint64(totalSupply), uint64(demand)))
		if accepted > s.Amount {
			accepted = s.Amount
		}
		result.Seekers = append(result.Seekers, SeekerAllocation{Account: s.Account, Requested: s.Amount, Accepted: accepted})
		result.SeekerTotal = msat.MustAdd(result.SeekerTotal, accepted)
	}
	return result, nil
}

// Position is one account's locked value on one side of a settling epoch.
type Position struct {
	Account pubkey.XOnly
	Value   msat.Amount
}

// SettleResult is the per-account outcome of one epoch's settlement:
// the new unlocked amount each participant receives for the locked
// value they held going in.
type SettleResult struct {
	SeekerPayouts   []Position
	ProviderPayouts []Position
	// RoundingSlack is what's left of the locked pot after both sides'
	// payouts are clamped to [0, pot] and distributed pro-rata. It is not
	// assigned to any account, and epoch.Outcome has no field recording it.
	RoundingSlack msat.Amount
}

// ErrZeroClosingPrice is returned by Settle when p1 is zero, which would
// make the fair-value conversion undefined.
var ErrZeroClosingPrice = errors.New("stability: closing price is zero")

// clampBig clamps v to [0, max], returning a uint64 safe to convert
// because max is itself a valid uint64.
func clampBig(v *big.Int, max uint64) uint64 {
	if v.Sign() < 0 {
		return 0
	}
	maxBig := new(big.Int).SetUint64(max)
	if v.Cmp(maxBig) > 0 {
		return max
	}
	return v.Uint64()
}

// distributePro rates total across entries proportionally to each
// entry's share of basis (floor division), returning per-account
// payouts and the leftover dust from flooring.
func distributePro(entries []Position, basis msat.Amount, total msat.Amount) ([]Position, msat.Amount) {
	if basis == 0 {
		return nil, total
	}
	out := make([]Position, len(entries))
	var distributed msat.Amount
	for i, e := range entries {
		share := msat.Amount(mulDiv(uint64(e.Value), uint64(total), uint64(basis)))
		out[i] = Position{Account: e.Account, Value: share}
		distributed = msat.MustAdd(distributed, share)
	}
	return out, msat.MustSub(total, distributed)
}

// Settle runs the spec's payout math for one epoch close: given the
// seeker and provider positions locked going in, the clearing feerate,
// and the opening/closing oracle prices, it computes each side's new
// unlocked balance.
//
//   - fair seeker value at p1: V' = V*p0/p1
//   - seeker_payout = V' + seeker_fee(r,V), clamped to [0, pot]
//   - provider_payout = Vp + provider_fee(r,Vp,cr) - seeker_delta_share,
//     where seeker_delta_share is the collateralized portion of V-V',
//     clamped to [0, pot]
//   - whatever's left of the pot after both clamps is RoundingSlack
func Settle(seekers, providers []Position, r Feerate, p0, p1 uint64, cr CollateralRatio) (SettleResult, error) {
	if p1 == 0 {
		return SettleResult{}, ErrZeroClosingPrice
	}

	var v, vp msat.Amount
	for _, s := range seekers {
		v = msat.MustAdd(v, s.Value)
	}
	for _, p := range providers {
		vp = msat.MustAdd(vp, p.Value)
	}
	pot := msat.MustAdd(v, vp)

	vPrime := mulDiv(uint64(v), p0, p1)
	seekerFee := SeekerFee(r, v)
	seekerPayoutBig := new(big.Int).Add(new(big.Int).SetUint64(vPrime), new(big.Int).SetUint64(uint64(seekerFee)))
	totalSeekerPayout := clampBig(seekerPayoutBig, uint64(pot))

	providerFee := ProviderFee(r, vp, cr)
	delta := new(big.Int).Sub(new(big.Int).SetUint64(uint64(v)), new(big.Int).SetUint64(vPrime))
	deltaShare := new(big.Int).Mul(delta, new(big.Int).SetUint64(cr.Denom))
	if cr.Numer != 0 {
		deltaShare.Quo(deltaShare, new(big.Int).SetUint64(cr.Numer))
	}
	providerPayoutBig := new(big.Int).Add(new(big.Int).SetUint64(uint64(vp)), new(big.Int).SetUint64(uint64(providerFee)))
	providerPayoutBig.Sub(providerPayoutBig, deltaShare)
	totalProviderPayout := clampBig(providerPayoutBig, uint64(pot))

	slack := pot
	if totalSeekerPayout > uint64(slack) {
		totalSeekerPayout = uint64(slack)
	}
	slack = msat.MustSub(slack, msat.Amount(totalSeekerPayout))
	if totalProviderPayout > uint64(slack) {
		totalProviderPayout = uint64(slack)
	}
	slack = msat.MustSub(slack, msat.Amount(totalProviderPayout))

	seekerOut, seekerDust := distributePro(seekers, v, msat.Amount(totalSeekerPayout))
	providerOut, providerDust := distributePro(providers, vp, msat.Amount(totalProviderPayout))
	slack = msat.MustAdd(slack, msat.MustAdd(seekerDust, providerDust))

	return SettleResult{
		SeekerPayouts:   seekerOut,
		ProviderPayouts: providerOut,
		RoundingSlack:   slack,
	}, nil
}
