// Package consensus holds the shared vocabulary every consensus-item
// handler in this module returns: the Applied/Ignored/Banned taxonomy
// from the spec's error-handling design, and the wire tag for the two
// kinds of item this module contributes to a round (ActionProposed,
// EpochEnd).
package consensus

import "fmt"

// Verdict classifies how a peer handled one consensus item.
type Verdict uint8

const (
	// Applied means the item's state change was committed.
	Applied Verdict = iota
	// Ignored means a benign mismatch (stale epoch, superseded sequence)
	// left state untouched and carries no peer penalty.
	Ignored
	// Banned means a protocol violation (bad signature, future epoch,
	// double vote) that the transport should score the submitting peer
	// for.
	Banned
)

func (v Verdict) String() string {
	switch v {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case Banned:
		return "banned"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(v))
	}
}

// Outcome is the result of processing one consensus item: a Verdict plus
// the human-readable reason behind an Ignored or Banned classification.
type Outcome struct {
	Verdict Verdict
	Reason  string
}

// AppliedOutcome is the outcome for a successfully committed item.
func AppliedOutcome() Outcome { return Outcome{Verdict: Applied} }

// IgnoredOutcome reports a benign mismatch with no state change.
func IgnoredOutcome(reason string) Outcome { return Outcome{Verdict: Ignored, Reason: reason} }

// BannedOutcome reports a protocol violation for peer scoring.
func BannedOutcome(reason string) Outcome { return Outcome{Verdict: Banned, Reason: reason} }

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Verdict.String()
	}
	return fmt.Sprintf("%s(%s)", o.Verdict, o.Reason)
}

// ItemTag identifies which of the module's two consensus item kinds a
// wire-encoded item carries.
type ItemTag uint8

const (
	TagActionProposed ItemTag = 0x00
	TagEpochEnd       ItemTag = 0x01
)
