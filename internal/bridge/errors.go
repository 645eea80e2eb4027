package bridge

import "fmt"

// Sentinel errors for the Bridge Core's public contract (§7), matched via errors.Is.
var (
	ErrNotInitialized    = fmt.Errorf("bridge: not initialized")
	ErrBlocked           = fmt.Errorf("bridge: eligibility denied")
	ErrAgeGateMismatch   = fmt.Errorf("bridge: age-gate mismatch")
	ErrDriverUnsupported = fmt.Errorf("bridge: driver does not support the requested operation")
)

// BlockReason distinguishes why CanSend/Send denied eligibility.
type BlockReason int

const (
	BlockBridgePaused BlockReason = iota
	BlockFilterBlocked
)

func (r BlockReason) String() string {
	switch r {
	case BlockBridgePaused:
		return "bridge_paused"
	case BlockFilterBlocked:
		return "filter_blocked"
	default:
		return "unknown"
	}
}

// BlockedError reports which stage of the eligibility algorithm denied a send.
type BlockedError struct {
	Reason BlockReason
}

func (e *BlockedError) Error() string { return fmt.Sprintf("bridge: blocked (%s)", e.Reason) }

// Is lets callers test with errors.Is(err, ErrBlocked) without caring about the specific reason.
func (e *BlockedError) Is(target error) bool { return target == ErrBlocked }

// AgeGateMismatchError reports the nsfw values that disagreed, or a missing driver age-gate capability.
type AgeGateMismatchError struct {
	ChannelNSFW    bool
	SpaceNSFW      bool
	MissingAgeGate bool
}

func (e *AgeGateMismatchError) Error() string {
	if e.MissingAgeGate {
		return "bridge: origin platform does not support age-gated spaces"
	}
	return fmt.Sprintf("bridge: channel nsfw=%v disagrees with space nsfw=%v", e.ChannelNSFW, e.SpaceNSFW)
}

func (e *AgeGateMismatchError) Is(target error) bool { return target == ErrAgeGateMismatch }
