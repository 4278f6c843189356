package types

// TransferState is the lifecycle state of a TransferRecord.
type TransferState string

const (
	// StateDraft is the state of a confirmed but not yet submitted transfer.
	StateDraft TransferState = "DRAFT"
	// StateSubmitted is the state after the source transaction was broadcast.
	StateSubmitted TransferState = "SUBMITTED"
	// StateAttestationPending is the state while the guardian governor delays the attestation.
	StateAttestationPending TransferState = "ATTESTATION_PENDING"
	// StateAttestationReady is the state once the signed attestation is held by the record.
	StateAttestationReady TransferState = "ATTESTATION_READY"
	// StateRedeeming is the state while the destination redemption is in flight.
	StateRedeeming TransferState = "REDEEMING"
	// StateRedeemed is the terminal success state.
	StateRedeemed TransferState = "REDEEMED"
	// StateFailed is the terminal failure state, see TransferRecord.FailureReason.
	StateFailed TransferState = "FAILED"
)

// rank orders states; AttestationPending and AttestationReady share a rank.
var rank = map[TransferState]int{
	StateDraft:              0,
	StateSubmitted:          1,
	StateAttestationPending: 2,
	StateAttestationReady:   2,
	StateRedeeming:          3,
	StateRedeemed:           4,
}

var transitions = map[TransferState][]TransferState{
	StateDraft:              {StateSubmitted},
	StateSubmitted:          {StateAttestationPending, StateAttestationReady},
	StateAttestationPending: {StateAttestationPending, StateAttestationReady},
	StateAttestationReady:   {StateRedeeming},
	StateRedeeming:          {StateRedeemed},
}

// String converts TransferState to string representation.
func (s TransferState) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves the state.
func (s TransferState) IsTerminal() bool {
	return s == StateRedeemed || s == StateFailed
}

// IsValid reports whether s is one of the defined states.
func (s TransferState) IsValid() bool {
	_, ok := rank[s]
	return ok || s == StateFailed
}

// Rank returns the position of s in the lifecycle partial order, -1 for Failed or unknown states.
func (s TransferState) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Failed is reachable from every non-terminal state and never left.
func (s TransferState) CanTransitionTo(next TransferState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
