package types

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TransferRecord is the unit of work of the transfer pipeline and the resumption point after restart.
// Only the orchestrator writes State. SourceTx, MessageID, Attestation and TargetTx are set once,
// in that order.
type TransferRecord struct {
	ID string `json:"id"`

	SourceChain   ChainID `json:"sourceChain"`
	TargetChain   ChainID `json:"targetChain"`
	TokenAddress  string  `json:"tokenAddress"`
	TokenDecimals int     `json:"tokenDecimals"`
	// TargetAddress is the 32-byte recipient on the target chain, hex encoded.
	TargetAddress string `json:"targetAddress"`

	AmountRaw        *big.Int `json:"amountRaw"`
	RelayerFeeRaw    *big.Int `json:"relayerFeeRaw,omitempty"`
	AmountNormalized *big.Int `json:"amountNormalized"`
	// DustRaw is the source-native remainder lost to 8-decimal truncation.
	DustRaw *big.Int `json:"dustRaw"`

	State         TransferState `json:"state"`
	FailureReason string        `json:"failureReason,omitempty"`
	PendingReason string        `json:"pendingReason,omitempty"`

	SourceTx          *ChainTx   `json:"sourceTx,omitempty"`
	MessageID         *MessageID `json:"messageId,omitempty"`
	Attestation       []byte     `json:"attestation,omitempty"`
	AttestationDigest string     `json:"attestationDigest,omitempty"`
	TargetTx          *ChainTx   `json:"targetTx,omitempty"`

	// RetriedFrom links a redemption retry to the failed record it was derived from.
	RetriedFrom string `json:"retriedFrom,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDraftTransfer creates a record in Draft state with a client-generated id.
func NewDraftTransfer(source, target ChainID, tokenAddress string, tokenDecimals int, amountRaw *big.Int, targetAddress string) *TransferRecord {
	now := time.Now().UTC()
	return &TransferRecord{
		ID:            uuid.NewString(),
		SourceChain:   source,
		TargetChain:   target,
		TokenAddress:  tokenAddress,
		TokenDecimals: tokenDecimals,
		TargetAddress: targetAddress,
		AmountRaw:     amountRaw,
		State:         StateDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SourceKey returns the durable key (sourceChain, sourceTx.id); ok is false before submission.
func (r *TransferRecord) SourceKey() (ChainID, string, bool) {
	if r.SourceTx == nil || r.SourceTx.ID == "" {
		return r.SourceChain, "", false
	}
	return r.SourceChain, r.SourceTx.ID, true
}

// Clone returns a deep copy of the record.
func (r *TransferRecord) Clone() *TransferRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.AmountRaw = cloneInt(r.AmountRaw)
	c.RelayerFeeRaw = cloneInt(r.RelayerFeeRaw)
	c.AmountNormalized = cloneInt(r.AmountNormalized)
	c.DustRaw = cloneInt(r.DustRaw)
	if r.SourceTx != nil {
		tx := *r.SourceTx
		c.SourceTx = &tx
	}
	if r.MessageID != nil {
		id := *r.MessageID
		c.MessageID = &id
	}
	if r.Attestation != nil {
		c.Attestation = append([]byte(nil), r.Attestation...)
	}
	if r.TargetTx != nil {
		tx := *r.TargetTx
		c.TargetTx = &tx
	}
	return &c
}

// RelayerFee returns the relayer fee, zero when unset.
func (r *TransferRecord) RelayerFee() *big.Int {
	if r.RelayerFeeRaw == nil {
		return new(big.Int)
	}
	return r.RelayerFeeRaw
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
