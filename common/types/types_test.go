package types

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainType(t *testing.T) {
	assert.Equal(t, EVM, ParseChainType("EVM"))
	assert.Equal(t, COSMOS, ParseChainType("cosmos"))
	assert.Equal(t, NEAR, ParseChainType(" Near "))
	assert.Equal(t, UNKNOWN, ParseChainType("tron"))
	assert.Equal(t, UNKNOWN, ParseChainType(""))
}

func TestChainIDs(t *testing.T) {
	assert.Equal(t, "ethereum", ChainIDEthereum.String())
	assert.Equal(t, "terra2", ChainIDTerra2.String())
	assert.Equal(t, EVM, FamilyOf(ChainIDBase))
	assert.Equal(t, MOVE, FamilyOf(ChainIDSui))
	assert.Equal(t, COSMOS, FamilyOf(ChainIDSei))
	assert.Equal(t, UNKNOWN, FamilyOf(ChainID(9999)))
	assert.True(t, IsSupportedChain(ChainIDNear))
	assert.False(t, IsSupportedChain(ChainID(9999)))

	id, ok := ParseChainID("solana")
	require.True(t, ok)
	assert.Equal(t, ChainIDSolana, id)
	id, ok = ParseChainID("30")
	require.True(t, ok)
	assert.Equal(t, ChainIDBase, id)
	_, ok = ParseChainID("0")
	assert.False(t, ok)
	_, ok = ParseChainID("70000")
	assert.False(t, ok)
}

func TestTransferStateTransitions(t *testing.T) {
	tests := []struct {
		from, to TransferState
		ok       bool
	}{
		{StateDraft, StateSubmitted, true},
		{StateDraft, StateAttestationReady, false},
		{StateSubmitted, StateAttestationPending, true},
		{StateSubmitted, StateAttestationReady, true},
		{StateAttestationPending, StateAttestationPending, true},
		{StateAttestationPending, StateAttestationReady, true},
		{StateAttestationReady, StateRedeeming, true},
		{StateAttestationReady, StateSubmitted, false},
		{StateRedeeming, StateRedeemed, true},
		{StateRedeeming, StateFailed, true},
		{StateRedeemed, StateFailed, false},
		{StateFailed, StateDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTransferStateRank(t *testing.T) {
	assert.Equal(t, StateAttestationPending.Rank(), StateAttestationReady.Rank())
	assert.Less(t, StateSubmitted.Rank(), StateRedeeming.Rank())
	assert.Equal(t, -1, StateFailed.Rank())
	assert.True(t, StateFailed.IsValid())
	assert.False(t, TransferState("LOST").IsValid())
	assert.True(t, StateRedeemed.IsTerminal())
	assert.False(t, StateRedeeming.IsTerminal())
}

func TestCloneIsDeep(t *testing.T) {
	r := NewDraftTransfer(ChainIDEthereum, ChainIDSolana, "0xtoken", 18, big.NewInt(10), "0xf00")
	r.SourceTx = &ChainTx{ID: "0xabc", BlockRef: 1}
	r.MessageID = &MessageID{EmitterChain: ChainIDEthereum, EmitterAddress: "aa", Sequence: "1"}
	r.Attestation = []byte{1, 2}

	c := r.Clone()
	c.AmountRaw.SetInt64(11)
	c.SourceTx.ID = "0xdef"
	c.MessageID.Sequence = "2"
	c.Attestation[0] = 9

	assert.Equal(t, "10", r.AmountRaw.String())
	assert.Equal(t, "0xabc", r.SourceTx.ID)
	assert.Equal(t, "1", r.MessageID.Sequence)
	assert.Equal(t, byte(1), r.Attestation[0])
	assert.Nil(t, (*TransferRecord)(nil).Clone())
}

func TestSourceKeyAndRelayerFee(t *testing.T) {
	r := NewDraftTransfer(ChainIDEthereum, ChainIDSolana, "0xtoken", 18, big.NewInt(10), "0xf00")
	_, _, ok := r.SourceKey()
	assert.False(t, ok)
	assert.Zero(t, r.RelayerFee().Sign())

	r.SourceTx = &ChainTx{ID: "0xabc"}
	chain, tx, ok := r.SourceKey()
	require.True(t, ok)
	assert.Equal(t, ChainIDEthereum, chain)
	assert.Equal(t, "0xabc", tx)
}

func TestNormalizeEmitterAddress(t *testing.T) {
	got := NormalizeEmitterAddress("0xABCDEF")
	assert.Len(t, got, 64)
	assert.True(t, strings.HasSuffix(got, "abcdef"))
	assert.Equal(t, strings.Repeat("0", 58)+"abcdef", got)

	full := strings.Repeat("ab", 32)
	assert.Equal(t, full, NormalizeEmitterAddress(full))

	id := MessageID{EmitterChain: ChainIDSolana, EmitterAddress: full, Sequence: "7"}
	assert.Equal(t, "1/"+full+"/7", id.String())
}
