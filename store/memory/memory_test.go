package memory

import (
	"context"
	"math/big"
	"testing"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, state types.TransferState, updated time.Time) *types.TransferRecord {
	r := types.NewDraftTransfer(types.ChainIDEthereum, types.ChainIDSolana, "0xtoken", 18, big.NewInt(1), "0xf00")
	r.ID = id
	r.State = state
	r.UpdatedAt = updated
	return r
}

func TestSaveAndGetCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := record("a", types.StateDraft, time.Now())

	require.NoError(t, s.Save(ctx, r))
	r.State = types.StateFailed

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, types.StateDraft, got.State)

	got.AmountRaw.SetInt64(99)
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", again.AmountRaw.String())
}

func TestGetMissing(t *testing.T) {
	_, err := NewStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, berrors.ErrTransferNotFound)
}

func TestSaveRejectsEmptyID(t *testing.T) {
	err := NewStore().Save(context.Background(), &types.TransferRecord{})
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)
}

func TestGetBySourceTxReturnsLatest(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	failed := record("failed", types.StateFailed, base)
	failed.SourceTx = &types.ChainTx{ID: "0xabc", BlockRef: 100}
	retry := record("retry", types.StateRedeemed, base.Add(time.Minute))
	retry.SourceTx = &types.ChainTx{ID: "0xabc", BlockRef: 100}
	other := record("other", types.StateSubmitted, base.Add(time.Hour))
	other.SourceTx = &types.ChainTx{ID: "0xdef", BlockRef: 101}

	require.NoError(t, s.Save(ctx, retry))
	require.NoError(t, s.Save(ctx, failed))
	require.NoError(t, s.Save(ctx, other))

	got, err := s.GetBySourceTx(ctx, types.ChainIDEthereum, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "retry", got.ID)

	_, err = s.GetBySourceTx(ctx, types.ChainIDBSC, "0xabc")
	assert.ErrorIs(t, err, berrors.ErrTransferNotFound)
}

func TestListByStateOrdersOldestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Save(ctx, record("late", types.StateSubmitted, base.Add(2*time.Second))))
	require.NoError(t, s.Save(ctx, record("early", types.StateAttestationPending, base)))
	require.NoError(t, s.Save(ctx, record("done", types.StateRedeemed, base)))

	got, err := s.ListByState(ctx, types.StateSubmitted, types.StateAttestationPending)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
}
