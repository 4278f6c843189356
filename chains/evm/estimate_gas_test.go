package evm

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareTransactionLegacy(t *testing.T) {
	e := newTestEvm(t, newFakeClient(), true)

	tx, err := e.prepareTransaction(context.Background(), contractCall{to: tokenBridgeAddr, data: []byte{1}}, 7)
	require.NoError(t, err)
	assert.Equal(t, uint8(ethtypes.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(110000), tx.Gas())
	assert.Equal(t, "1500000000", tx.GasPrice().String())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, tokenBridgeAddr, *tx.To())
}

func TestPrepareTransactionDynamic(t *testing.T) {
	e := newTestEvm(t, newFakeClient(), true)
	e.config.TxType = TxTypeEIP1559

	tx, err := e.prepareTransaction(context.Background(), contractCall{to: tokenBridgeAddr}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, "100000000", tx.GasTipCap().String())
	assert.Equal(t, "1400000000", tx.GasFeeCap().String())
	assert.Equal(t, "1", tx.ChainId().String())
}

func TestPrepareTransactionEstimateError(t *testing.T) {
	client := newFakeClient()
	client.estimateErr = errors.New("execution reverted")
	e := newTestEvm(t, client, true)

	_, err := e.prepareTransaction(context.Background(), contractCall{to: common.Address{}}, 0)
	assert.ErrorContains(t, err, "execution reverted")
}
