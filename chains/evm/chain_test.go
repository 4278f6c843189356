package evm

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMessagePublishedTopic(t *testing.T) {
	assert.Equal(t,
		"0x6eb224fb001ed210e379b335e35efe88672a8ce935d981a6896b27ffdf52a3b2",
		logMessagePublishedTopic.Hex())
}

func TestNewEvmRequiresBridgeAddresses(t *testing.T) {
	config := testConfig(t, false)
	config.CoreBridgeAddress = ""
	_, err := newEvm(config, newFakeClient(), quietLogger())
	assert.ErrorIs(t, err, berrors.ErrInvalidConfig)

	config = testConfig(t, false)
	config.NativeChainID = 0
	_, err = newEvm(config, newFakeClient(), quietLogger())
	assert.ErrorIs(t, err, berrors.ErrInvalidConfig)
}

func publishedLog(t *testing.T, sender common.Address, sequence uint64) *ethtypes.Log {
	t.Helper()
	data, err := coreBridgeABI.Events["LogMessagePublished"].Inputs.NonIndexed().Pack(sequence, uint32(7), []byte("payload"), uint8(1))
	require.NoError(t, err)
	return &ethtypes.Log{
		Address: coreBridgeAddr,
		Topics:  []common.Hash{logMessagePublishedTopic, common.BytesToHash(sender.Bytes())},
		Data:    data,
	}
}

func TestParseMessageID(t *testing.T) {
	client := newFakeClient()
	e := newTestEvm(t, client, false)
	ctx := context.Background()
	hash := common.HexToHash("0xabc")

	other := publishedLog(t, usdcAddr, 9)
	client.receipts[hash] = &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		Logs: []*ethtypes.Log{
			{Address: usdcAddr, Topics: []common.Hash{{1}}},
			other,
			publishedLog(t, tokenBridgeAddr, 42),
		},
	}

	id, err := e.ParseMessageID(ctx, &types.ChainTx{ID: hash.Hex(), BlockRef: 100})
	require.NoError(t, err)
	assert.Equal(t, types.ChainIDEthereum, id.EmitterChain)
	assert.Equal(t, "000000000000000000000000"+strings.ToLower(tokenBridgeAddr.Hex()[2:]), id.EmitterAddress)
	assert.Equal(t, "42", id.Sequence)
}

func TestParseMessageIDErrors(t *testing.T) {
	client := newFakeClient()
	e := newTestEvm(t, client, false)
	ctx := context.Background()

	_, err := e.ParseMessageID(ctx, &types.ChainTx{ID: "0x01"})
	assert.ErrorIs(t, err, berrors.ErrMessageNotFound, "receipt not indexed yet")

	client.receipts[common.HexToHash("0x02")] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}
	_, err = e.ParseMessageID(ctx, &types.ChainTx{ID: "0x02"})
	assert.ErrorIs(t, err, berrors.ErrMessageNotFound, "no bridge event")

	client.receipts[common.HexToHash("0x03")] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed}
	_, err = e.ParseMessageID(ctx, &types.ChainTx{ID: "0x03"})
	assert.ErrorIs(t, err, berrors.ErrTransactionFailed)

	_, err = e.ParseMessageID(ctx, nil)
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)
}

func transferRecord(token common.Address) *types.TransferRecord {
	r := types.NewDraftTransfer(types.ChainIDEthereum, types.ChainIDSolana, token.Hex(), 6, big.NewInt(5_000_000), "0xf00")
	r.RelayerFeeRaw = big.NewInt(1000)
	return r
}

func TestSubmitTransferApprovesAndTransfers(t *testing.T) {
	client := newFakeClient()
	client.call = func(msg ethereum.CallMsg) ([]byte, error) {
		return erc20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(0))
	}
	e := newTestEvm(t, client, true)

	record := transferRecord(usdcAddr)
	tx, err := e.SubmitTransfer(context.Background(), record)
	require.NoError(t, err)

	sent := client.sentTxs()
	require.Len(t, sent, 2)

	name, args := methodArgs(t, sent[0].Data())
	assert.Equal(t, "approve", name)
	assert.Equal(t, usdcAddr, *sent[0].To())
	assert.Equal(t, tokenBridgeAddr, args[0])
	assert.Equal(t, "5000000", args[1].(*big.Int).String())

	name, args = methodArgs(t, sent[1].Data())
	assert.Equal(t, "transferTokens", name)
	assert.Equal(t, tokenBridgeAddr, *sent[1].To())
	assert.Equal(t, usdcAddr, args[0])
	assert.Equal(t, "5000000", args[1].(*big.Int).String())
	assert.Equal(t, uint16(types.ChainIDSolana), args[2])
	recipient, err := vaa.AddressFromHex("0xf00")
	require.NoError(t, err)
	assert.Equal(t, recipient, args[3])
	assert.Equal(t, "1000", args[4].(*big.Int).String())
	assert.Equal(t, messageNonce(record.ID), args[5])
	assert.Zero(t, sent[1].Value().Sign())

	assert.Equal(t, sent[1].Hash().Hex(), tx.ID)
	assert.Equal(t, uint64(102), tx.BlockRef)
}

func TestSubmitTransferSkipsApprovalWithAllowance(t *testing.T) {
	client := newFakeClient()
	client.call = func(msg ethereum.CallMsg) ([]byte, error) {
		return erc20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(1e18))
	}
	e := newTestEvm(t, client, true)

	_, err := e.SubmitTransfer(context.Background(), transferRecord(usdcAddr))
	require.NoError(t, err)
	require.Len(t, client.sentTxs(), 1)
}

func TestSubmitTransferWrappedNative(t *testing.T) {
	client := newFakeClient()
	e := newTestEvm(t, client, true)

	_, err := e.SubmitTransfer(context.Background(), transferRecord(wethAddr))
	require.NoError(t, err)

	sent := client.sentTxs()
	require.Len(t, sent, 1)
	name, _ := methodArgs(t, sent[0].Data())
	assert.Equal(t, "wrapAndTransferETH", name)
	assert.Equal(t, "5000000", sent[0].Value().String())
	assert.Empty(t, client.calls, "no allowance lookup for native transfers")
}

func TestSubmitTransferErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid token", func(t *testing.T) {
		e := newTestEvm(t, newFakeClient(), true)
		r := transferRecord(usdcAddr)
		r.TokenAddress = "not-an-address"
		_, err := e.SubmitTransfer(ctx, r)
		assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)
	})

	t.Run("revert", func(t *testing.T) {
		client := newFakeClient()
		client.revert = func(*ethtypes.Transaction) bool { return true }
		e := newTestEvm(t, client, true)
		_, err := e.SubmitTransfer(ctx, transferRecord(wethAddr))
		assert.ErrorIs(t, err, berrors.ErrTransactionFailed)
	})

	t.Run("read only adapter", func(t *testing.T) {
		adapter := newTestEvm(t, newFakeClient(), false).build()
		_, err := adapter.SubmitTransfer(ctx, transferRecord(usdcAddr))
		assert.ErrorIs(t, err, berrors.ErrNotImplemented)
		_, err = adapter.SubmitRedeem(ctx, "0x1", []byte{1})
		assert.ErrorIs(t, err, berrors.ErrNotImplemented)
	})
}

func testVAA(t *testing.T, tokenChain types.ChainID, token common.Address) []byte {
	t.Helper()
	var tokenAddr, to, emitter [32]byte
	copy(tokenAddr[12:], token.Bytes())
	to[31] = 0x0f
	emitter[31] = 0x01
	b := &vaa.Builder{
		Timestamp:      time.Unix(1700000000, 0),
		EmitterChain:   types.ChainIDSolana,
		EmitterAddress: emitter,
		Sequence:       7,
		Payload: vaa.EncodeTokenTransfer(&vaa.TokenTransfer{
			Amount:       big.NewInt(10),
			TokenAddress: tokenAddr,
			TokenChain:   tokenChain,
			To:           to,
			ToChain:      types.ChainIDEthereum,
		}),
	}
	return b.Marshal()
}

func TestSubmitRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("completes transfer", func(t *testing.T) {
		client := newFakeClient()
		e := newTestEvm(t, client, true)
		attestation := testVAA(t, types.ChainIDSolana, usdcAddr)

		tx, err := e.SubmitRedeem(ctx, "0xf00", attestation)
		require.NoError(t, err)
		sent := client.sentTxs()
		require.Len(t, sent, 1)
		name, args := methodArgs(t, sent[0].Data())
		assert.Equal(t, "completeTransfer", name)
		assert.Equal(t, attestation, args[0])
		assert.Equal(t, sent[0].Hash().Hex(), tx.ID)
	})

	t.Run("unwraps local native token", func(t *testing.T) {
		client := newFakeClient()
		e := newTestEvm(t, client, true)

		_, err := e.SubmitRedeem(ctx, "0xf00", testVAA(t, types.ChainIDEthereum, wethAddr))
		require.NoError(t, err)
		name, _ := methodArgs(t, client.sentTxs()[0].Data())
		assert.Equal(t, "completeTransferAndUnwrapETH", name)
	})

	t.Run("already completed on estimation", func(t *testing.T) {
		client := newFakeClient()
		client.estimateErr = errors.New("execution reverted: transfer already completed")
		e := newTestEvm(t, client, true)

		_, err := e.SubmitRedeem(ctx, "0xf00", testVAA(t, types.ChainIDSolana, usdcAddr))
		assert.ErrorIs(t, err, berrors.ErrAlreadyRedeemed)
		assert.Empty(t, client.sentTxs())
	})

	t.Run("reverted after concurrent completion", func(t *testing.T) {
		client := newFakeClient()
		client.revert = func(*ethtypes.Transaction) bool { return true }
		client.call = func(msg ethereum.CallMsg) ([]byte, error) {
			return tokenBridgeABI.Methods["isTransferCompleted"].Outputs.Pack(true)
		}
		e := newTestEvm(t, client, true)

		_, err := e.SubmitRedeem(ctx, "0xf00", testVAA(t, types.ChainIDSolana, usdcAddr))
		assert.ErrorIs(t, err, berrors.ErrAlreadyRedeemed)
	})

	t.Run("reverted for another reason", func(t *testing.T) {
		client := newFakeClient()
		client.revert = func(*ethtypes.Transaction) bool { return true }
		client.call = func(msg ethereum.CallMsg) ([]byte, error) {
			return tokenBridgeABI.Methods["isTransferCompleted"].Outputs.Pack(false)
		}
		e := newTestEvm(t, client, true)

		_, err := e.SubmitRedeem(ctx, "0xf00", testVAA(t, types.ChainIDSolana, usdcAddr))
		assert.ErrorIs(t, err, berrors.ErrTransactionFailed)
		assert.NotErrorIs(t, err, berrors.ErrAlreadyRedeemed)
	})

	t.Run("undecodable attestation", func(t *testing.T) {
		e := newTestEvm(t, newFakeClient(), true)
		_, err := e.SubmitRedeem(ctx, "0xf00", []byte{1, 2})
		assert.ErrorIs(t, err, berrors.ErrInvalidAttestation)
	})
}

func TestIsRedeemedUsesDigest(t *testing.T) {
	client := newFakeClient()
	client.call = func(msg ethereum.CallMsg) ([]byte, error) {
		return tokenBridgeABI.Methods["isTransferCompleted"].Outputs.Pack(true)
	}
	e := newTestEvm(t, client, false)
	attestation := testVAA(t, types.ChainIDSolana, usdcAddr)

	done, err := e.IsRedeemed(context.Background(), attestation)
	require.NoError(t, err)
	assert.True(t, done)

	require.Len(t, client.calls, 1)
	assert.Equal(t, tokenBridgeAddr, *client.calls[0].To)
	_, args := methodArgs(t, client.calls[0].Data)
	digest, err := vaa.DigestHex(attestation)
	require.NoError(t, err)
	got := args[0].([32]byte)
	assert.Equal(t, digest, "0x"+hex.EncodeToString(got[:]))
}

func TestCloseClosesClient(t *testing.T) {
	client := newFakeClient()
	e := newTestEvm(t, client, false)
	adapter := e.build()
	adapter.Close()
	adapter.Close()
	assert.True(t, client.closed)
	_, err := e.ParseMessageID(context.Background(), &types.ChainTx{ID: "0x01"})
	assert.Error(t, err)
}
