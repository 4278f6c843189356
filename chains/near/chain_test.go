package near

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	coreBridge  = "contract.wormhole_crypto.near"
	tokenBridge = "contract.portalbridge.near"
	sender      = "alice.near"
)

type fakeSubmitter struct {
	calls []*FunctionCall
	err   error
}

func (s *fakeSubmitter) AccountID() string { return sender }

func (s *fakeSubmitter) Submit(ctx context.Context, call *FunctionCall) (*types.ChainTx, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, call)
	return &types.ChainTx{ID: "6zgh2u9DqHHiXzdy9ouTP7oGky2T4nugqzqt9wJZwNFm", BlockRef: 100200300}, nil
}

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// rpcServer answers every call with result, or with rpcErr when set.
func rpcServer(t *testing.T, seen *[]rpcCall, result interface{}, rpcErr interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var call rpcCall
		assert.NoError(t, json.Unmarshal(body, &call))
		if seen != nil {
			*seen = append(*seen, call)
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func newTestNear(t *testing.T, handler http.HandlerFunc, opts ...Option) *near {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n, err := newNear(&types.ChainConfig{
		Name:               "near",
		ChainType:          types.NEAR,
		ChainID:            types.ChainIDNear,
		RpcUrl:             srv.URL,
		CoreBridgeAddress:  coreBridge,
		TokenBridgeAddress: tokenBridge,
	}, quietLogger(), opts...)
	require.NoError(t, err)
	return n
}

func testVAA(t *testing.T) []byte {
	t.Helper()
	b := &vaa.Builder{
		GuardianSetIndex: 4,
		Timestamp:        time.Unix(1700000000, 0),
		EmitterChain:     types.ChainIDEthereum,
		EmitterAddress:   [32]byte{31: 2},
		Sequence:         9,
		Payload: vaa.EncodeTokenTransfer(&vaa.TokenTransfer{
			Amount:     big.NewInt(42),
			TokenChain: types.ChainIDEthereum,
			ToChain:    types.ChainIDNear,
		}),
	}
	return b.Marshal()
}

func publishLog(t *testing.T, emitter string, seq uint64) string {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"standard": "wormhole",
		"event":    "publish",
		"data":     "0100",
		"nonce":    1,
		"emitter":  emitter,
		"seq":      seq,
		"block":    100200301,
	})
	require.NoError(t, err)
	return eventLogPrefix + string(raw)
}

func txStatusResult(logs ...string) map[string]interface{} {
	return map[string]interface{}{
		"status": map[string]interface{}{"SuccessValue": ""},
		"receipts_outcome": []interface{}{
			map[string]interface{}{"outcome": map[string]interface{}{"executor_id": tokenBridge, "logs": []string{"wormhole/src/lib.rs#1"}}},
			map[string]interface{}{"outcome": map[string]interface{}{"executor_id": coreBridge, "logs": logs}},
		},
	}
}

func TestNewNearValidatesConfig(t *testing.T) {
	_, err := newNear(&types.ChainConfig{RpcUrl: "http://localhost", CoreBridgeAddress: coreBridge}, quietLogger())
	assert.ErrorIs(t, err, berrors.ErrInvalidConfig)
	_, err = newNear(&types.ChainConfig{RpcUrl: "::", CoreBridgeAddress: coreBridge, TokenBridgeAddress: tokenBridge}, quietLogger())
	assert.ErrorIs(t, err, berrors.ErrInvalidConfig)
}

func tokenBridgeEmitter() string {
	sum := sha256.Sum256([]byte(tokenBridge))
	return hex.EncodeToString(sum[:])
}

func TestEmitterIsTokenBridgeHash(t *testing.T) {
	assert.Equal(t, tokenBridgeEmitter(), newTestNear(t, nil).emitter())
}

func TestParseMessageID(t *testing.T) {
	var seen []rpcCall
	n := newTestNear(t, rpcServer(t, &seen, txStatusResult(
		"some other log",
		publishLog(t, "deadbeef", 1),
		publishLog(t, tokenBridgeEmitter(), 532),
	), nil))

	id, err := n.ParseMessageID(context.Background(), &types.ChainTx{ID: sender + ":6zgh2u9DqHHiXzdy9ouTP7oGky2T4nugqzqt9wJZwNFm"})
	require.NoError(t, err)
	assert.Equal(t, types.ChainIDNear, id.EmitterChain)
	assert.Equal(t, n.emitter(), id.EmitterAddress)
	assert.Equal(t, "532", id.Sequence)

	require.Len(t, seen, 1)
	assert.Equal(t, "EXPERIMENTAL_tx_status", seen[0].Method)
	assert.JSONEq(t, `["6zgh2u9DqHHiXzdy9ouTP7oGky2T4nugqzqt9wJZwNFm","alice.near"]`, string(seen[0].Params))
}

func TestParseMessageIDUsesSubmitterAccount(t *testing.T) {
	var seen []rpcCall
	n := newTestNear(t, rpcServer(t, &seen, txStatusResult(publishLog(t, tokenBridgeEmitter(), 7)), nil), WithSubmitter(&fakeSubmitter{}))

	id, err := n.ParseMessageID(context.Background(), &types.ChainTx{ID: "HASH"})
	require.NoError(t, err)
	assert.Equal(t, "7", id.Sequence)
	assert.JSONEq(t, `["HASH","alice.near"]`, string(seen[0].Params))
}

func TestParseMessageIDErrors(t *testing.T) {
	ctx := context.Background()

	n := newTestNear(t, nil)
	_, err := n.ParseMessageID(ctx, &types.ChainTx{ID: "HASH"})
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)
	_, err = n.ParseMessageID(ctx, nil)
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)

	n = newTestNear(t, rpcServer(t, nil, nil, map[string]interface{}{
		"code":    -32000,
		"message": "Server error",
		"cause":   map[string]interface{}{"name": "UNKNOWN_TRANSACTION"},
	}))
	_, err = n.ParseMessageID(ctx, &types.ChainTx{ID: sender + ":HASH"})
	assert.ErrorIs(t, err, berrors.ErrMessageNotFound)

	n = newTestNear(t, rpcServer(t, nil, map[string]interface{}{
		"status":           map[string]interface{}{"Failure": map[string]interface{}{"ActionError": "x"}},
		"receipts_outcome": []interface{}{},
	}, nil))
	_, err = n.ParseMessageID(ctx, &types.ChainTx{ID: sender + ":HASH"})
	assert.ErrorIs(t, err, berrors.ErrTransactionFailed)

	n = newTestNear(t, rpcServer(t, nil, txStatusResult("no event"), nil))
	_, err = n.ParseMessageID(ctx, &types.ChainTx{ID: sender + ":HASH"})
	assert.ErrorIs(t, err, berrors.ErrMessageNotFound)
}

func TestSubmitTransferNative(t *testing.T) {
	sub := &fakeSubmitter{}
	n := newTestNear(t, nil, WithSubmitter(sub))
	r := types.NewDraftTransfer(types.ChainIDNear, types.ChainIDEthereum, nativeToken, 24, big.NewInt(5000), "0xf00")

	tx, err := n.SubmitTransfer(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, sender+":6zgh2u9DqHHiXzdy9ouTP7oGky2T4nugqzqt9wJZwNFm", tx.ID)

	require.Len(t, sub.calls, 1)
	call := sub.calls[0]
	assert.Equal(t, tokenBridge, call.Receiver)
	assert.Equal(t, "send_transfer_near", call.Method)
	assert.Equal(t, "5000", call.Deposit)

	var msg transferMsg
	require.NoError(t, json.Unmarshal(call.Args, &msg))
	assert.Equal(t, uint16(types.ChainIDEthereum), msg.Chain)
	assert.Equal(t, "0", msg.Fee)
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000f00", msg.Receiver)
}

func TestSubmitTransferFungibleToken(t *testing.T) {
	sub := &fakeSubmitter{}
	n := newTestNear(t, nil, WithSubmitter(sub))
	r := types.NewDraftTransfer(types.ChainIDNear, types.ChainIDEthereum, "usdc.near", 6, big.NewInt(1000000), "0xf00")
	r.RelayerFeeRaw = big.NewInt(10)

	_, err := n.SubmitTransfer(context.Background(), r)
	require.NoError(t, err)

	call := sub.calls[0]
	assert.Equal(t, "usdc.near", call.Receiver)
	assert.Equal(t, "ft_transfer_call", call.Method)
	assert.Equal(t, "1", call.Deposit)

	var args map[string]string
	require.NoError(t, json.Unmarshal(call.Args, &args))
	assert.Equal(t, tokenBridge, args["receiver_id"])
	assert.Equal(t, "1000000", args["amount"])
	var msg transferMsg
	require.NoError(t, json.Unmarshal([]byte(args["msg"]), &msg))
	assert.Equal(t, "10", msg.Fee)
}

func TestSubmitTransferErrors(t *testing.T) {
	ctx := context.Background()
	r := types.NewDraftTransfer(types.ChainIDNear, types.ChainIDEthereum, nativeToken, 24, big.NewInt(5), "0xf00")

	_, err := newTestNear(t, nil).SubmitTransfer(ctx, r)
	assert.ErrorIs(t, err, berrors.ErrSignerNotSet)

	n := newTestNear(t, nil, WithSubmitter(&fakeSubmitter{}))
	bad := r.Clone()
	bad.AmountRaw = big.NewInt(0)
	_, err = n.SubmitTransfer(ctx, bad)
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)

	bad = r.Clone()
	bad.TargetAddress = "not hex"
	_, err = n.SubmitTransfer(ctx, bad)
	assert.ErrorIs(t, err, berrors.ErrInvalidTransfer)

	adapter, err := NewNearChain(ctx, n.config, quietLogger())
	require.NoError(t, err)
	_, err = adapter.SubmitTransfer(ctx, r)
	assert.ErrorIs(t, err, berrors.ErrNotImplemented)
}

func TestSubmitRedeem(t *testing.T) {
	ctx := context.Background()
	attestation := testVAA(t)
	sub := &fakeSubmitter{}
	n := newTestNear(t, nil, WithSubmitter(sub))

	tx, err := n.SubmitRedeem(ctx, "bob.near", attestation)
	require.NoError(t, err)
	assert.Equal(t, uint64(100200300), tx.BlockRef)
	require.Len(t, sub.calls, 1)
	assert.Equal(t, "submit_vaa", sub.calls[0].Method)
	assert.Equal(t, tokenBridge, sub.calls[0].Receiver)
	assert.JSONEq(t, `{"vaa":"`+hex.EncodeToString(attestation)+`"}`, string(sub.calls[0].Args))

	sub.err = errors.New(`Smart contract panicked: AlreadyExecuted`)
	_, err = n.SubmitRedeem(ctx, "bob.near", attestation)
	assert.ErrorIs(t, err, berrors.ErrAlreadyRedeemed)

	_, err = n.SubmitRedeem(ctx, "bob.near", []byte{1, 2})
	assert.Error(t, err)
}

func TestIsRedeemed(t *testing.T) {
	attestation := testVAA(t)
	for name, tc := range map[string]struct {
		result string
		want   bool
	}{
		"bool":       {result: "true", want: true},
		"tuple":      {result: `[true,"0x00"]`, want: true},
		"incomplete": {result: "false", want: false},
	} {
		t.Run(name, func(t *testing.T) {
			var seen []rpcCall
			result := make([]int, len(tc.result))
			for i, b := range []byte(tc.result) {
				result[i] = int(b)
			}
			n := newTestNear(t, rpcServer(t, &seen, map[string]interface{}{"result": result, "logs": []string{}}, nil))

			done, err := n.IsRedeemed(context.Background(), attestation)
			require.NoError(t, err)
			assert.Equal(t, tc.want, done)

			require.Len(t, seen, 1)
			assert.Equal(t, "query", seen[0].Method)
			var params map[string]string
			require.NoError(t, json.Unmarshal(seen[0].Params, &params))
			assert.Equal(t, "call_function", params["request_type"])
			assert.Equal(t, "is_transfer_completed", params["method_name"])
			args, err := base64.StdEncoding.DecodeString(params["args_base64"])
			require.NoError(t, err)
			assert.JSONEq(t, `{"vaa":"`+hex.EncodeToString(attestation)+`"}`, string(args))
		})
	}
}

func TestIsRedeemedUnexpectedResult(t *testing.T) {
	n := newTestNear(t, rpcServer(t, nil, map[string]interface{}{"result": []int{'{', '}'}}, nil))
	_, err := n.IsRedeemed(context.Background(), testVAA(t))
	assert.Error(t, err)
}
