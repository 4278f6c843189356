package evm

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	tokenBridgeAddr = common.HexToAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	coreBridgeAddr  = common.HexToAddress("0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B")
	wethAddr        = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddr        = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

type fakeClient struct {
	mu       sync.Mutex
	sent     []*ethtypes.Transaction
	receipts map[common.Hash]*ethtypes.Receipt

	estimateErr error
	revert      func(tx *ethtypes.Transaction) bool
	call        func(msg ethereum.CallMsg) ([]byte, error)
	calls       []ethereum.CallMsg
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{receipts: make(map[common.Hash]*ethtypes.Receipt)}
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return 1000, nil }

func (c *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if c.estimateErr != nil {
		return 0, c.estimateErr
	}
	return 100000, nil
}

func (c *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (c *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1e8), nil
}

func (c *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: big.NewInt(1000), BaseFee: big.NewInt(1e9)}, nil
}

func (c *fakeClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	status := ethtypes.ReceiptStatusSuccessful
	if c.revert != nil && c.revert(tx) {
		status = ethtypes.ReceiptStatusFailed
	}
	c.receipts[tx.Hash()] = &ethtypes.Receipt{
		TxHash:      tx.Hash(),
		Status:      status,
		BlockNumber: big.NewInt(int64(100 + len(c.sent))),
	}
	return nil
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, msg)
	call := c.call
	c.mu.Unlock()
	return call(msg)
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeClient) sentTxs() []*ethtypes.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ethtypes.Transaction(nil), c.sent...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig(t *testing.T, withKey bool) *types.ChainConfig {
	t.Helper()
	config := &types.ChainConfig{
		Name:                 "ethereum",
		ChainType:            types.EVM,
		ChainID:              types.ChainIDEthereum,
		NativeChainID:        1,
		TokenBridgeAddress:   tokenBridgeAddr.Hex(),
		CoreBridgeAddress:    coreBridgeAddr.Hex(),
		WrappedNativeAddress: wethAddr.Hex(),
	}
	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		config.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
	}
	return config
}

func newTestEvm(t *testing.T, client *fakeClient, withKey bool) *evm {
	t.Helper()
	e, err := newEvm(testConfig(t, withKey), client, quietLogger())
	require.NoError(t, err)
	e.pollInterval = time.Millisecond
	return e
}

// methodArgs decodes the arguments of a token bridge or erc20 call.
func methodArgs(t *testing.T, data []byte) (string, []interface{}) {
	t.Helper()
	if m, err := tokenBridgeABI.MethodById(data[:4]); err == nil {
		args, err := m.Inputs.Unpack(data[4:])
		require.NoError(t, err)
		return m.Name, args
	}
	m, err := erc20ABI.MethodById(data[:4])
	require.NoError(t, err)
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return m.Name, args
}
