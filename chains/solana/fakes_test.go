package solana

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testCoreBridge  = "worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"
	testTokenBridge = "wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb"
	testUSDCMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeClient struct {
	mu       sync.Mutex
	sent     []*sol.Transaction
	accounts map[sol.PublicKey]bool

	sendErr   error
	statusErr interface{}
	txResult  *rpc.GetTransactionResult
	txErr     error
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{accounts: make(map[sol.PublicKey]bool)}
}

func (c *fakeClient) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return 77, nil
}

func (c *fakeClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: sol.Hash{1}}}, nil
}

func (c *fakeClient) SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return sol.Signature{}, c.sendErr
	}
	c.sent = append(c.sent, tx)
	return tx.Signatures[0], nil
}

func (c *fakeClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		Slot:               55,
		Err:                c.statusErr,
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
	}}}, nil
}

func (c *fakeClient) GetTransaction(ctx context.Context, sig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txErr != nil {
		return nil, c.txErr
	}
	return c.txResult, nil
}

func (c *fakeClient) GetAccountInfo(ctx context.Context, account sol.PublicKey) (*rpc.GetAccountInfoResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts[account] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{}, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) setAccount(account sol.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account] = true
}

func (c *fakeClient) sentTransactions() []*sol.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sol.Transaction(nil), c.sent...)
}

type fakePoster struct {
	client *fakeClient
	posted sol.PublicKey
	calls  int
}

func (p *fakePoster) PostVAA(ctx context.Context, attestation []byte) error {
	p.calls++
	p.client.setAccount(p.posted)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig(t *testing.T, withKey bool) *types.ChainConfig {
	t.Helper()
	config := &types.ChainConfig{
		Name:               "solana",
		ChainType:          types.SOLANA,
		ChainID:            types.ChainIDSolana,
		RpcUrl:             "http://localhost:8899",
		CoreBridgeAddress:  testCoreBridge,
		TokenBridgeAddress: testTokenBridge,
	}
	if withKey {
		key, err := sol.NewRandomPrivateKey()
		require.NoError(t, err)
		config.PrivateKey = key.String()
	}
	return config
}

func newTestSolana(t *testing.T, withKey bool, opts ...Option) (*solana, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	s, err := newSolana(testConfig(t, withKey), client, quietLogger(), opts...)
	require.NoError(t, err)
	s.pollInterval = time.Millisecond
	return s, client
}

// testVAA builds a transfer from Ethereum to Solana of a token native to tokenChain.
func testVAA(t *testing.T, tokenChain types.ChainID, tokenAddress [32]byte) []byte {
	t.Helper()
	emitter, err := vaa.AddressFromHex("0x3ee18b2214aff97000d974cf647e7c347e8fa585")
	require.NoError(t, err)
	recipient, err := sol.PublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	require.NoError(t, err)

	var to [32]byte
	copy(to[:], recipient.Bytes())
	b := &vaa.Builder{
		GuardianSetIndex: 4,
		Timestamp:        time.Unix(1700000000, 0),
		EmitterChain:     types.ChainIDEthereum,
		EmitterAddress:   emitter,
		Sequence:         7,
		ConsistencyLevel: 1,
		Payload: vaa.EncodeTokenTransfer(&vaa.TokenTransfer{
			Amount:       big.NewInt(250000000),
			TokenAddress: tokenAddress,
			TokenChain:   tokenChain,
			To:           to,
			ToChain:      types.ChainIDSolana,
		}),
	}
	return b.Marshal()
}

// instructionData returns the data of the i-th instruction, the compute budget instruction is 0.
func instructionData(t *testing.T, tx *sol.Transaction, i int) (sol.PublicKey, []byte) {
	t.Helper()
	require.Greater(t, len(tx.Message.Instructions), i)
	ix := tx.Message.Instructions[i]
	require.Greater(t, len(tx.Message.AccountKeys), int(ix.ProgramIDIndex))
	return tx.Message.AccountKeys[ix.ProgramIDIndex], ix.Data
}
