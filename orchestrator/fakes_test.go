package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/guardian"
	"github.com/ClipFinance/bridge-lib/redemption"
	"github.com/ClipFinance/bridge-lib/store/memory"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	chainA = types.ChainIDEthereum
	chainB = types.ChainIDSolana
)

var testMessageID = types.MessageID{EmitterChain: chainA, EmitterAddress: "0xf00", Sequence: "42"}

type fakeAdapter struct {
	mu      sync.Mutex
	chainID types.ChainID

	submitTx    *types.ChainTx
	submitErr   error
	submitCalls int

	parseID    *types.MessageID
	parseErrs  []error
	parseCalls int

	redeemTx      *types.ChainTx
	redeemErr     error
	redeemCalls   int
	isRedeemedErr error
	redeemed      map[string]bool
}

var _ types.ChainAdapter = (*fakeAdapter)(nil)

func newFakeAdapter(chainID types.ChainID) *fakeAdapter {
	id := testMessageID
	return &fakeAdapter{
		chainID:  chainID,
		submitTx: &types.ChainTx{ID: "0xabc", BlockRef: 100},
		parseID:  &id,
		redeemTx: &types.ChainTx{ID: "B999", BlockRef: 55},
		redeemed: make(map[string]bool),
	}
}

func (a *fakeAdapter) ChainID() types.ChainID { return a.chainID }

func (a *fakeAdapter) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitCalls++
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	return a.submitTx, nil
}

func (a *fakeAdapter) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.parseCalls
	a.parseCalls++
	if i < len(a.parseErrs) && a.parseErrs[i] != nil {
		return nil, a.parseErrs[i]
	}
	id := *a.parseID
	return &id, nil
}

func (a *fakeAdapter) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.redeemCalls++
	if a.redeemed[string(attestation)] {
		return nil, berrors.ErrAlreadyRedeemed
	}
	if a.redeemErr != nil {
		return nil, a.redeemErr
	}
	a.redeemed[string(attestation)] = true
	return a.redeemTx, nil
}

func (a *fakeAdapter) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isRedeemedErr != nil {
		return false, a.isRedeemedErr
	}
	return a.redeemed[string(attestation)], nil
}

func (a *fakeAdapter) counts() (submit, parse, redeem int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitCalls, a.parseCalls, a.redeemCalls
}

type adapterTable map[types.ChainID]types.ChainAdapter

func (t adapterTable) Get(id types.ChainID) types.ChainAdapter { return t[id] }

// fakeGuardian answers from a list of results, repeating the last one.
type fakeGuardian struct {
	mu      sync.Mutex
	results []*types.GuardianResult
	calls   int
	hook    func(call int)
}

func (g *fakeGuardian) Query(ctx context.Context, id types.MessageID) (*types.GuardianResult, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	res := g.results[len(g.results)-1]
	if i < len(g.results) {
		res = g.results[i]
	}
	hook := g.hook
	g.mu.Unlock()
	if hook != nil {
		hook(i + 1)
	}
	return res, nil
}

func (g *fakeGuardian) set(results ...*types.GuardianResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = results
	g.calls = 0
}

func (g *fakeGuardian) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var notFound = &types.GuardianResult{Kind: types.GuardianNotFound}

func pendingResult() *types.GuardianResult {
	return &types.GuardianResult{Kind: types.GuardianPending, Reason: guardian.PendingReasonGovernor}
}

func foundResult(attestation []byte) *types.GuardianResult {
	return &types.GuardianResult{Kind: types.GuardianFound, Attestation: attestation}
}

// recordingStore keeps every saved state per record id.
type recordingStore struct {
	*memory.Store
	mu     sync.Mutex
	states map[string][]types.TransferState
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore(), states: make(map[string][]types.TransferState)}
}

func (s *recordingStore) Save(ctx context.Context, r *types.TransferRecord) error {
	s.mu.Lock()
	s.states[r.ID] = append(s.states[r.ID], r.State)
	s.mu.Unlock()
	return s.Store.Save(ctx, r)
}

func (s *recordingStore) history(id string) []types.TransferState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TransferState(nil), s.states[id]...)
}

type harness struct {
	orch     *Orchestrator
	source   *fakeAdapter
	target   *fakeAdapter
	guardian *fakeGuardian
	store    *recordingStore
	vaa      []byte
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := quietLogger()
	h := &harness{
		source:   newFakeAdapter(chainA),
		target:   newFakeAdapter(chainB),
		guardian: &fakeGuardian{results: []*types.GuardianResult{notFound}},
		store:    newRecordingStore(),
		vaa:      testVAA(t, testMessageID),
	}
	poller := guardian.NewPoller(h.guardian, guardian.PollerConfig{
		Interval:            time.Millisecond,
		TransportBackoff:    time.Millisecond,
		MaxTransportBackoff: time.Millisecond,
	}, logger, nil)
	checker := redemption.NewChecker(redemption.Config{Interval: time.Millisecond, MaxAttempts: 3}, logger)
	h.orch = New(Config{
		MaxAttempts:   5,
		ParseRetries:  3,
		ParseInterval: time.Millisecond,
		ResumeWorkers: 2,
	}, adapterTable{chainA: h.source, chainB: h.target}, poller, checker, logger, WithStore(h.store))
	return h
}

func testVAA(t *testing.T, id types.MessageID) []byte {
	t.Helper()
	emitter, err := vaa.AddressFromHex(id.EmitterAddress)
	require.NoError(t, err)
	amt, _ := new(big.Int).SetString("250000000", 10)
	b := &vaa.Builder{
		GuardianSetIndex: 3,
		Timestamp:        time.Unix(1700000000, 0),
		EmitterChain:     id.EmitterChain,
		EmitterAddress:   emitter,
		Sequence:         42,
		ConsistencyLevel: 1,
		Payload:          vaa.EncodeTokenTransfer(&vaa.TokenTransfer{Amount: amt, TokenChain: chainA, ToChain: chainB}),
	}
	return b.Marshal()
}

func draft() *types.TransferRecord {
	raw, _ := new(big.Int).SetString("2500000000000000000", 10)
	r := types.NewDraftTransfer(chainA, chainB, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", 18, raw, "0xf00")
	r.RelayerFeeRaw = big.NewInt(0)
	return r
}

// readyRecord drives a draft to AttestationReady.
func (h *harness) readyRecord(t *testing.T) *types.TransferRecord {
	t.Helper()
	h.guardian.set(foundResult(h.vaa))
	r, err := h.orch.Submit(context.Background(), draft())
	require.NoError(t, err)
	r, err = h.orch.AwaitAttestation(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, types.StateAttestationReady, r.State)
	return r
}
