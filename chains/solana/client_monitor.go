package solana

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-lib/connectionmonitor"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// staleSlotAfter bounds how long the confirmed slot may stand still. Solana produces a slot
// every ~400ms, so a minute of silence means the node fell behind.
const staleSlotAfter = time.Minute

// dialRPC opens a client for an RPC URL.
var dialRPC = func(url string) solanaClient { return rpc.New(url) }

// slotHealth checks that the node answers and that its confirmed slot keeps moving.
type slotHealth struct {
	chain *solana
	now   func() time.Time

	mu       sync.Mutex
	slot     uint64
	slotSeen time.Time
}

func (p *slotHealth) CheckConnection(ctx context.Context) error {
	client, err := p.chain.getClient()
	if err != nil {
		return err
	}
	slot, err := client.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return errors.Wrap(err, "failed to get slot")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if slot != p.slot || p.slotSeen.IsZero() {
		p.slot, p.slotSeen = slot, now
		return nil
	}
	if now.Sub(p.slotSeen) > staleSlotAfter {
		return errors.Errorf("confirmed slot stuck at %d", slot)
	}
	return nil
}

// Reconnect dials the configured URL again and closes the replaced client.
func (p *slotHealth) Reconnect(ctx context.Context) error {
	fresh := dialRPC(p.chain.config.RpcUrl)

	p.chain.clientMutex.Lock()
	old := p.chain.client
	p.chain.client = fresh
	p.chain.clientMutex.Unlock()

	p.mu.Lock()
	p.slotSeen = time.Time{}
	p.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			p.chain.log().WithError(err).Debug("Failed to close replaced client")
		}
	}
	return nil
}

func (s *solana) initMonitor(ctx context.Context) error {
	s.monitorMutex.Lock()
	defer s.monitorMutex.Unlock()

	health := &slotHealth{chain: s, now: time.Now}
	s.monitor = connectionmonitor.NewConnectionMonitor(health, s.logger, s.config.Name, s.monitorOpts...)
	return s.monitor.Start(ctx)
}
