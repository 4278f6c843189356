package evm

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-lib/connectionmonitor"
	"github.com/pkg/errors"
)

// staleHeadAfter is how long the head may stay on one block before the node is treated as stuck.
const staleHeadAfter = 5 * time.Minute

// nodeHealth reports the health of the adapter's RPC node to the connection monitor. A head that
// stays on one block longer than staleHeadAfter fails the check.
type nodeHealth struct {
	chain *evm
	now   func() time.Time

	mu       sync.Mutex
	head     uint64
	headSeen time.Time
}

func (e *evm) initMonitor(ctx context.Context, opts ...connectionmonitor.Option) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	health := &nodeHealth{chain: e, now: time.Now}
	e.monitor = connectionmonitor.NewConnectionMonitor(health, e.logger, e.config.Name, opts...)
	return e.monitor.Start(ctx)
}

// CheckConnection fetches the head block and compares it with the last one seen.
func (p *nodeHealth) CheckConnection(ctx context.Context) error {
	client, err := p.chain.getClient()
	if err != nil {
		return err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get block number")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if head != p.head || p.headSeen.IsZero() {
		p.head = head
		p.headSeen = now
		return nil
	}
	if stalled := now.Sub(p.headSeen); stalled > staleHeadAfter {
		return errors.Errorf("head stuck at block %d for %s", head, stalled.Round(time.Second))
	}
	return nil
}

// Reconnect swaps in a freshly dialed client and closes the previous one.
func (p *nodeHealth) Reconnect(ctx context.Context) error {
	if p.chain.dial == nil {
		return errors.New("reconnect not supported")
	}
	client, err := p.chain.dial(p.chain.config.RpcUrl)
	if err != nil {
		return errors.Wrapf(err, "failed to dial %s", p.chain.config.Name)
	}

	p.chain.clientMutex.Lock()
	old := p.chain.client
	p.chain.client = client
	p.chain.clientMutex.Unlock()

	p.mu.Lock()
	p.headSeen = time.Time{}
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}
