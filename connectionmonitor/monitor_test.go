package connectionmonitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu            sync.Mutex
	checkErr      error
	reconnectErrs []error
	checks        int
	reconnects    int
}

func (c *fakeClient) CheckConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	return c.checkErr
}

func (c *fakeClient) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.reconnects
	c.reconnects++
	if i < len(c.reconnectErrs) {
		return c.reconnectErrs[i]
	}
	return nil
}

func (c *fakeClient) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks, c.reconnects
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestCheckAndReconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		c := &fakeClient{}
		m := NewConnectionMonitor(c, quietLogger(), "ethereum").(*connectionMonitor)
		require.NoError(t, m.checkAndReconnect(ctx, nil))
		_, reconnects := c.counts()
		assert.Zero(t, reconnects)
	})

	t.Run("reconnects after failed check", func(t *testing.T) {
		c := &fakeClient{checkErr: errors.New("eof"), reconnectErrs: []error{errors.New("refused")}}
		m := NewConnectionMonitor(c, quietLogger(), "ethereum", WithReconnectDelay(time.Millisecond)).(*connectionMonitor)
		require.NoError(t, m.checkAndReconnect(ctx, nil))
		_, reconnects := c.counts()
		assert.Equal(t, 2, reconnects)
	})

	t.Run("gives up", func(t *testing.T) {
		refused := errors.New("refused")
		c := &fakeClient{checkErr: errors.New("eof"), reconnectErrs: []error{refused, refused, refused}}
		m := NewConnectionMonitor(c, quietLogger(), "ethereum", WithReconnectDelay(time.Millisecond)).(*connectionMonitor)
		err := m.checkAndReconnect(ctx, nil)
		assert.ErrorIs(t, err, refused)
		_, reconnects := c.counts()
		assert.Equal(t, maxReconnectAttempts, reconnects)
	})
}

func TestMonitorReportsHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := &fakeClient{checkErr: errors.New("eof"), reconnectErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}

	mon := NewConnectionMonitor(c, quietLogger(), "solana",
		WithInterval(time.Millisecond),
		WithReconnectDelay(time.Millisecond),
		WithMetrics(m),
	)
	require.NoError(t, mon.Start(context.Background()))
	assert.Error(t, mon.Start(context.Background()))

	require.Eventually(t, func() bool {
		checks, _ := c.counts()
		return checks >= 2
	}, time.Second, time.Millisecond)
	mon.Stop()
	mon.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChainHealth.WithLabelValues("solana")))
}

func TestMonitorRestart(t *testing.T) {
	c := &fakeClient{}
	mon := NewConnectionMonitor(c, quietLogger(), "bsc", WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mon.Start(ctx))
	mon.Stop()
	require.NoError(t, mon.Start(ctx))
	require.Eventually(t, func() bool {
		checks, _ := c.counts()
		return checks > 0
	}, time.Second, time.Millisecond)
	mon.Stop()
}
