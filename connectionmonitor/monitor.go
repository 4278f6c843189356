// Package connectionmonitor keeps an adapter's RPC client alive by checking it periodically and
// reconnecting after a failed check.
package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// healthCheckInterval defines interval between connection health checks
	healthCheckInterval = 30 * time.Second
	// reconnectDelay defines the pause between reconnection attempts
	reconnectDelay = 5 * time.Second
	// maxReconnectAttempts defines maximum number of reconnection attempts
	maxReconnectAttempts = 3
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// BlockchainClient represents blockchain client interface
type BlockchainClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect attempts to reconnect to blockchain node
	Reconnect(ctx context.Context) error
}

// Option overrides a monitor default.
type Option func(*connectionMonitor)

// WithInterval sets the interval between health checks.
func WithInterval(d time.Duration) Option {
	return func(m *connectionMonitor) { m.interval = d }
}

// WithReconnectDelay sets the pause between reconnection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *connectionMonitor) { m.reconnectDelay = d }
}

// WithMetrics reports the chain health gauge after every check.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *connectionMonitor) { c.metrics = m }
}

type connectionMonitor struct {
	client         BlockchainClient
	logger         *logrus.Logger
	metrics        *metrics.Metrics
	chainName      string
	interval       time.Duration
	reconnectDelay time.Duration

	stopChan     chan struct{}
	stopped      chan struct{}
	isMonitoring bool
	monitorMutex sync.Mutex
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the blockchain client to monitor.
// - logger: the logger for logging purposes.
// - chainName: the name of the chain, used in logs and metrics.
// - opts: optional interval, reconnect delay and metrics overrides.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client BlockchainClient,
	logger *logrus.Logger,
	chainName string,
	opts ...Option,
) ConnectionMonitor {
	m := &connectionMonitor{
		client:         client,
		logger:         logger,
		chainName:      chainName,
		interval:       healthCheckInterval,
		reconnectDelay: reconnectDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()
	if m.isMonitoring {
		return errors.Errorf("connection monitor is already running for chain %s", m.chainName)
	}
	m.isMonitoring = true
	m.stopChan = make(chan struct{})
	m.stopped = make(chan struct{})

	go m.monitorConnection(ctx, m.stopChan, m.stopped)
	return nil
}

// Stop stops connection monitoring and waits for the monitoring goroutine to return.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	if !m.isMonitoring {
		m.monitorMutex.Unlock()
		return
	}
	close(m.stopChan)
	stopped := m.stopped
	m.isMonitoring = false
	m.monitorMutex.Unlock()

	<-stopped
}

// monitorConnection monitors the connection state and attempts to reconnect if needed.
func (m *connectionMonitor) monitorConnection(ctx context.Context, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-stop:
			m.logger.WithField("chain", m.chainName).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			err := m.checkAndReconnect(ctx, stop)
			m.metrics.SetChainHealth(m.chainName, err == nil)
			if err != nil {
				m.logger.WithFields(logrus.Fields{
					"chain": m.chainName,
					"error": err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

// checkAndReconnect checks the connection state and attempts to reconnect if needed.
//
// Parameters:
// - ctx: the context for managing the request.
// - stop: closed when the monitor is stopped.
//
// Returns:
// - error: an error if the reconnection fails.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context, stop <-chan struct{}) error {
	err := m.client.CheckConnection(ctx)
	if err == nil {
		m.logger.WithField("chain", m.chainName).Debug("Ping successful")
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"chain": m.chainName,
		"error": err,
	}).Warn("Connection check failed, attempting to reconnect")

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		err := m.client.Reconnect(ctx)
		if err == nil {
			m.logger.WithFields(logrus.Fields{
				"chain":   m.chainName,
				"attempt": attempt,
			}).Info("Client successfully reconnected")
			return nil
		}

		m.logger.WithFields(logrus.Fields{
			"chain":   m.chainName,
			"attempt": attempt,
			"error":   err,
		}).Error("Reconnection attempt failed")

		if attempt == maxReconnectAttempts {
			return errors.Wrapf(err, "failed to reconnect to chain %s", m.chainName)
		}

		timer := time.NewTimer(m.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stop:
			timer.Stop()
			return errors.New("monitor stopped")
		case <-timer.C:
		}
	}
	return nil
}
