// Package redemption checks whether an attestation was already redeemed on its destination chain.
package redemption

import (
	"context"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultInterval    = 5 * time.Second
	defaultMaxAttempts = 60
)

// ErrNotRedeemed is returned by WaitForRedemption when the attempts run out.
var ErrNotRedeemed = errors.New("attestation not redeemed after max attempts")

// Config configures WaitForRedemption.
type Config struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// Checker wraps the read-only redemption check of chain adapters.
type Checker struct {
	config Config
	logger *logrus.Logger
}

// NewChecker creates a redemption checker.
func NewChecker(config Config, logger *logrus.Logger) *Checker {
	if config.Interval == 0 {
		config.Interval = defaultInterval
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	return &Checker{config: config, logger: logger}
}

// EnsureNotAlreadyRedeemed calls IsRedeemed once. The result is advisory: the chain may still
// report a prior redemption when the redemption is submitted.
//
// Parameters:
// - ctx: the context for managing the request.
// - reader: the redemption reader of the destination chain.
// - attestation: the signed attestation bytes.
//
// Returns:
// - bool: true if the attestation was already redeemed.
// - error: an error if the destination chain could not be read.
func (c *Checker) EnsureNotAlreadyRedeemed(ctx context.Context, reader types.RedemptionReader, attestation []byte) (bool, error) {
	if len(attestation) == 0 {
		return false, errors.Wrap(berrors.ErrInvalidAttestation, "empty attestation")
	}
	redeemed, err := reader.IsRedeemed(ctx, attestation)
	if err != nil {
		return false, errors.Wrap(err, "failed to check redemption")
	}
	return redeemed, nil
}

// WaitForRedemption polls IsRedeemed until it reports true, used to report completion of a
// redemption submitted by a relayer or another session. Read errors are logged and retried.
//
// Parameters:
// - ctx: the context for managing polling.
// - reader: the redemption reader of the destination chain.
// - attestation: the signed attestation bytes.
//
// Returns:
// - error: nil once redeemed, ErrNotRedeemed when attempts run out, ctx.Err() on cancellation.
func (c *Checker) WaitForRedemption(ctx context.Context, reader types.RedemptionReader, attestation []byte) error {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		redeemed, err := c.EnsureNotAlreadyRedeemed(ctx, reader, attestation)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, berrors.ErrInvalidAttestation) {
			return err
		}
		if err != nil {
			c.logger.WithError(err).WithField("attempt", attempt).Warn("Redemption check failed")
		} else if redeemed {
			return nil
		}
		if attempt >= c.config.MaxAttempts {
			return errors.Wrapf(ErrNotRedeemed, "%d attempts", attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
