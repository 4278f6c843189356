package chainmanager

import (
	"context"
	"sync"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

// Chain implements types.ChainAdapter over independently supplied capabilities.
// Each capability is guarded by its own read-write mutex so it can be swapped while in use.
type Chain struct {
	config *types.ChainConfig // Chain configuration.

	submitterMutex sync.RWMutex
	submitter      types.TransferSubmitter

	parserMutex sync.RWMutex
	parser      types.MessageParser

	redeemerMutex sync.RWMutex
	redeemer      types.Redeemer

	readerMutex sync.RWMutex
	reader      types.RedemptionReader

	closeOnce sync.Once
	closer    func()
}

var _ types.ChainAdapter = (*Chain)(nil)

// NewChain creates a new Chain instance.
//
// Parameters:
// - config: the chain configuration.
// - submitter: the transfer submitter, nil for read-only adapters.
// - parser: the message parser.
// - redeemer: the redeemer, nil for read-only adapters.
// - reader: the redemption reader.
// - closer: releases adapter resources, may be nil.
//
// Returns:
// - *Chain: a new Chain instance.
func NewChain(
	config *types.ChainConfig,
	submitter types.TransferSubmitter,
	parser types.MessageParser,
	redeemer types.Redeemer,
	reader types.RedemptionReader,
	closer func(),
) *Chain {
	return &Chain{
		config:    config,
		submitter: submitter,
		parser:    parser,
		redeemer:  redeemer,
		reader:    reader,
		closer:    closer,
	}
}

// ChainID returns the guardian chain id of the configuration.
func (c *Chain) ChainID() types.ChainID {
	return c.config.ChainID
}

// GetConfig returns chain configuration.
func (c *Chain) GetConfig() *types.ChainConfig {
	return c.config
}

// SubmitTransfer submits the source-chain transfer with thread-safe access to the submitter.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer to submit.
//
// Returns:
// - *types.ChainTx: the submitted transaction.
// - error: ErrNotImplemented when the chain has no submitter, the submitter error otherwise.
func (c *Chain) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	c.submitterMutex.RLock()
	submitter := c.submitter
	c.submitterMutex.RUnlock()

	if submitter == nil {
		return nil, c.notImplemented("transfer submission")
	}
	return submitter.SubmitTransfer(ctx, record)
}

// ParseMessageID extracts the message id with thread-safe access to the parser.
func (c *Chain) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	c.parserMutex.RLock()
	parser := c.parser
	c.parserMutex.RUnlock()

	if parser == nil {
		return nil, c.notImplemented("message parsing")
	}
	return parser.ParseMessageID(ctx, tx)
}

// SubmitRedeem submits the redemption with thread-safe access to the redeemer.
func (c *Chain) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	c.redeemerMutex.RLock()
	redeemer := c.redeemer
	c.redeemerMutex.RUnlock()

	if redeemer == nil {
		return nil, c.notImplemented("redemption")
	}
	return redeemer.SubmitRedeem(ctx, targetAddress, attestation)
}

// IsRedeemed reads the redemption status with thread-safe access to the reader.
func (c *Chain) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return false, c.notImplemented("redemption lookup")
	}
	return reader.IsRedeemed(ctx, attestation)
}

// SetSubmitter replaces the transfer submitter, e.g. after a signer rotation.
func (c *Chain) SetSubmitter(submitter types.TransferSubmitter) {
	c.submitterMutex.Lock()
	c.submitter = submitter
	c.submitterMutex.Unlock()
}

// SetRedeemer replaces the redeemer.
func (c *Chain) SetRedeemer(redeemer types.Redeemer) {
	c.redeemerMutex.Lock()
	c.redeemer = redeemer
	c.redeemerMutex.Unlock()
}

// Close releases the adapter resources once.
func (c *Chain) Close() {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closer()
		}
	})
}

func (c *Chain) notImplemented(capability string) error {
	return errors.Wrapf(berrors.ErrNotImplemented, "%s on chain %s", capability, c.config.ChainID)
}
