package chainmanager

import (
	"github.com/ClipFinance/bridge-lib/common/types"
)

// ChainBuilder collects the capabilities an adapter family provides. The family's constructor
// decides what to hand in: adapters without a signing wallet only pass a parser and a reader,
// and every capability left out answers ErrNotImplemented on the built Chain.
type ChainBuilder struct {
	config    *types.ChainConfig
	submitter types.TransferSubmitter
	parser    types.MessageParser
	redeemer  types.Redeemer
	reader    types.RedemptionReader
	closer    func()
}

// NewChainBuilder starts a builder for config.
func NewChainBuilder(config *types.ChainConfig) *ChainBuilder {
	return &ChainBuilder{config: config}
}

// WithTransferSubmitter enables SubmitTransfer.
func (b *ChainBuilder) WithTransferSubmitter(submitter types.TransferSubmitter) *ChainBuilder {
	b.submitter = submitter
	return b
}

// WithMessageParser enables ParseMessageID.
func (b *ChainBuilder) WithMessageParser(parser types.MessageParser) *ChainBuilder {
	b.parser = parser
	return b
}

// WithRedeemer enables SubmitRedeem.
func (b *ChainBuilder) WithRedeemer(redeemer types.Redeemer) *ChainBuilder {
	b.redeemer = redeemer
	return b
}

// WithRedemptionReader enables IsRedeemed.
func (b *ChainBuilder) WithRedemptionReader(reader types.RedemptionReader) *ChainBuilder {
	b.reader = reader
	return b
}

// WithCloser registers the release of clients and monitors, run once by Chain.Close.
func (b *ChainBuilder) WithCloser(closer func()) *ChainBuilder {
	b.closer = closer
	return b
}

// Build returns the Chain. The builder may be discarded afterwards.
func (b *ChainBuilder) Build() *Chain {
	return NewChain(b.config, b.submitter, b.parser, b.redeemer, b.reader, b.closer)
}
