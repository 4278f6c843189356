package orchestrator

import (
	"context"

	"github.com/ClipFinance/bridge-lib/amount"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Submit broadcasts the source-chain transfer of a Draft record.
//
// Amounts are normalized before anything is sent; invalid amounts leave the record in Draft. A
// failed submission moves the record to Failed and is never retried.
//
// Parameters:
// - ctx: the context for managing the submission.
// - record: a record in Draft state.
//
// Returns:
// - *types.TransferRecord: the record in Submitted, or in Failed together with the submit error.
// - error: ErrBusy, ErrInvalidState, an amount error, ErrChainNotFound or the adapter error.
func (o *Orchestrator) Submit(ctx context.Context, record *types.TransferRecord) (*types.TransferRecord, error) {
	out, release, err := o.begin(ctx, record)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := requireState(out, types.StateDraft); err != nil {
		return nil, err
	}

	log := o.log(out).WithField("chain", out.SourceChain.String())

	normalized, err := amount.Normalize(out.AmountRaw, out.RelayerFeeRaw, out.TokenDecimals)
	if err != nil {
		return nil, errors.Wrap(err, "invalid transfer amount")
	}
	if normalized.Wire.Sign() == 0 {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "amount truncates to zero")
	}
	out.AmountNormalized = normalized.Wire
	out.DustRaw = normalized.Dust

	adapter, err := o.adapter(out.SourceChain)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"amount": amount.FormatWire(normalized.Wire),
		"dust":   normalized.Dust.String(),
	}).Info("Submitting transfer")

	tx, err := adapter.SubmitTransfer(ctx, out)
	if err == nil && (tx == nil || tx.ID == "") {
		err = errors.Wrap(berrors.ErrTransactionFailed, "adapter returned no transaction id")
	}
	if err != nil {
		o.metrics.Submission(out.SourceChain.String(), "failed")
		log.WithError(err).Error("Transfer submission failed")
		if ferr := o.fail(out, err.Error()); ferr != nil {
			return nil, ferr
		}
		if serr := o.save(ctx, out); serr != nil {
			log.WithError(serr).Error("Failed to persist failed transfer")
		}
		return out, err
	}

	out.SourceTx = &types.ChainTx{ID: tx.ID, BlockRef: tx.BlockRef}
	if err := o.transition(out, types.StateSubmitted); err != nil {
		return nil, err
	}
	o.metrics.Submission(out.SourceChain.String(), "submitted")
	if err := o.save(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}
