package orchestrator

import (
	"context"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Redeem submits the destination-chain redemption of a record holding its attestation.
//
// The redemption is skipped when the destination chain already reports it, and ErrAlreadyRedeemed
// from the adapter counts as success. A record left in Redeeming by an interrupted call is
// accepted again. Other redemption failures move the record to Failed with the attestation kept;
// RetryRedeem derives a fresh record from it. A Redeemed record is returned unchanged.
//
// Parameters:
// - ctx: the context for managing the redemption.
// - record: a record in AttestationReady, Redeeming or Redeemed state.
// - targetAddress: the destination account submitting the redemption, record.TargetAddress when empty.
//
// Returns:
// - *types.TransferRecord: the record in Redeemed, or in Failed together with the redemption error.
// - error: ErrBusy, ErrInvalidState, ErrChainNotFound, ctx.Err() or the adapter error.
func (o *Orchestrator) Redeem(ctx context.Context, record *types.TransferRecord, targetAddress string) (*types.TransferRecord, error) {
	out, release, err := o.begin(ctx, record)
	if err != nil {
		return nil, err
	}
	defer release()
	if out.State == types.StateRedeemed {
		return out, nil
	}
	if err := requireState(out, types.StateAttestationReady, types.StateRedeeming); err != nil {
		return nil, err
	}
	if len(out.Attestation) == 0 {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "record holds no attestation")
	}
	if targetAddress == "" {
		targetAddress = out.TargetAddress
	}

	chain := out.TargetChain.String()
	log := o.log(out).WithField("chain", chain)

	adapter, err := o.adapter(out.TargetChain)
	if err != nil {
		return nil, err
	}

	if out.State == types.StateAttestationReady {
		if err := o.transition(out, types.StateRedeeming); err != nil {
			return nil, err
		}
		if err := o.save(ctx, out); err != nil {
			return out, err
		}
	}

	redeemed, err := o.checker.EnsureNotAlreadyRedeemed(ctx, adapter, out.Attestation)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil {
		log.WithError(err).Warn("Redemption check failed, submitting anyway")
	}
	if redeemed {
		log.Info("Attestation already redeemed, skipping submission")
		o.metrics.Redemption(chain, "already_redeemed")
		return o.complete(ctx, out, nil)
	}

	tx, err := adapter.SubmitRedeem(ctx, targetAddress, out.Attestation)
	switch {
	case errors.Is(err, berrors.ErrAlreadyRedeemed):
		log.Info("Destination chain reports prior redemption")
		o.metrics.Redemption(chain, "already_redeemed")
		return o.complete(ctx, out, nil)

	case err != nil && ctx.Err() != nil:
		// Left in Redeeming: the transaction may have been broadcast.
		return out, ctx.Err()

	case err != nil:
		o.metrics.Redemption(chain, "failed")
		log.WithError(err).Error("Redemption failed")
		if ferr := o.fail(out, err.Error()); ferr != nil {
			return nil, ferr
		}
		if serr := o.save(ctx, out); serr != nil {
			log.WithError(serr).Error("Failed to persist failed transfer")
		}
		return out, err
	}

	o.metrics.Redemption(chain, "redeemed")
	return o.complete(ctx, out, tx)
}

func (o *Orchestrator) complete(ctx context.Context, r *types.TransferRecord, tx *types.ChainTx) (*types.TransferRecord, error) {
	if err := o.transition(r, types.StateRedeemed); err != nil {
		return nil, err
	}
	if tx != nil && tx.ID != "" {
		r.TargetTx = &types.ChainTx{ID: tx.ID, BlockRef: tx.BlockRef}
	}
	return r, o.save(ctx, r)
}

// RetryRedeem derives a successor of a record that failed during redemption and redeems it.
// The failed record is left untouched; the successor carries a new id, the preserved
// attestation and RetriedFrom set to the failed id.
//
// Parameters:
// - ctx: the context for managing the redemption.
// - failed: a Failed record holding an attestation.
// - targetAddress: the destination account submitting the redemption.
//
// Returns:
// - *types.TransferRecord: the successor record after Redeem.
// - error: ErrInvalidState if failed holds no attestation, otherwise the Redeem error.
func (o *Orchestrator) RetryRedeem(ctx context.Context, failed *types.TransferRecord, targetAddress string) (*types.TransferRecord, error) {
	current, release, err := o.begin(ctx, failed)
	if err != nil {
		return nil, err
	}
	if err := requireState(current, types.StateFailed); err != nil {
		release()
		return nil, err
	}
	if len(current.Attestation) == 0 {
		release()
		return nil, errors.Wrapf(berrors.ErrInvalidState, "transfer %s failed before its attestation was available", current.ID)
	}

	failedID := current.ID
	successor := current
	now := o.now()
	successor.ID = uuid.NewString()
	successor.RetriedFrom = failedID
	successor.State = types.StateAttestationReady
	successor.FailureReason = ""
	successor.TargetTx = nil
	successor.CreatedAt = now
	successor.UpdatedAt = now
	err = o.save(ctx, successor)
	release()
	if err != nil {
		return nil, err
	}

	o.log(successor).WithField("retried_from", failedID).Info("Retrying redemption")
	return o.Redeem(ctx, successor, targetAddress)
}
