package orchestrator

import (
	"context"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/guardian"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AwaitAttestation resolves the message id of a submitted record and polls for its attestation.
//
// The message id is parsed once and kept; parse failures are retried ParseRetries times before
// the error is returned with the state unchanged. On Found the record moves to AttestationReady,
// on Pending to AttestationPending with a nil error, and on exhaustion to Failed with
// ReasonVAAUnavailable. Cancellation returns ctx.Err() and never applies an attestation.
//
// Parameters:
// - ctx: the context for managing polling.
// - record: a record in Submitted or AttestationPending state.
//
// Returns:
// - *types.TransferRecord: the updated record.
// - error: ErrBusy, ErrInvalidState, a parse error, ErrAttestationMismatch, ErrAttestationExhausted
//   or ctx.Err().
func (o *Orchestrator) AwaitAttestation(ctx context.Context, record *types.TransferRecord) (*types.TransferRecord, error) {
	out, release, err := o.begin(ctx, record)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := requireState(out, types.StateSubmitted, types.StateAttestationPending); err != nil {
		return nil, err
	}
	if out.SourceTx == nil || out.SourceTx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "submitted record has no source transaction")
	}

	if out.MessageID == nil {
		id, err := o.parseMessageID(ctx, out)
		if err != nil {
			return out, err
		}
		out.MessageID = id
		out.UpdatedAt = o.now()
		if err := o.save(ctx, out); err != nil {
			return out, err
		}
	}
	log := o.log(out)

	res, err := o.poller.Await(ctx, *out.MessageID, o.config.MaxAttempts)
	if ctx.Err() != nil {
		log.Info("Attestation polling cancelled")
		return out, ctx.Err()
	}

	switch {
	case errors.Is(err, berrors.ErrAttestationExhausted):
		log.WithError(err).Warn("Attestation unavailable")
		if ferr := o.fail(out, ReasonVAAUnavailable); ferr != nil {
			return nil, ferr
		}
		if serr := o.save(ctx, out); serr != nil {
			log.WithError(serr).Error("Failed to persist failed transfer")
		}
		return out, err

	case err != nil:
		return out, errors.Wrap(err, "attestation polling failed")

	case res.State == guardian.PollPending:
		if err := o.transition(out, types.StateAttestationPending); err != nil {
			return nil, err
		}
		out.PendingReason = res.PendingReason
		return out, o.save(ctx, out)

	case res.State == guardian.PollFound:
		return o.applyAttestation(ctx, out, res.Attestation)

	default:
		return out, errors.Errorf("unexpected poll state %s", res.State)
	}
}

// parseMessageID retries ParseMessageID while indexing catches up with the source transaction.
func (o *Orchestrator) parseMessageID(ctx context.Context, r *types.TransferRecord) (*types.MessageID, error) {
	adapter, err := o.adapter(r.SourceChain)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= o.config.ParseRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(o.config.ParseInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		id, err := adapter.ParseMessageID(ctx, r.SourceTx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			normalized := *id
			normalized.EmitterAddress = types.NormalizeEmitterAddress(id.EmitterAddress)
			return &normalized, nil
		}
		lastErr = err
		o.log(r).WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"tx":      r.SourceTx.ID,
		}).Warn("Failed to parse message id")
	}
	return nil, errors.Wrapf(lastErr, "message id unavailable after %d attempts", o.config.ParseRetries+1)
}

// applyAttestation checks that the attestation belongs to the record before storing it.
func (o *Orchestrator) applyAttestation(ctx context.Context, r *types.TransferRecord, attestation []byte) (*types.TransferRecord, error) {
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return r, errors.Wrap(err, "guardian returned an undecodable attestation")
	}
	if !parsed.Matches(*r.MessageID) {
		return r, errors.Wrapf(berrors.ErrAttestationMismatch, "got %s, want %s", parsed.MessageID(), r.MessageID)
	}

	if err := o.transition(r, types.StateAttestationReady); err != nil {
		return nil, err
	}
	r.Attestation = append([]byte(nil), attestation...)
	r.AttestationDigest = parsed.Digest().Hex()
	r.PendingReason = ""
	return r, o.save(ctx, r)
}
