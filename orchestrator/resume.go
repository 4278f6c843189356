package orchestrator

import (
	"context"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Resume loads a persisted record and drives it forward without a new submission: Submitted and
// AttestationPending records poll for their attestation, Redeeming records finish their
// redemption. Draft, AttestationReady and terminal records are returned as loaded.
//
// Parameters:
// - ctx: the context for managing the phases run.
// - id: the record id.
//
// Returns:
// - *types.TransferRecord: the record after the phases run.
// - error: ErrTransferNotFound, or the error of the phase run.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*types.TransferRecord, error) {
	if o.store == nil {
		return nil, errors.Wrap(berrors.ErrNotImplemented, "resume requires a transfer store")
	}
	record, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.resume(ctx, record)
}

func (o *Orchestrator) resume(ctx context.Context, record *types.TransferRecord) (*types.TransferRecord, error) {
	switch record.State {
	case types.StateSubmitted, types.StateAttestationPending:
		return o.AwaitAttestation(ctx, record)
	case types.StateRedeeming:
		return o.Redeem(ctx, record, "")
	default:
		return record, nil
	}
}

// ResumeAll resumes every persisted Submitted, AttestationPending and Redeeming record, at most
// ResumeWorkers at a time. Each record runs independently; a failing record does not stop the
// others.
//
// Parameters:
// - ctx: the context for managing the phases run.
//
// Returns:
// - []*types.TransferRecord: the records after resumption, in store order.
// - []error: the per-record errors, aligned with the records.
// - error: an error if the store could not be listed.
func (o *Orchestrator) ResumeAll(ctx context.Context) ([]*types.TransferRecord, []error, error) {
	if o.store == nil {
		return nil, nil, errors.Wrap(berrors.ErrNotImplemented, "resume requires a transfer store")
	}
	records, err := o.store.ListByState(ctx, types.StateSubmitted, types.StateAttestationPending, types.StateRedeeming)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to list resumable transfers")
	}

	out := make([]*types.TransferRecord, len(records))
	errs := make([]error, len(records))

	var g errgroup.Group
	g.SetLimit(o.config.ResumeWorkers)
	for i, record := range records {
		g.Go(func() error {
			r, err := o.resume(ctx, record)
			if r == nil {
				r = record
			}
			out[i], errs[i] = r, err
			return nil
		})
	}
	_ = g.Wait()

	return out, errs, nil
}
