package solana

import (
	"context"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	sol "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// sendTransaction signs instructions with the payer and extra signers, sends them and waits until
// the signature is confirmed.
//
// Parameters:
// - ctx: the context for managing the request.
// - instructions: the bridge instructions, a compute unit limit is prepended.
// - extraSigners: signers besides the payer, e.g. the message account.
//
// Returns:
// - sol.Signature: the transaction signature.
// - uint64: the slot the transaction was confirmed in.
// - error: preflight and send errors, ErrTransactionFailed when the transaction failed on chain.
func (s *solana) sendTransaction(ctx context.Context, instructions []sol.Instruction, extraSigners ...sol.PrivateKey) (sol.Signature, uint64, error) {
	payer := s.getSigner()
	if payer == nil {
		return sol.Signature{}, 0, berrors.ErrSignerNotSet
	}
	client, err := s.getClient()
	if err != nil {
		return sol.Signature{}, 0, err
	}

	latestBlockhashResult, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return sol.Signature{}, 0, errors.Wrap(err, "failed to get latest blockhash")
	}

	setComputeUnitLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(defaultComputeUnits).ValidateAndBuild()
	if err != nil {
		return sol.Signature{}, 0, errors.Wrap(err, "failed to create compute unit limit instruction")
	}

	tx, err := sol.NewTransaction(
		append([]sol.Instruction{setComputeUnitLimitIx}, instructions...),
		latestBlockhashResult.Value.Blockhash,
		sol.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		return sol.Signature{}, 0, errors.Wrap(err, "failed to create transaction")
	}

	signers := append([]sol.PrivateKey{*payer}, extraSigners...)
	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return sol.Signature{}, 0, errors.Wrap(err, "failed to sign transaction")
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return sol.Signature{}, 0, err
	}
	s.log().WithField("signature", sig.String()).Info("Transaction sent")

	slot, err := s.waitConfirmation(ctx, sig)
	return sig, slot, err
}

// waitConfirmation polls the signature status until it is confirmed or finalized.
func (s *solana) waitConfirmation(ctx context.Context, sig sol.Signature) (uint64, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case <-ticker.C:
			client, err := s.getClient()
			if err != nil {
				return 0, err
			}
			res, err := client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				s.log().WithError(err).Warn("Failed to get signature status")
				continue
			}
			if len(res.Value) == 0 || res.Value[0] == nil {
				continue
			}

			status := res.Value[0]
			if status.Err != nil {
				return status.Slot, errors.Wrapf(berrors.ErrTransactionFailed, "signature %s: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return status.Slot, nil
			}
		}
	}
}

// accountExists reports whether account is initialized.
func (s *solana) accountExists(ctx context.Context, account sol.PublicKey) (bool, error) {
	client, err := s.getClient()
	if err != nil {
		return false, err
	}
	_, err = client.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to get account %s", account)
	}
	return true, nil
}
