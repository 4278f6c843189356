package solana

import (
	"context"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// alreadyInUse is the system program error of a claim account that exists already.
const alreadyInUse = "already in use"

// SubmitRedeem completes a transfer on the token bridge with CompleteNative for Solana-native
// mints and CompleteWrapped for wrapped assets. The VAA is posted through the VAAPoster when the
// core bridge does not hold it yet.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient wallet, informational; the token account comes from the VAA.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption signature and slot.
// - error: ErrAlreadyRedeemed when the claim account exists, ErrNotImplemented when the VAA is not
//   posted and no poster is configured.
func (s *solana) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	payer := s.getSigner()
	if payer == nil {
		return nil, berrors.ErrSignerNotSet
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}
	transfer, err := vaa.DecodeTokenTransfer(parsed.Payload)
	if err != nil {
		return nil, err
	}
	if transfer.ToChain != s.config.ChainID {
		return nil, errors.Wrapf(berrors.ErrInvalidAttestation, "transfer targets chain %s", transfer.ToChain)
	}

	log := s.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"target":     targetAddress,
	})

	claim, err := s.claimPDA(parsed.EmitterChain, parsed.EmitterAddress, parsed.Sequence)
	if err != nil {
		return nil, err
	}
	posted, err := s.postedVAAPDA(parsed.BodyHash())
	if err != nil {
		return nil, err
	}
	if err := s.ensurePosted(ctx, posted, attestation); err != nil {
		return nil, err
	}

	accounts, err := s.completeAccountsFor(payer.PublicKey(), parsed, transfer, claim, posted)
	if err != nil {
		return nil, err
	}
	instruction, err := s.completeInstruction(accounts)
	if err != nil {
		return nil, err
	}

	sig, slot, err := s.sendTransaction(ctx, []sol.Instruction{instruction})
	if err != nil {
		if strings.Contains(err.Error(), alreadyInUse) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		if errors.Is(err, berrors.ErrTransactionFailed) {
			if done, rerr := s.accountExists(ctx, claim); rerr == nil && done {
				log.Info("Transfer completed by another transaction")
				return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
			}
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}

	log.WithField("signature", sig.String()).Info("Transfer redeemed")
	return &types.ChainTx{ID: sig.String(), BlockRef: slot}, nil
}

// IsRedeemed reports whether the claim account of the VAA exists.
func (s *solana) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return false, err
	}
	claim, err := s.claimPDA(parsed.EmitterChain, parsed.EmitterAddress, parsed.Sequence)
	if err != nil {
		return false, err
	}
	return s.accountExists(ctx, claim)
}

func (s *solana) ensurePosted(ctx context.Context, posted sol.PublicKey, attestation []byte) error {
	exists, err := s.accountExists(ctx, posted)
	if err != nil || exists {
		return err
	}
	if s.poster == nil {
		return errors.Wrapf(berrors.ErrNotImplemented, "vaa is not posted at %s and no poster is configured", posted)
	}
	if err := s.poster.PostVAA(ctx, attestation); err != nil {
		return errors.Wrap(err, "failed to post vaa")
	}
	return nil
}

func (s *solana) completeAccountsFor(payer sol.PublicKey, parsed *vaa.VAA, transfer *vaa.TokenTransfer, claim, posted sol.PublicKey) (*completeAccounts, error) {
	endpoint, err := s.endpointPDA(parsed.EmitterChain, parsed.EmitterAddress)
	if err != nil {
		return nil, err
	}
	accounts := &completeAccounts{
		payer:     payer,
		postedVAA: posted,
		claim:     claim,
		endpoint:  endpoint,
		to:        sol.PublicKeyFromBytes(transfer.To[:]),
	}

	if transfer.TokenChain == s.config.ChainID {
		accounts.mint = sol.PublicKeyFromBytes(transfer.TokenAddress[:])
		accounts.custody, err = s.custodyPDA(accounts.mint)
		return accounts, err
	}

	accounts.wrapped = true
	if accounts.mint, err = s.wrappedMintPDA(transfer.TokenChain, transfer.TokenAddress); err != nil {
		return nil, err
	}
	accounts.meta, err = s.wrappedMetaPDA(accounts.mint)
	return accounts, err
}
