package solana

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SubmitTransfer approves the token bridge authority signer and sends TransferNative, or
// TransferWrapped when the mint is a token bridge wrapped asset. The tokens are taken from the
// payer's associated token account.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer, TokenAddress is the mint in base58.
//
// Returns:
// - *types.ChainTx: the transaction signature and slot.
// - error: ErrInvalidTransfer for malformed records, ErrTransactionFailed on chain failure.
func (s *solana) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	payer := s.getSigner()
	if payer == nil {
		return nil, berrors.ErrSignerNotSet
	}
	mint, err := sol.PublicKeyFromBase58(record.TokenAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "mint %q: %v", record.TokenAddress, err)
	}
	if record.AmountRaw == nil || record.AmountRaw.Sign() <= 0 || !record.AmountRaw.IsUint64() {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "amount must be a positive u64")
	}
	var fee uint64
	if record.RelayerFeeRaw != nil {
		if !record.RelayerFeeRaw.IsUint64() {
			return nil, errors.Wrap(berrors.ErrInvalidTransfer, "relayer fee must be a u64")
		}
		fee = record.RelayerFeeRaw.Uint64()
	}
	recipient, err := vaa.AddressFromHex(record.TargetAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "target address: %v", err)
	}

	owner := payer.PublicKey()
	from, err := associatedTokenAddress(mint, owner)
	if err != nil {
		return nil, err
	}
	authority, err := findPDA(s.tokenBridge, []byte("authority_signer"))
	if err != nil {
		return nil, err
	}
	core, err := s.coreAccounts()
	if err != nil {
		return nil, err
	}
	meta, err := s.wrappedMetaPDA(mint)
	if err != nil {
		return nil, err
	}
	wrapped, err := s.accountExists(ctx, meta)
	if err != nil {
		return nil, err
	}

	message, err := sol.NewRandomPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create message account")
	}

	accounts := &transferAccounts{
		payer:     owner,
		from:      from,
		mint:      mint,
		message:   message.PublicKey(),
		wrapped:   wrapped,
		meta:      meta,
		authority: authority,
		core:      core,
	}
	if !wrapped {
		if accounts.custody, err = s.custodyPDA(mint); err != nil {
			return nil, err
		}
	}

	amount := record.AmountRaw.Uint64()
	transfer, err := s.transferInstruction(accounts, &transferData{
		Nonce:         messageNonce(record.ID),
		Amount:        amount,
		Fee:           fee,
		TargetAddress: recipient,
		TargetChain:   uint16(record.TargetChain),
	})
	if err != nil {
		return nil, err
	}

	log := s.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"mint":         mint.String(),
		"amount":       amount,
		"wrapped":      wrapped,
		"target_chain": record.TargetChain.String(),
	})

	sig, slot, err := s.sendTransaction(ctx, []sol.Instruction{
		approveInstruction(from, authority, owner, amount),
		transfer,
	}, message)
	if err != nil {
		log.WithError(err).Error("Transfer failed")
		return nil, err
	}

	log.WithField("signature", sig.String()).Info("Transfer submitted")
	return &types.ChainTx{ID: sig.String(), BlockRef: slot}, nil
}

// messageNonce derives the batch nonce of the published message from the record id.
func messageNonce(id string) uint32 {
	sum := sha256.Sum256([]byte(id))
	return binary.LittleEndian.Uint32(sum[:4])
}
