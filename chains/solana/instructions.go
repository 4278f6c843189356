package solana

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Token bridge instruction indexes.
const (
	instructionCompleteNative  uint8 = 2
	instructionCompleteWrapped uint8 = 3
	instructionTransferWrapped uint8 = 4
	instructionTransferNative  uint8 = 5

	// splInstructionApprove is the SPL token Approve instruction code.
	splInstructionApprove uint8 = 4
)

// transferData is the borsh payload of TransferNative and TransferWrapped.
type transferData struct {
	Nonce         uint32
	Amount        uint64
	Fee           uint64
	TargetAddress [32]byte
	TargetChain   uint16
}

func encodeInstruction(index uint8, payload interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(index)
	if payload != nil {
		if err := bin.NewBorshEncoder(buf).Encode(payload); err != nil {
			return nil, errors.Wrap(err, "failed to encode instruction data")
		}
	}
	return buf.Bytes(), nil
}

// approveInstruction delegates amount of the source token account to delegate.
func approveInstruction(source, delegate, owner sol.PublicKey, amount uint64) sol.Instruction {
	data := make([]byte, 9) // 1 byte for instruction code + 8 bytes for amount
	data[0] = splInstructionApprove
	binary.LittleEndian.PutUint64(data[1:], amount)

	return sol.NewInstruction(
		sol.TokenProgramID,
		sol.AccountMetaSlice{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: delegate, IsSigner: false, IsWritable: false},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// transferAccounts are the accounts of a transfer instruction.
type transferAccounts struct {
	payer     sol.PublicKey
	from      sol.PublicKey
	mint      sol.PublicKey
	message   sol.PublicKey
	wrapped   bool
	custody   sol.PublicKey // native only
	meta      sol.PublicKey // wrapped only
	authority sol.PublicKey
	core      *coreAccounts
}

// transferInstruction builds TransferNative or TransferWrapped.
func (s *solana) transferInstruction(accounts *transferAccounts, data *transferData) (sol.Instruction, error) {
	config, err := s.tokenBridgeConfigPDA()
	if err != nil {
		return nil, err
	}

	index := instructionTransferNative
	metas := sol.AccountMetaSlice{
		{PublicKey: accounts.payer, IsSigner: true, IsWritable: true},
		{PublicKey: config, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.from, IsSigner: false, IsWritable: true},
	}
	if accounts.wrapped {
		index = instructionTransferWrapped
		metas = append(metas,
			&sol.AccountMeta{PublicKey: accounts.payer, IsSigner: true, IsWritable: false},
			&sol.AccountMeta{PublicKey: accounts.mint, IsSigner: false, IsWritable: true},
			&sol.AccountMeta{PublicKey: accounts.meta, IsSigner: false, IsWritable: false},
			&sol.AccountMeta{PublicKey: accounts.authority, IsSigner: false, IsWritable: false},
		)
	} else {
		custodySigner, err := findPDA(s.tokenBridge, []byte("custody_signer"))
		if err != nil {
			return nil, err
		}
		metas = append(metas,
			&sol.AccountMeta{PublicKey: accounts.mint, IsSigner: false, IsWritable: true},
			&sol.AccountMeta{PublicKey: accounts.custody, IsSigner: false, IsWritable: true},
			&sol.AccountMeta{PublicKey: accounts.authority, IsSigner: false, IsWritable: false},
			&sol.AccountMeta{PublicKey: custodySigner, IsSigner: false, IsWritable: false},
		)
	}
	metas = append(metas,
		&sol.AccountMeta{PublicKey: accounts.core.bridge, IsSigner: false, IsWritable: true},
		&sol.AccountMeta{PublicKey: accounts.message, IsSigner: true, IsWritable: true},
		&sol.AccountMeta{PublicKey: accounts.core.emitter, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: accounts.core.sequence, IsSigner: false, IsWritable: true},
		&sol.AccountMeta{PublicKey: accounts.core.feeCollector, IsSigner: false, IsWritable: true},
		&sol.AccountMeta{PublicKey: sol.SysVarClockPubkey, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: sol.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: s.coreBridge, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
	)

	raw, err := encodeInstruction(index, data)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(s.tokenBridge, metas, raw), nil
}

// completeAccounts are the accounts of a completion instruction.
type completeAccounts struct {
	payer     sol.PublicKey
	postedVAA sol.PublicKey
	claim     sol.PublicKey
	endpoint  sol.PublicKey
	to        sol.PublicKey
	mint      sol.PublicKey
	wrapped   bool
	custody   sol.PublicKey // native only
	meta      sol.PublicKey // wrapped only
}

// completeInstruction builds CompleteNative or CompleteWrapped.
func (s *solana) completeInstruction(accounts *completeAccounts) (sol.Instruction, error) {
	config, err := s.tokenBridgeConfigPDA()
	if err != nil {
		return nil, err
	}

	index := instructionCompleteNative
	metas := sol.AccountMetaSlice{
		{PublicKey: accounts.payer, IsSigner: true, IsWritable: true},
		{PublicKey: config, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.postedVAA, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.claim, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.endpoint, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.to, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.to, IsSigner: false, IsWritable: true},
	}
	if accounts.wrapped {
		index = instructionCompleteWrapped
		mintSigner, err := findPDA(s.tokenBridge, []byte("mint_signer"))
		if err != nil {
			return nil, err
		}
		metas = append(metas,
			&sol.AccountMeta{PublicKey: accounts.mint, IsSigner: false, IsWritable: true},
			&sol.AccountMeta{PublicKey: accounts.meta, IsSigner: false, IsWritable: false},
			&sol.AccountMeta{PublicKey: mintSigner, IsSigner: false, IsWritable: false},
		)
	} else {
		custodySigner, err := findPDA(s.tokenBridge, []byte("custody_signer"))
		if err != nil {
			return nil, err
		}
		metas = append(metas,
			&sol.AccountMeta{PublicKey: accounts.custody, IsSigner: false, IsWritable: true},
			&sol.AccountMeta{PublicKey: accounts.mint, IsSigner: false, IsWritable: false},
			&sol.AccountMeta{PublicKey: custodySigner, IsSigner: false, IsWritable: false},
		)
	}
	metas = append(metas,
		&sol.AccountMeta{PublicKey: sol.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
		&sol.AccountMeta{PublicKey: s.coreBridge, IsSigner: false, IsWritable: false},
	)

	raw, err := encodeInstruction(index, nil)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(s.tokenBridge, metas, raw), nil
}
