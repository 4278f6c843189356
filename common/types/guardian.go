package types

import (
	"context"
)

// GuardianResultKind is the outcome of a single guardian query.
type GuardianResultKind int

const (
	// GuardianNotFound means the guardians have not signed the message yet.
	GuardianNotFound GuardianResultKind = iota
	// GuardianFound means the signed attestation is available.
	GuardianFound
	// GuardianPending means the governor is holding the message back. It is not an error.
	GuardianPending
)

func (k GuardianResultKind) String() string {
	switch k {
	case GuardianNotFound:
		return "not_found"
	case GuardianFound:
		return "found"
	case GuardianPending:
		return "pending"
	default:
		return "unknown"
	}
}

// GuardianResult is a GuardianQuery outcome. Attestation is set only for GuardianFound,
// Reason only for GuardianPending.
type GuardianResult struct {
	Kind        GuardianResultKind
	Attestation []byte
	Reason      string
}

// GuardianQuerier performs one guardian lookup with no internal retry.
type GuardianQuerier interface {
	Query(ctx context.Context, id MessageID) (*GuardianResult, error)
}

// TransferStore persists transfer records so a pipeline can resume after restart.
type TransferStore interface {
	// Save inserts or updates the record by its id.
	Save(ctx context.Context, record *TransferRecord) error
	// Get returns the record with the given id or ErrTransferNotFound.
	Get(ctx context.Context, id string) (*TransferRecord, error)
	// GetBySourceTx returns the most recently updated record for the durable key or ErrTransferNotFound.
	// A redemption retry copies SourceTx into a new record, so after a retry the successor is returned.
	GetBySourceTx(ctx context.Context, sourceChain ChainID, sourceTxID string) (*TransferRecord, error)
	// ListByState returns the records in any of the given states, oldest update first.
	ListByState(ctx context.Context, states ...TransferState) ([]*TransferRecord, error)
}
