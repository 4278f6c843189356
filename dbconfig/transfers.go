package dbconfig

import (
	"context"
	"database/sql"
	"math/big"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const transferColumns = `
           id,
           source_chain,
           target_chain,
           token_address,
           token_decimals,
           target_address,
           amount_raw,
           relayer_fee_raw,
           amount_normalized,
           dust_raw,
           state,
           failure_reason,
           pending_reason,
           source_tx_id,
           source_block_ref,
           emitter_chain,
           emitter_address,
           sequence,
           attestation,
           attestation_digest,
           target_tx_id,
           target_block_ref,
           retried_from,
           created_at,
           updated_at`

// TransferStore is a Postgres backed types.TransferStore.
type TransferStore struct {
	db *DBConfig
}

var _ types.TransferStore = (*TransferStore)(nil)

// Transfers returns the transfer store on the shared pool.
func (r *DBConfig) Transfers() *TransferStore {
	return &TransferStore{db: r}
}

// Save inserts the record or replaces every column of the stored version.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the record to persist.
//
// Returns:
// - error: ErrInvalidTransfer without an id, ErrDatabaseQuery on write errors.
func (s *TransferStore) Save(ctx context.Context, record *types.TransferRecord) error {
	if record == nil || record.ID == "" {
		return errors.Wrap(berrors.ErrInvalidTransfer, "record has no id")
	}

	var sourceTxID, targetTxID sql.NullString
	var sourceBlock, targetBlock sql.NullInt64
	if record.SourceTx != nil {
		sourceTxID = sql.NullString{String: record.SourceTx.ID, Valid: true}
		sourceBlock = sql.NullInt64{Int64: int64(record.SourceTx.BlockRef), Valid: true}
	}
	if record.TargetTx != nil {
		targetTxID = sql.NullString{String: record.TargetTx.ID, Valid: true}
		targetBlock = sql.NullInt64{Int64: int64(record.TargetTx.BlockRef), Valid: true}
	}

	var emitterChain sql.NullInt64
	var emitterAddress, sequence sql.NullString
	if record.MessageID != nil {
		emitterChain = sql.NullInt64{Int64: int64(record.MessageID.EmitterChain), Valid: true}
		emitterAddress = sql.NullString{String: record.MessageID.EmitterAddress, Valid: true}
		sequence = sql.NullString{String: record.MessageID.Sequence, Valid: true}
	}

	_, err := s.db.db.ExecContext(ctx, `
       INSERT INTO transfers (`+transferColumns+`
       ) VALUES (
           $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
           $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
       )
       ON CONFLICT (id) DO UPDATE SET
           state = EXCLUDED.state,
           failure_reason = EXCLUDED.failure_reason,
           pending_reason = EXCLUDED.pending_reason,
           amount_normalized = EXCLUDED.amount_normalized,
           dust_raw = EXCLUDED.dust_raw,
           relayer_fee_raw = EXCLUDED.relayer_fee_raw,
           source_tx_id = EXCLUDED.source_tx_id,
           source_block_ref = EXCLUDED.source_block_ref,
           emitter_chain = EXCLUDED.emitter_chain,
           emitter_address = EXCLUDED.emitter_address,
           sequence = EXCLUDED.sequence,
           attestation = EXCLUDED.attestation,
           attestation_digest = EXCLUDED.attestation_digest,
           target_tx_id = EXCLUDED.target_tx_id,
           target_block_ref = EXCLUDED.target_block_ref,
           updated_at = EXCLUDED.updated_at`,
		record.ID,
		record.SourceChain,
		record.TargetChain,
		record.TokenAddress,
		record.TokenDecimals,
		record.TargetAddress,
		numeric(record.AmountRaw),
		numeric(record.RelayerFeeRaw),
		numeric(record.AmountNormalized),
		numeric(record.DustRaw),
		record.State.String(),
		record.FailureReason,
		record.PendingReason,
		sourceTxID,
		sourceBlock,
		emitterChain,
		emitterAddress,
		sequence,
		record.Attestation,
		record.AttestationDigest,
		targetTxID,
		targetBlock,
		record.RetriedFrom,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(ErrDatabaseQuery, "save transfer %s: %v", record.ID, err)
	}
	return nil
}

// Get returns the record with the given id or ErrTransferNotFound.
func (s *TransferStore) Get(ctx context.Context, id string) (*types.TransferRecord, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT`+transferColumns+` FROM transfers WHERE id = $1`, id)
	record, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(berrors.ErrTransferNotFound, "id %s", id)
	}
	return record, err
}

// GetBySourceTx returns the most recently updated record of a source transaction. Retry successors
// share the source transaction with the record they replace and win on updated_at.
func (s *TransferStore) GetBySourceTx(ctx context.Context, sourceChain types.ChainID, sourceTxID string) (*types.TransferRecord, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT`+transferColumns+`
       FROM transfers
       WHERE source_chain = $1 AND source_tx_id = $2
       ORDER BY updated_at DESC
       LIMIT 1`, sourceChain, sourceTxID)
	record, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(berrors.ErrTransferNotFound, "source tx %s/%s", sourceChain, sourceTxID)
	}
	return record, err
}

// ListByState returns the records in any of the given states, oldest update first.
func (s *TransferStore) ListByState(ctx context.Context, states ...types.TransferState) ([]*types.TransferRecord, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}

	rows, err := s.db.db.QueryContext(ctx, `SELECT`+transferColumns+`
       FROM transfers
       WHERE state = ANY($1)
       ORDER BY updated_at ASC, id ASC`, pq.Array(names))
	if err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "list transfers: %v", err)
	}
	defer rows.Close()

	var records []*types.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "list transfers: %v", err)
	}
	return records, nil
}

func scanTransfer(row rowScanner) (*types.TransferRecord, error) {
	var r types.TransferRecord
	var state string
	var amountRaw, relayerFee, amountNormalized, dust sql.NullString
	var sourceTxID, targetTxID, emitterAddress, sequence sql.NullString
	var sourceBlock, targetBlock, emitterChain sql.NullInt64
	var attestation []byte

	err := row.Scan(
		&r.ID,
		&r.SourceChain,
		&r.TargetChain,
		&r.TokenAddress,
		&r.TokenDecimals,
		&r.TargetAddress,
		&amountRaw,
		&relayerFee,
		&amountNormalized,
		&dust,
		&state,
		&r.FailureReason,
		&r.PendingReason,
		&sourceTxID,
		&sourceBlock,
		&emitterChain,
		&emitterAddress,
		&sequence,
		&attestation,
		&r.AttestationDigest,
		&targetTxID,
		&targetBlock,
		&r.RetriedFrom,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "scan transfer: %v", err)
	}

	r.State = types.TransferState(state)
	if r.AmountRaw, err = parseNumeric(amountRaw); err != nil {
		return nil, err
	}
	if r.RelayerFeeRaw, err = parseNumeric(relayerFee); err != nil {
		return nil, err
	}
	if r.AmountNormalized, err = parseNumeric(amountNormalized); err != nil {
		return nil, err
	}
	if r.DustRaw, err = parseNumeric(dust); err != nil {
		return nil, err
	}
	if sourceTxID.Valid {
		r.SourceTx = &types.ChainTx{ID: sourceTxID.String, BlockRef: uint64(sourceBlock.Int64)}
	}
	if targetTxID.Valid {
		r.TargetTx = &types.ChainTx{ID: targetTxID.String, BlockRef: uint64(targetBlock.Int64)}
	}
	if emitterChain.Valid {
		r.MessageID = &types.MessageID{
			EmitterChain:   types.ChainID(emitterChain.Int64),
			EmitterAddress: emitterAddress.String,
			Sequence:       sequence.String,
		}
	}
	if len(attestation) > 0 {
		r.Attestation = attestation
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func numeric(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseNumeric(v sql.NullString) (*big.Int, error) {
	if !v.Valid {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(v.String, 10)
	if !ok {
		return nil, errors.Wrapf(ErrDatabaseQuery, "invalid numeric %q", v.String)
	}
	return n, nil
}
