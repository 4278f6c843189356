// Package memory is an in-process TransferStore for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

type entry struct {
	record *types.TransferRecord
	// seq orders saves when UpdatedAt ties.
	seq uint64
}

// Store keeps deep copies of saved records.
type Store struct {
	mu      sync.RWMutex
	records map[string]entry
	seq     uint64
}

var _ types.TransferStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{records: make(map[string]entry)}
}

func (s *Store) Save(ctx context.Context, record *types.TransferRecord) error {
	if record == nil || record.ID == "" {
		return errors.Wrap(berrors.ErrInvalidTransfer, "record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.records[record.ID] = entry{record: record.Clone(), seq: s.seq}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*types.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return nil, errors.Wrapf(berrors.ErrTransferNotFound, "id %s", id)
	}
	return e.record.Clone(), nil
}

func (s *Store) GetBySourceTx(ctx context.Context, sourceChain types.ChainID, sourceTxID string) (*types.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entry
	for _, e := range s.records {
		chain, txID, ok := e.record.SourceKey()
		if !ok || chain != sourceChain || txID != sourceTxID {
			continue
		}
		if latest == nil || newer(e, *latest) {
			e := e
			latest = &e
		}
	}
	if latest == nil {
		return nil, errors.Wrapf(berrors.ErrTransferNotFound, "source tx %s/%s", sourceChain, sourceTxID)
	}
	return latest.record.Clone(), nil
}

func (s *Store) ListByState(ctx context.Context, states ...types.TransferState) ([]*types.TransferRecord, error) {
	want := make(map[types.TransferState]bool, len(states))
	for _, st := range states {
		want[st] = true
	}

	s.mu.RLock()
	matched := make([]entry, 0)
	for _, e := range s.records {
		if want[e.record.State] {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newer(matched[j], matched[i]) })
	out := make([]*types.TransferRecord, len(matched))
	for i, e := range matched {
		out[i] = e.record.Clone()
	}
	return out, nil
}

func newer(a, b entry) bool {
	if !a.record.UpdatedAt.Equal(b.record.UpdatedAt) {
		return a.record.UpdatedAt.After(b.record.UpdatedAt)
	}
	return a.seq > b.seq
}
