package dbconfig

import (
	"context"
	"testing"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chainRowColumns = []string{
		"id", "chain_id", "name", "chain_type", "native_chain_id", "network_id",
		"core_bridge_address", "token_bridge_address", "emitter_address", "wrapped_native_address",
		"tx_type", "wait_n_blocks", "active", "created_at", "updated_at",
	}
	rpcRowColumns = []string{"id", "chain_id", "url", "provider", "priority", "active", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*DBConfig, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDBConfigFromDB(db), mock
}

func TestMigrate(t *testing.T) {
	cfg, mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS chains`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, cfg.Migrate(context.Background()))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))
	assert.ErrorIs(t, cfg.Migrate(context.Background()), ErrDatabaseQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChains(t *testing.T) {
	cfg, mock := newMock(t)
	now := time.Now()
	rows := sqlmock.NewRows(chainRowColumns).
		AddRow(1, 2, "ethereum", "evm", 1, nil, "0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B",
			"0x3ee18B2214AFF97000D974cf647E7C347E8fa585", nil, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 2, 12, true, now, now).
		AddRow(2, 18, "terra2", "cosmos", nil, "phoenix-1", "terra1core", "terra1token", nil, nil, 0, 0, true, now, now)
	mock.ExpectQuery(`FROM chains WHERE active = \$1 ORDER BY chain_id ASC`).WithArgs(true).WillReturnRows(rows)

	chains, err := cfg.GetChains(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, types.ChainIDEthereum, chains[0].ChainID)
	assert.Equal(t, types.EVM, chains[0].Type)
	assert.Equal(t, uint64(1), chains[0].NativeChainID)
	assert.Equal(t, uint64(12), chains[0].WaitNBlocks)
	assert.Equal(t, types.COSMOS, chains[1].Type)
	assert.Equal(t, "phoenix-1", chains[1].NetworkID)
	assert.Empty(t, chains[1].WrappedNativeAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChainByID(t *testing.T) {
	cfg, mock := newMock(t)
	ctx := context.Background()

	_, err := cfg.GetChainByID(ctx, types.ChainIDUnset)
	assert.ErrorIs(t, err, berrors.ErrInvalidChainID)

	mock.ExpectQuery(`FROM chains WHERE chain_id = \$1`).WithArgs(22).WillReturnRows(sqlmock.NewRows(chainRowColumns))
	_, err = cfg.GetChainByID(ctx, types.ChainIDAptos)
	assert.ErrorIs(t, err, berrors.ErrChainNotFound)

	mock.ExpectQuery(`FROM chains WHERE chain_id = \$1`).WithArgs(22).WillReturnError(errors.New("conn reset"))
	_, err = cfg.GetChainByID(ctx, types.ChainIDAptos)
	assert.ErrorIs(t, err, ErrDatabaseQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChainConfigs(t *testing.T) {
	cfg, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM chains WHERE active = \$1`).WithArgs(true).WillReturnRows(
		sqlmock.NewRows(chainRowColumns).AddRow(1, 1, "solana", "SOLANA", nil, nil,
			"worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth", "wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb", nil, nil, 0, 0, true, now, now))
	mock.ExpectQuery(`FROM rpcs WHERE chain_id = \$1 AND active = \$2 ORDER BY priority DESC`).WithArgs(1, true).WillReturnRows(
		sqlmock.NewRows(rpcRowColumns).
			AddRow(7, 1, "https://primary.example", "helius", 10, true, now, now).
			AddRow(8, 1, "https://fallback.example", nil, 0, true, now, now))

	configs, err := cfg.GetChainConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, types.SOLANA, configs[0].ChainType)
	assert.Equal(t, "https://primary.example", configs[0].RpcUrl)
	assert.Equal(t, "wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb", configs[0].TokenBridgeAddress)
	assert.Empty(t, configs[0].PrivateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChainConfigsWithoutRPC(t *testing.T) {
	cfg, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM chains`).WithArgs(true).WillReturnRows(
		sqlmock.NewRows(chainRowColumns).AddRow(1, 15, "near", "NEAR", nil, nil, "core.near", "tb.near", nil, nil, 0, 0, true, now, now))
	mock.ExpectQuery(`FROM rpcs`).WithArgs(15, true).WillReturnRows(sqlmock.NewRows(rpcRowColumns))

	_, err := cfg.GetChainConfigs(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveRPC)
}

func TestGetRPCsByChainID(t *testing.T) {
	cfg, mock := newMock(t)
	ctx := context.Background()

	_, err := cfg.GetRPCsByChainID(ctx, types.ChainIDUnset, false)
	assert.ErrorIs(t, err, berrors.ErrInvalidChainID)

	now := time.Now()
	mock.ExpectQuery(`FROM rpcs WHERE chain_id = \$1 ORDER BY`).WithArgs(2).WillReturnRows(
		sqlmock.NewRows(rpcRowColumns).AddRow(1, 2, "https://eth.example", nil, 0, false, now, now))
	rpcs, err := cfg.GetRPCsByChainID(ctx, types.ChainIDEthereum, false)
	require.NoError(t, err)
	require.Len(t, rpcs, 1)
	assert.Empty(t, rpcs[0].Provider)
	assert.False(t, rpcs[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}
