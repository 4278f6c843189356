// Package dbconfig reads chain configuration from Postgres and persists transfer records there.
package dbconfig

import (
	"context"
	"database/sql"
	_ "embed"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// DBConfig wraps the Postgres pool shared by the chain tables and the transfer store.
type DBConfig struct {
	db *sql.DB
}

// NewDBConfig creates a new DBConfig instance with the provided connection string.
//
// Parameters:
// - connStr: the database connection string.
//
// Returns:
// - *DBConfig: a pointer to the newly created DBConfig instance.
// - error: ErrDatabaseConnect if the connection string is rejected by the driver.
func NewDBConfig(connStr string) (*DBConfig, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(berrors.ErrDatabaseConnect, err.Error())
	}
	return &DBConfig{db: db}, nil
}

// NewDBConfigFromDB wraps an existing pool.
func NewDBConfigFromDB(db *sql.DB) *DBConfig {
	return &DBConfig{db: db}
}

// Migrate creates the chain, rpc and transfer tables when they do not exist.
func (r *DBConfig) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrapf(ErrDatabaseQuery, "migrate: %v", err)
	}
	return nil
}

// Close closes the pool.
func (r *DBConfig) Close() error {
	return r.db.Close()
}
