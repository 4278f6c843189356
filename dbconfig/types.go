package dbconfig

import "github.com/pkg/errors"

var (
	ErrDatabaseQuery = errors.New("database query failed")
	ErrNoActiveRPC   = errors.New("chain has no active rpc")
)
