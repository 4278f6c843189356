package models

import (
	"time"

	"github.com/ClipFinance/bridge-lib/common/types"
)

type RPC struct {
	ID        int64
	ChainID   types.ChainID
	URL       string
	Provider  string
	Priority  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
