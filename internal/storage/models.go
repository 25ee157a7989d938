package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is one persisted observation of an item's prices. Live samples
// carry instant prices; backfilled samples carry windowed averages and
// volumes.
type PriceSample struct {
	ItemID      int
	Bucket      time.Time
	InstantBuy  *int64
	InstantSell *int64
	ChangePct   *decimal.Decimal
	BuyVolume   *int64
	SellVolume  *int64
	Source      string
	CreatedAt   time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID        int64
	ServerID  string
	ChannelID string
	ItemID    int
	AlertType string
	Severity  string
	ChangePct *decimal.Decimal
	Payload   json.RawMessage
	CreatedAt time.Time
}
