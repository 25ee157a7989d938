package alerting

import (
	"time"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
)

// PayloadType labels what fired.
type PayloadType string

const (
	PayloadPriceTarget PayloadType = "price_target"
	PayloadPriceChange PayloadType = "price_change"
	PayloadMargin      PayloadType = "margin"
	PayloadPump        PayloadType = "pump"
	PayloadDump        PayloadType = "dump"
	PayloadCrash       PayloadType = "crash"
	PayloadSpike       PayloadType = "spike"
	PayloadUnusual     PayloadType = "unusual_activity"
	PayloadDumpWatch   PayloadType = "dump_watch"
)

// ItemRef identifies the item an alert concerns.
type ItemRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// Payload is the structured alert handed to the notification sink. The core
// never renders human-readable text; the chat layer formats from these
// fields.
type Payload struct {
	Type      PayloadType `json:"type"`
	ServerID  string      `json:"server_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	ChannelID string      `json:"channel_id,omitempty"`
	AlertID   string      `json:"alert_id,omitempty"`

	Item ItemRef `json:"item"`

	Severity analytics.Severity `json:"severity,omitempty"`
	Tier     Tier               `json:"tier,omitempty"`

	Price       int64    `json:"price,omitempty"`
	TargetPrice int64    `json:"target_price,omitempty"`
	ChangePct   float64  `json:"change_pct,omitempty"`
	WindowHours float64  `json:"window_hours,omitempty"`
	MarginGp    int64    `json:"margin_gp,omitempty"`
	MarginPct   float64  `json:"margin_pct,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}
