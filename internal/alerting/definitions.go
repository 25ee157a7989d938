package alerting

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the alert definition union.
type Kind string

const (
	KindPriceTarget Kind = "price_target"
	KindPriceChange Kind = "price_change"
	KindMargin      Kind = "margin"
)

// Direction orients a price target.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// PriceTargetSpec fires when the price crosses a target.
type PriceTargetSpec struct {
	ItemID      int       `json:"item_id"`
	TargetPrice int64     `json:"target_price"`
	Direction   Direction `json:"direction"`
}

// PriceChangeSpec fires on a percent move over a window. A positive threshold
// watches for rises, a negative one for falls.
type PriceChangeSpec struct {
	ItemID       int     `json:"item_id"`
	ThresholdPct float64 `json:"threshold_pct"`
	WindowHours  float64 `json:"window_hours"`
}

// MarginSpec fires when the flip margin reaches both floors.
type MarginSpec struct {
	ItemID       int     `json:"item_id"`
	MinMarginPct float64 `json:"min_margin_pct"`
	MinMarginGp  int64   `json:"min_margin_gp"`
}

// Definition is one stored alert. Exactly one spec pointer matching Kind is
// set. User alerts are one-shot: once Triggered they are never re-evaluated.
type Definition struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Triggered bool      `json:"triggered"`

	PriceTarget *PriceTargetSpec `json:"price_target,omitempty"`
	PriceChange *PriceChangeSpec `json:"price_change,omitempty"`
	Margin      *MarginSpec      `json:"margin,omitempty"`
}

// ItemID returns the item the definition watches.
func (d Definition) ItemID() int {
	switch d.Kind {
	case KindPriceTarget:
		if d.PriceTarget != nil {
			return d.PriceTarget.ItemID
		}
	case KindPriceChange:
		if d.PriceChange != nil {
			return d.PriceChange.ItemID
		}
	case KindMargin:
		if d.Margin != nil {
			return d.Margin.ItemID
		}
	}
	return 0
}

func (d Definition) validate() error {
	switch d.Kind {
	case KindPriceTarget:
		spec := d.PriceTarget
		if spec == nil {
			return errors.New("price target spec missing")
		}
		if spec.ItemID <= 0 || spec.TargetPrice <= 0 {
			return errors.New("price target requires item and positive target price")
		}
		if spec.Direction != DirectionAbove && spec.Direction != DirectionBelow {
			return fmt.Errorf("unknown direction %q", spec.Direction)
		}
	case KindPriceChange:
		spec := d.PriceChange
		if spec == nil {
			return errors.New("price change spec missing")
		}
		if spec.ItemID <= 0 || spec.ThresholdPct == 0 || spec.WindowHours <= 0 {
			return errors.New("price change requires item, non-zero threshold and positive window")
		}
	case KindMargin:
		spec := d.Margin
		if spec == nil {
			return errors.New("margin spec missing")
		}
		if spec.ItemID <= 0 {
			return errors.New("margin alert requires an item")
		}
	default:
		return fmt.Errorf("unknown alert kind %q", d.Kind)
	}
	return nil
}
