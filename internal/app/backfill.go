package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
	"github.com/Craigmuzza/PVPStore-sub000/internal/storage"
)

// Backfill imports historical timeseries buckets for one item into the sample
// store.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.Item == "" {
		return errors.New("--item is required")
	}

	step := opts.Step
	if step == "" {
		step = "5m"
	}

	from := opts.From.UTC()
	to := opts.To.UTC()
	if !from.Before(to) {
		return errors.New("backfill window is empty; check --from/--to")
	}

	itemID, err := a.resolveItemID(ctx, opts.Item)
	if err != nil {
		return err
	}

	var sampleStore storage.PriceSampleStore
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		store, closeStore, err := a.openAuditStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		if closeStore != nil {
			defer closeStore()
		}
		sampleStore = store
	}

	client := a.newClient()
	points, err := client.FetchTimeseries(ctx, itemID, step)
	if err != nil {
		return err
	}

	processed := 0
	skipped := 0
	failed := 0
	var prevHigh *int64

	for _, point := range points {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		bucket := time.Unix(point.Timestamp, 0).UTC()
		if bucket.Before(from) || !bucket.Before(to) {
			prevHigh = point.AvgHighPrice
			skipped++
			continue
		}

		sample := timeseriesSample(itemID, bucket, point, prevHigh)
		prevHigh = point.AvgHighPrice

		if sampleStore == nil {
			processed++
			continue
		}
		if err := sampleStore.UpsertPriceSample(ctx, sample); err != nil {
			failed++
			a.Logger.Error().Err(err).Time("bucket", bucket).Msg("backfill upsert failed")
			continue
		}
		processed++
	}

	a.Logger.Info().
		Int("item_id", itemID).
		Int("processed", processed).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("backfill complete")
	if failed > 0 {
		return errors.New("some buckets failed to backfill; check logs")
	}
	return nil
}

// timeseriesSample converts one API bucket into a stored sample. The percent
// change is computed against the previous bucket's average high when both are
// known.
func timeseriesSample(itemID int, bucket time.Time, point geapi.TimeseriesPoint, prevHigh *int64) storage.PriceSample {
	buyVolume := point.HighPriceVolume
	sellVolume := point.LowPriceVolume

	sample := storage.PriceSample{
		ItemID:      itemID,
		Bucket:      bucket,
		InstantBuy:  point.AvgHighPrice,
		InstantSell: point.AvgLowPrice,
		BuyVolume:   &buyVolume,
		SellVolume:  &sellVolume,
		Source:      "timeseries",
	}

	if point.AvgHighPrice != nil && prevHigh != nil && *prevHigh != 0 {
		current := decimal.NewFromInt(*point.AvgHighPrice)
		previous := decimal.NewFromInt(*prevHigh)
		change := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
		sample.ChangePct = &change
	}

	return sample
}
