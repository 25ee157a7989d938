package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Craigmuzza/PVPStore-sub000/internal/storage"
)

// Export renders one item's persisted samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Item == "" {
		return errors.New("--item is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	itemID, err := a.resolveItemID(ctx, opts.Item)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openAuditStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.PriceInterval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesForItem(ctx, itemID, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Int("item_id", itemID).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.PriceSample, max int) []storage.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.PriceSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "instant_buy", "instant_sell", "change_pct", "buy_volume", "sell_volume", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Bucket.UTC().Format(time.RFC3339),
			formatInt64Ptr(sample.InstantBuy),
			formatInt64Ptr(sample.InstantSell),
			formatChangePct(sample),
			formatInt64Ptr(sample.BuyVolume),
			formatInt64Ptr(sample.SellVolume),
			sample.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	buySeries := sampleSeries(samples, func(s storage.PriceSample) *int64 { return s.InstantBuy })
	buySeries.Name = "Instant buy"
	sellSeries := sampleSeries(samples, func(s storage.PriceSample) *int64 { return s.InstantSell })
	sellSeries.Name = "Instant sell"

	var series []chart.Series
	if len(buySeries.XValues) >= 2 {
		series = append(series, buySeries)
	}
	if len(sellSeries.XValues) >= 2 {
		series = append(series, sellSeries)
	}
	if len(series) == 0 {
		return errors.New("not enough priced samples to plot")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (gp)",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func sampleSeries(samples []storage.PriceSample, pick func(storage.PriceSample) *int64) chart.TimeSeries {
	series := chart.TimeSeries{}
	for _, sample := range samples {
		value := pick(sample)
		if value == nil {
			continue
		}
		series.XValues = append(series.XValues, sample.Bucket)
		series.YValues = append(series.YValues, float64(*value))
	}
	return series
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatChangePct(sample storage.PriceSample) string {
	if sample.ChangePct == nil {
		return ""
	}
	return sample.ChangePct.StringFixed(4)
}
