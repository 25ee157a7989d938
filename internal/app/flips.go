package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
)

// Flips prints the best current flipping opportunities.
func (a *App) Flips(ctx context.Context, opts FlipsOptions) error {
	_, an, err := a.loadMarket(ctx)
	if err != nil {
		return err
	}

	candidates := an.FindBestFlips(analytics.FlipCriteria{
		MinMarginPct: opts.MinMarginPct,
		MinMarginGp:  opts.MinMarginGp,
		MinBuyLimit:  opts.MinBuyLimit,
		MaxResults:   opts.Limit,
	})
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stdout, "no flips matched the criteria")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tName\tBuyAt\tSellAt\tMargin\tMargin%\tROI/h\tLimit\tMaxProfit\tScore")

	for i, c := range candidates {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%d\t%d\t%.2f\t%.2f\t%d\t%d\t%.1f\n",
			i+1,
			c.Item.Name,
			c.Margin.BuyAt,
			c.Margin.SellAt,
			c.Margin.Margin,
			c.Margin.MarginPct,
			c.Margin.ROIPerHour,
			c.Margin.BuyLimit,
			c.Margin.MaxProfit,
			c.Score,
		)
	}

	writer.Flush()
	return nil
}
