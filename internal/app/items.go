package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// loadMarket performs a one-shot catalog and price fetch for ad-hoc commands.
func (a *App) loadMarket(ctx context.Context) (*pricestore.Store, *analytics.Analytics, error) {
	client := a.newClient()
	store := a.newPriceStore(client)

	if err := store.RefreshCatalog(ctx); err != nil {
		return nil, nil, err
	}
	if err := store.RefreshPrices(ctx); err != nil {
		return nil, nil, err
	}
	return store, a.newAnalytics(store), nil
}

// loadCatalog fetches only the item catalog, for name resolution.
func (a *App) loadCatalog(ctx context.Context) (*pricestore.Store, error) {
	client := a.newClient()
	store := a.newPriceStore(client)
	if err := store.RefreshCatalog(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// resolveItemID turns a numeric id or an item name into an item id. Name
// resolution requires a catalog fetch.
func (a *App) resolveItemID(ctx context.Context, query string) (int, error) {
	if id, err := strconv.Atoi(query); err == nil && id > 0 {
		return id, nil
	}

	store, err := a.loadCatalog(ctx)
	if err != nil {
		return 0, err
	}
	item, ok := store.FindItem(query)
	if !ok {
		return 0, fmt.Errorf("no item matched %q", query)
	}
	return item.ID, nil
}

// resolveItemIDs resolves a batch of ids or names with at most one catalog
// fetch.
func (a *App) resolveItemIDs(ctx context.Context, queries []string) ([]int, error) {
	ids := make([]int, 0, len(queries))
	var store *pricestore.Store

	for _, query := range queries {
		if id, err := strconv.Atoi(query); err == nil && id > 0 {
			ids = append(ids, id)
			continue
		}
		if store == nil {
			var err error
			store, err = a.loadCatalog(ctx)
			if err != nil {
				return nil, err
			}
		}
		item, ok := store.FindItem(query)
		if !ok {
			return nil, fmt.Errorf("no item matched %q", query)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// Items searches the catalog and prints price and margin data per match.
func (a *App) Items(ctx context.Context, opts ItemsOptions) error {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	store, an, err := a.loadMarket(ctx)
	if err != nil {
		return err
	}

	matches := store.SearchItems(opts.Query, limit)
	if len(matches) == 0 {
		fmt.Fprintf(os.Stdout, "no items matched %q\n", opts.Query)
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tName\tLimit\tInstaBuy\tInstaSell\tTax\tMargin\tMargin%")

	for _, item := range matches {
		buy, sell := "-", "-"
		if point, ok := store.Price(item.ID); ok {
			if point.InstantBuy != nil {
				buy = strconv.FormatInt(*point.InstantBuy, 10)
			}
			if point.InstantSell != nil {
				sell = strconv.FormatInt(*point.InstantSell, 10)
			}
		}

		tax, margin, marginPct := "-", "-", "-"
		if m, ok := an.Margin(item.ID); ok {
			tax = strconv.FormatInt(m.Tax, 10)
			margin = strconv.FormatInt(m.Margin, 10)
			marginPct = fmt.Sprintf("%.2f", m.MarginPct)
		}

		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Name,
			item.BuyLimit,
			buy,
			sell,
			tax,
			margin,
			marginPct,
		)
	}

	writer.Flush()
	return nil
}
