package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/catalog"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/pager"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/snapshot"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/storefront"
)

type exportOptions struct {
	api   string
	key   pager.Key
	quiet bool
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Page through a listing on the catalog API and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.key.Idle() {
				return errors.New("--slug or --search is required")
			}
			client, err := storefront.NewClient(opts.api, nil)
			if err != nil {
				return err
			}

			p := pager.New(cmd.Context(), client.Fetch)
			defer p.Close()
			p.SetKey(opts.key)
			items, err := p.Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("export %s: %w", snapshot.Name(opts.key), err)
			}

			snap := &snapshot.Snapshot{Key: opts.key, TakenAt: time.Now().UTC(), Items: items}
			if err := a.snapshots().Save(cmd.Context(), snap); err != nil {
				return err
			}
			slog.InfoContext(cmd.Context(), "stored snapshot", "name", snap.Name, "items", len(items), "pages", p.Pages())
			if opts.quiet {
				return nil
			}
			return printItems(a.out, items)
		},
	}
	cmd.Flags().StringVar(&opts.api, "api", "http://localhost:8080", "Catalog API base URL")
	cmd.Flags().StringVarP(&opts.key.Slug, "slug", "s", "", "Category or group slug")
	cmd.Flags().StringVar(&opts.key.Search, "search", "", "Search term, used instead of --slug")
	cmd.Flags().StringVar(&opts.key.Group, "group", "", "Domain the slug was browsed from")
	cmd.Flags().StringVar(&opts.key.Stock, "stock", "", "Stock filter, e.g. IN_STOCK")
	cmd.Flags().StringVar(&opts.key.Sort, "sort", "", "name_asc or name_desc")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the exported items")
	return cmd
}

func printItems(out io.Writer, items []catalog.Item) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICES\tSTOCK\tSTATUS")
	for _, it := range items {
		prices := "-"
		for i, v := range it.Variations {
			p := catalog.FormatPrice(int64(v.Price), v.Currency)
			if i == 0 {
				prices = p
				continue
			}
			prices += ", " + p
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", it.ID, it.Name, prices, it.StockQuantity, it.Status)
	}
	return tw.Flush()
}
