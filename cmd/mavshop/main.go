package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/catalog"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/telemetry"
)

func main() {
	var slug string
	var search string
	var stock string
	var sort string
	var serve bool
	var addr string
	var help bool

	flag.StringVar(&slug, "slug", "", "Category or group slug to list (e.g., pokemon)")
	flag.StringVar(&slug, "s", "", "Category or group slug to list (short form)")
	flag.StringVar(&search, "search", "", "Search term to list instead of a slug")
	flag.StringVar(&stock, "stock", "", "Stock filter, e.g. IN_STOCK or SOLD_OUT")
	flag.StringVar(&sort, "sort", "name_asc", "name_asc or name_desc")
	flag.BoolVar(&serve, "serve", false, "Run HTTP server mode")
	flag.StringVar(&addr, "addr", ":8080", "Address to bind in server mode")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		showHelp()
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	if serve {
		if err := runServer(cfg, addr); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	if slug == "" && search == "" {
		fmt.Println("Error: -slug or -search is required (or use -serve for web mode)")
		showHelp()
		os.Exit(1)
	}

	if err := run(ctx, cfg, os.Stdout, slug, search, stock, sort); err != nil {
		slog.Error("listing failed", "error", err)
		os.Exit(1)
	}
}

// run prints the first page of a listing straight from the provider.
func run(ctx context.Context, cfg *config.Config, out io.Writer, slug, search, stock, sort string) error {
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	resolver, err := categories.Default()
	if err != nil {
		return err
	}
	svc := catalog.NewService(provider, resolver, cfg)

	filter, err := catalog.ParseStockFilter(stock, cfg.Catalog.StrictStockFilter)
	if err != nil {
		return err
	}
	q := catalog.Query{Stock: filter, Sort: catalog.ParseSort(sort), Group: cfg.Catalog.DefaultGroup}

	var resp *catalog.Response
	if search != "" {
		resp, err = svc.Search(ctx, search, q)
	} else {
		resp, err = svc.Category(ctx, slug, q)
	}
	if err != nil {
		return err
	}
	return printItems(out, resp.Items)
}

func printItems(out io.Writer, items []catalog.Item) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tSTATUS")
	for _, it := range items {
		price := "-"
		if len(it.Variations) > 0 {
			v := it.Variations[0]
			price = catalog.FormatPrice(int64(v.Price), v.Currency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", it.ID, it.Name, price, it.StockQuantity, it.Status)
	}
	return tw.Flush()
}

func showHelp() {
	fmt.Println("mavshop - MAV Collectibles catalog service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mavshop -serve [-addr :8080]")
	fmt.Println("  mavshop -slug <slug> [-stock IN_STOCK] [-sort name_desc]")
	fmt.Println("  mavshop -search <term>")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -serve          Run the HTTP API")
	fmt.Println("  -slug, -s       Category or group slug to list")
	fmt.Println("  -search         Search term to list")
	fmt.Println("  -help, -h       Show this help message")
}
