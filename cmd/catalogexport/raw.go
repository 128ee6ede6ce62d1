package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

// rawSearcher returns search pages exactly as the provider sent them.
type rawSearcher interface {
	SearchCatalogObjectsRaw(ctx context.Context, req *square.SearchCatalogObjectsRequest) (json.RawMessage, error)
}

// mockRaw re-encodes mock pages so the raw path can run without Square.
type mockRaw struct {
	*square.Mock
}

func (m mockRaw) SearchCatalogObjectsRaw(ctx context.Context, req *square.SearchCatalogObjectsRequest) (json.RawMessage, error) {
	resp, err := m.SearchCatalogObjects(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func newRawSearcher(a *app) (rawSearcher, error) {
	if a.cfg.Mocks.Enable {
		return mockRaw{square.NewMock()}, nil
	}
	client, err := square.NewClient(a.cfg.Square)
	if err != nil {
		return nil, fmt.Errorf("failed to create square client: %w", err)
	}
	return client, nil
}

func newRawCmd(a *app) *cobra.Command {
	var slug, run string
	var maxPages int
	cmd := &cobra.Command{
		Use:   "raw --slug <slug>",
		Short: "Store the provider's search pages for a slug, with unsafe integers quoted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, err := categories.Default()
			if err != nil {
				return err
			}
			target, err := resolver.Resolve(slug)
			if err != nil {
				return err
			}
			searcher, err := newRawSearcher(a)
			if err != nil {
				return err
			}
			if run == "" {
				run = uuid.NewString()
			}

			req := &square.SearchCatalogObjectsRequest{
				ObjectTypes:           []string{square.TypeItem},
				IncludeRelatedObjects: true,
				Limit:                 a.cfg.Catalog.PageSize,
				Query: &square.CatalogQuery{
					SetQuery: &square.SetQuery{AttributeName: "category_id", AttributeValues: target.CategoryIDs()},
				},
			}
			for page := 0; maxPages <= 0 || page < maxPages; page++ {
				raw, err := searcher.SearchCatalogObjectsRaw(ctx, req)
				if err != nil {
					return fmt.Errorf("fetch page %d: %w", page, err)
				}
				key, err := a.snapshots().SaveRaw(ctx, run, page, raw)
				if err != nil {
					return fmt.Errorf("store page %d: %w", page, err)
				}
				fmt.Fprintln(a.out, key)

				parsed, err := square.ParseSearchCatalogObjectsResponse(raw)
				if err != nil {
					return err
				}
				if parsed.Cursor == "" || parsed.Cursor == req.Cursor {
					slog.InfoContext(ctx, "raw export complete", "run", run, "pages", page+1)
					return nil
				}
				req.Cursor = parsed.Cursor
			}
			slog.WarnContext(ctx, "stopped at page limit", "run", run, "max_pages", maxPages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&slug, "slug", "s", "", "Category or group slug")
	cmd.Flags().StringVar(&run, "run", "", "Run name for the stored pages (default random)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after this many pages, 0 for no limit")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}
