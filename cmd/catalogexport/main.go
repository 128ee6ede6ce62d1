// Command catalogexport pages through catalog listings and stores them as
// snapshots in the configured cache backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/cache"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/snapshot"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/telemetry"
)

// app holds what every subcommand shares. Tests fill cfg and store up front
// so nothing is read from the environment.
type app struct {
	cfg      *config.Config
	store    cache.ListCache
	out      io.Writer
	shutdown telemetry.ShutdownFunc
}

func (a *app) snapshots() *snapshot.Store {
	return snapshot.NewStore(a.store)
}

func (a *app) init(ctx context.Context) error {
	if a.cfg == nil {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		a.cfg = cfg
		if a.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry); err != nil {
			return fmt.Errorf("failed to set up telemetry: %w", err)
		}
	}
	if a.store == nil {
		store, err := cache.MakeCache(a.cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		a.store = store
	}
	return nil
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		slog.Error("telemetry shutdown", "error", err)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogexport",
		Short:         "Export catalog listings as snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.out == nil {
				a.out = cmd.OutOrStdout()
			}
			return a.init(cmd.Context())
		},
	}
	root.AddCommand(newExportCmd(a), newRawCmd(a), newListCmd(a))
	return root
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.snapshots().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func main() {
	a := &app{}
	defer a.close()
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		slog.Error("catalogexport failed", "error", err)
		a.close()
		os.Exit(1)
	}
}
