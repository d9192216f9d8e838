package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"hemalink/internal/bloodbank"
	"hemalink/internal/bloodbank/seed"
	"hemalink/internal/bloodbank/service"
	"hemalink/internal/platform/config"
	"hemalink/internal/platform/logger"
	"hemalink/internal/storage/bootstrap"
)

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "Load the sample donors, requestor, request and stock levels",
	Action: func(c *cli.Context) error {
		return withBackend(c, func(ctx context.Context, sel *bootstrap.Selection, _ *bloodbank.Service) error {
			if err := seed.Load(ctx, sel.Backend, time.Now()); err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{
				"seeded":  true,
				"backend": sel.Backend.Name(),
			})
		})
	},
}

var matchCmd = &cli.Command{
	Name:  "match",
	Usage: "Print the match report for a blood group",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "blood-group",
			Aliases:  []string{"g"},
			Required: true,
			Usage:    "recipient blood group (A+, A-, B+, B-, AB+, AB-, O+, O-)",
		},
		&cli.IntFlag{
			Name:  "units",
			Value: 1,
			Usage: "units needed",
		},
		&cli.StringFlag{
			Name:  "location",
			Usage: "restrict donors to a city or state",
		},
	},
	Action: func(c *cli.Context) error {
		return withBackend(c, func(ctx context.Context, _ *bootstrap.Selection, svc *bloodbank.Service) error {
			report, err := svc.MatchReport(ctx, c.String("blood-group"), c.Int("units"), c.String("location"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, report)
		})
	},
}

var inventoryCmd = &cli.Command{
	Name:  "inventory",
	Usage: "Print the inventory ledger",
	Action: func(c *cli.Context) error {
		return withBackend(c, func(ctx context.Context, _ *bootstrap.Selection, svc *bloodbank.Service) error {
			entries, err := svc.Inventory(ctx)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, entries)
		})
	},
}

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "Print dashboard statistics",
	Action: func(c *cli.Context) error {
		return withBackend(c, func(ctx context.Context, _ *bootstrap.Selection, svc *bloodbank.Service) error {
			stats, err := svc.Statistics(ctx)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, stats)
		})
	},
}

// withBackend selects the record store exactly as the server does, memory
// fallback included, and closes it afterwards.
func withBackend(c *cli.Context, fn func(context.Context, *bootstrap.Selection, *bloodbank.Service) error) error {
	cfg := config.FromEnv()
	log := logger.NewWithWriter(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	ctx := c.Context

	sel := bootstrap.Open(ctx, cfg, log)
	defer func() {
		if err := sel.Backend.Close(); err != nil {
			log.Error("close record store", "error", err)
		}
	}()
	if sel.Degraded {
		log.Warn("running against the in-memory store; nothing will persist",
			slog.String("requested", sel.Requested))
	}
	return fn(ctx, sel, bloodbank.NewService(sel.Backend, service.WithLogger(log)))
}

func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
