// Command storecli is the demo CLI and optional HTTP facade for the
// in-memory indexed record store: a urfave/cli/v2 app with one subcommand
// per store operation, go-pretty tables for human output, and a `serve`
// subcommand exposing a minimal REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gloudx/recordstore/recordstore"
)

const (
	appName    = "storecli"
	appVersion = "1.0.0"
)

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "in-memory indexed record store — CLI and HTTP demo facade",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"STORECLI_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "seed",
				Aliases: []string{"s"},
				Usage:   "path to a JSON Lines file of records to load before running the command",
				EnvVars: []string{"STORECLI_SEED"},
			},
		},
		Commands: []*cli.Command{
			createCommand,
			getCommand,
			selectCommand,
			updateCommand,
			deleteCommand,
			statsCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "storecli: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap builds a fresh store and config from the global flags, loading
// the seed file (if any) before the subcommand's own action runs. Since the
// store is pure in-memory state (a deliberate non-goal: persistence), every
// invocation of storecli starts from this seed rather than from whatever a
// previous invocation left behind.
func bootstrap(ctx *cli.Context) (*recordstore.Store, *Config, error) {
	cfg, err := loadConfig(ctx.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	store := recordstore.New()

	seedPath := ctx.String("seed")
	if seedPath == "" {
		seedPath = cfg.Seed
	}
	if seedPath != "" {
		n, err := loadSeed(store, seedPath)
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(os.Stderr, "loaded %d records from %s\n", n, seedPath)
	}
	return store, cfg, nil
}

var createCommand = &cli.Command{
	Name:      "create",
	Aliases:   []string{"c"},
	Usage:     "create a record from a JSON object",
	ArgsUsage: "<json>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("requires a JSON object argument")
		}
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(ctx.Args().Get(0)), &data); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		rid, err := store.Create(data)
		if err != nil {
			return err
		}
		fmt.Printf("created rid %d\n", rid)
		return nil
	},
}

var getCommand = &cli.Command{
	Name:      "get",
	Aliases:   []string{"g"},
	Usage:     "fetch one record by rid",
	ArgsUsage: "<rid>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("requires a rid argument")
		}
		rid, err := parseRid(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		view, err := store.Get(rid)
		if err != nil {
			return err
		}
		data, err := view.Map()
		if err != nil {
			return err
		}
		printRecordTable(rid, data)
		return nil
	},
}

var selectCommand = &cli.Command{
	Name:    "select",
	Aliases: []string{"sel", "query"},
	Usage:   "run an ad-hoc jq residual filter over every record",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "jq", Usage: "jq expression; omitted means every record"},
		&cli.IntFlag{Name: "limit", Usage: "cap the number of results"},
		&cli.IntFlag{Name: "offset", Usage: "skip this many ordered results"},
	},
	Action: func(ctx *cli.Context) error {
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		q := store.Select()
		if jqExpr := ctx.String("jq"); jqExpr != "" {
			q = q.Raw(jqExpr)
		}
		if ctx.IsSet("limit") {
			q = q.Limit(ctx.Int("limit"))
		}
		if ctx.IsSet("offset") {
			q = q.Offset(ctx.Int("offset"))
		}
		rows, err := q.Map()
		if err != nil {
			return err
		}
		printResultTable(rows)
		return nil
	},
}

var updateCommand = &cli.Command{
	Name:      "update",
	Aliases:   []string{"u"},
	Usage:     "apply a JSON patch to one record",
	ArgsUsage: "<rid> <json-patch>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			return fmt.Errorf("requires a rid and a JSON patch argument")
		}
		rid, err := parseRid(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		var patch map[string]any
		if err := json.Unmarshal([]byte(ctx.Args().Get(1)), &patch); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		if err := store.Update(rid, patch); err != nil {
			return err
		}
		fmt.Printf("updated rid %d\n", rid)
		return nil
	},
}

var deleteCommand = &cli.Command{
	Name:      "delete",
	Aliases:   []string{"del", "rm"},
	Usage:     "delete one record by rid",
	ArgsUsage: "<rid>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("requires a rid argument")
		}
		rid, err := parseRid(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		if err := store.Delete(rid); err != nil {
			return err
		}
		fmt.Printf("deleted rid %d\n", rid)
		return nil
	},
}

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "print per-attribute index cardinality and record count",
	Action: func(ctx *cli.Context) error {
		store, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		printStatsTable(store.Stats())
		return nil
	},
}

var serveCommand = &cli.Command{
	Name:    "serve",
	Aliases: []string{"server"},
	Usage:   "serve the store over a minimal HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "override the config file's bind host"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "override the config file's bind port"},
	},
	Description: `Serves the record store over HTTP.

Endpoints:
  GET    /api/v1/health          - liveness check
  POST   /api/v1/records         - create a record from a JSON body
  GET    /api/v1/records         - select every record (?jq=, ?limit=)
  GET    /api/v1/records/{rid}   - fetch one record
  PATCH  /api/v1/records/{rid}   - apply a JSON patch
  DELETE /api/v1/records/{rid}   - delete a record
  POST   /api/v1/query           - {"jq": "...", "limit": n, "offset": n}
  GET    /api/v1/stats           - record count and index cardinality
  GET    /metrics                - Prometheus metrics (if enabled)`,
	Action: func(ctx *cli.Context) error {
		store, cfg, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		srvCfg := cfg.Server
		if ctx.IsSet("host") {
			srvCfg.Host = ctx.String("host")
		}
		if ctx.IsSet("port") {
			srvCfg.Port = ctx.Int("port")
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return newAPIServer(store, srvCfg).Start(runCtx)
	},
}

func parseRid(s string) (recordstore.Rid, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rid %q", s)
	}
	return recordstore.Rid(n), nil
}
