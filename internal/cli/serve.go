package cli

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/KitsFC/kefelan-year-end/internal/api"
	"github.com/KitsFC/kefelan-year-end/internal/logger"
	"github.com/KitsFC/kefelan-year-end/internal/pipeline"
)

type serveCmd struct {
	addr   string
	config string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the extract, parse and classify endpoints" }
func (*serveCmd) Usage() string {
	return `serve [-addr :8080] [-config <run.yaml>]

  Starts the HTTP API. With -config the rule tables, vendor hints and domestic
  currency of the run file are used; otherwise the built-in rules and CAD.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", ":8080", "Listen address")
	f.StringVar(&c.config, "config", "", "Optional run file")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := logger.NewWithOptions(logger.Options{Level: *logLevel})
	h := api.NewHandler(log)

	if c.config != "" {
		runCtx, cfg, err := loadRun(ctx, c.config)
		if err != nil {
			return failf("%v", err)
		}
		state := &pipeline.PipelineState{ConfigPath: c.config, Config: cfg}
		if err := (&pipeline.LoadConfigStep{}).Execute(runCtx, state); err != nil {
			return failf("%v", err)
		}
		log = logger.FromContext(runCtx)
		h = &api.Handler{Rules: state.Rules, Hints: state.Hints, Domestic: cfg.DomesticCurrency, Log: log}
	}

	app := api.NewApp(h)
	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	if port := os.Getenv("PORT"); port != "" && c.addr == ":8080" {
		c.addr = ":" + port
	}
	log.Info().Str("addr", c.addr).Msg("listening")
	if err := app.Listen(c.addr); err != nil {
		return failf("%v", err)
	}
	return subcommands.ExitSuccess
}
