package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/KitsFC/kefelan-year-end/internal/pipeline"
	"github.com/KitsFC/kefelan-year-end/internal/writer"
)

type reportCmd struct {
	config string
	raw    bool
	width  int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the owed-candidate report without writing outputs" }
func (*reportCmd) Usage() string {
	return `report -config <run.yaml> [-raw] [-width n]

  Runs the pipeline in memory and prints the owed-candidate report.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "ledger.yaml", "Path to the run file")
	f.BoolVar(&c.raw, "raw", false, "Print markdown instead of rendering it")
	f.IntVar(&c.width, "width", 100, "Word wrap width of the rendered report")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	ctx, cfg, err := loadRun(ctx, c.config)
	if err != nil {
		return failf("%v", err)
	}

	state := &pipeline.PipelineState{ConfigPath: c.config, Config: cfg}
	if err := pipeline.NewAnalysisPipeline().Execute(ctx, state); err != nil {
		return failf("%v", err)
	}

	md := writer.OwedReportMarkdown(state.Report)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	out, err := render(md, c.width)
	if err != nil {
		return failf("render report: %v", err)
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

func render(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
