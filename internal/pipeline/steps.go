// Package pipeline runs a year-end build as a fixed sequence of steps.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/KitsFC/kefelan-year-end/internal/classifier"
	"github.com/KitsFC/kefelan-year-end/internal/config"
	"github.com/KitsFC/kefelan-year-end/internal/evidence"
	"github.com/KitsFC/kefelan-year-end/internal/linker"
	"github.com/KitsFC/kefelan-year-end/internal/logger"
	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/parser"
	"github.com/KitsFC/kefelan-year-end/internal/reconciler"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
	"github.com/KitsFC/kefelan-year-end/internal/sink"
	"github.com/KitsFC/kefelan-year-end/internal/writer"
)

// PipelineStep represents a single step in the build pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	ConfigPath string
	Config     *config.Config
	Rules      *rules.Rules
	Hints      *rules.VendorHints

	Documents  []models.Document
	Statements []*models.Statement
	// Matching is every parsed transaction, personal candidates included.
	Matching []*models.Transaction
	// Ledger is the subset written to transactions.csv.
	Ledger      []*models.Transaction
	LinkStats   linker.Stats
	Allocations []models.Allocation
	Assets      []models.Asset
	Report      reconciler.Report

	// Sink overrides the configured output location when set.
	Sink sink.Sink
}

// Step 1: LoadConfigStep reads and validates the run file and rule tables.
type LoadConfigStep struct{}

func (s *LoadConfigStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	if state.Config == nil {
		cfg, err := config.Load(state.ConfigPath)
		if err != nil {
			return err
		}
		state.Config = cfg
	}
	cfg := state.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	state.Rules = rules.Default()
	if cfg.Rules != "" {
		r, err := rules.Load(cfg.Resolve(cfg.Rules))
		if err != nil {
			return err
		}
		state.Rules = r
	}

	if cfg.VendorHints != "" {
		f, err := os.Open(cfg.Resolve(cfg.VendorHints))
		if err != nil {
			return fmt.Errorf("vendor hints: %w", err)
		}
		defer f.Close()
		hints, err := state.Rules.LoadVendorHints(f)
		if err != nil {
			return err
		}
		state.Hints = hints
	}

	start, end := cfg.Window()
	log.Info().
		Int("fiscal_year", cfg.FiscalYear).
		Str("start", start.String()).
		Str("end", end.String()).
		Int("statements", len(cfg.Statements)).
		Int("vendor_hints", state.Hints.Len()).
		Msg("run configured")
	return nil
}

// Step 2: ExtractDocumentsStep extracts every evidence file.
type ExtractDocumentsStep struct{}

func (s *ExtractDocumentsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	cfg := state.Config

	paths, err := cfg.EvidencePaths()
	if err != nil {
		return err
	}
	ex := evidence.New(state.Rules, cfg.DomesticCurrency, log)

	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		doc := ex.ExtractFile(cfg.Resolve(p), p)
		if len(doc.Notes) > 0 {
			log.Debug().Str("source", p).Str("notes", doc.Notes.String()).Msg("document incomplete")
		}
		docs = append(docs, doc)
	}
	sortDocuments(docs)
	state.Documents = docs

	log.Info().Int("documents", len(docs)).Msg("evidence extracted")
	return nil
}

// Step 3: ParseStatementsStep parses every statement source.
type ParseStatementsStep struct{}

func (s *ParseStatementsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	cfg := state.Config
	start, end := cfg.Window()
	p := parser.New(state.Rules)

	state.Statements = nil
	state.Matching = nil
	for _, src := range cfg.Statements {
		data, err := os.ReadFile(cfg.Resolve(src.Path))
		if err != nil {
			return fmt.Errorf("statement source %q: %w", src.Path, err)
		}
		st, err := p.Parse(parser.Source{
			Path:       cfg.Rel(src.Path),
			Data:       data,
			Format:     src.Format,
			Account:    src.Account,
			FiscalYear: cfg.FiscalYear,
			Start:      start,
			End:        end,
			Domestic:   cfg.DomesticCurrency,
		})
		if err != nil {
			return err
		}
		for _, d := range st.Diagnostics {
			log.Warn().
				Str("source", st.SourceFile).
				Str("locator", d.Locator).
				Str("reason", d.Reason).
				Str("text", d.Text).
				Msg("statement row skipped")
		}
		log.Info().
			Str("source", st.SourceFile).
			Int("transactions", len(st.Transactions)).
			Int("outside_window", st.Outside).
			Int("diagnostics", len(st.Diagnostics)).
			Msg("statement parsed")

		state.Statements = append(state.Statements, st)
		state.Matching = append(state.Matching, st.Transactions...)
	}
	sortTransactions(state.Matching)
	return nil
}

// Step 4: LinkStep links transactions to evidence.
type LinkStep struct{}

func (s *LinkStep) Execute(ctx context.Context, state *PipelineState) error {
	l := linker.New(state.Rules, state.Config.DomesticCurrency, state.Documents)
	state.LinkStats = l.LinkAll(state.Matching)

	log := logger.FromContext(ctx)
	ev := log.Info()
	for _, status := range []models.ReceiptStatus{
		models.ReceiptFound, models.ReceiptAmbiguous, models.ReceiptMissing, models.ReceiptNotApplicable,
	} {
		ev = ev.Int(string(status), state.LinkStats[status])
	}
	ev.Msg("transactions linked")
	return nil
}

// Step 5: SelectLedgerStep keeps corporate transactions and personal ones
// backed by evidence.
type SelectLedgerStep struct{}

func (s *SelectLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Ledger = state.Ledger[:0]
	for _, tx := range state.Matching {
		if inLedger(tx) {
			state.Ledger = append(state.Ledger, tx)
		}
	}
	sortTransactions(state.Ledger)
	log := logger.FromContext(ctx)
	log.Info().
		Int("ledger", len(state.Ledger)).
		Int("matching", len(state.Matching)).
		Msg("ledger selected")
	return nil
}

func inLedger(tx *models.Transaction) bool {
	if tx.AccountOwner != models.OwnerPersonal {
		return true
	}
	return tx.ReceiptStatus == models.ReceiptFound || tx.ReceiptStatus == models.ReceiptAmbiguous
}

// Step 6: ClassifyStep allocates every ledger transaction.
type ClassifyStep struct{}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	c := classifier.New(state.Rules, state.Hints, state.Config.DomesticCurrency)
	byID := make(map[string]*models.Document, len(state.Documents))
	for i := range state.Documents {
		byID[state.Documents[i].ID] = &state.Documents[i]
	}

	state.Allocations = make([]models.Allocation, 0, len(state.Ledger))
	state.Assets = nil
	for _, tx := range state.Ledger {
		a := c.Allocate(tx, byID)
		state.Allocations = append(state.Allocations, a)
		if asset, ok := c.Asset(tx, a); ok {
			state.Assets = append(state.Assets, asset)
		}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int("allocations", len(state.Allocations)).
		Int("assets", len(state.Assets)).
		Msg("transactions classified")
	return nil
}

// Step 7: ReconcileStep builds the owed-candidate report from the full
// matching set.
type ReconcileStep struct{}

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	cfg := state.Config
	state.Report = reconciler.Reconcile(cfg.FiscalYear, cfg.DomesticCurrency, state.Documents, state.Matching)
	log := logger.FromContext(ctx)
	log.Info().
		Int("invoices", state.Report.Scanned).
		Int("candidates", len(state.Report.Candidates)).
		Int("foreign", len(state.Report.Foreign)).
		Msg("invoices reconciled")
	return nil
}

// Step 8: WriteOutputsStep writes every table and the report.
type WriteOutputsStep struct{}

func (s *WriteOutputsStep) Execute(ctx context.Context, state *PipelineState) error {
	out := state.Sink
	if out == nil {
		target := state.Config.Output
		if !strings.HasPrefix(target, "gs://") {
			target = state.Config.Resolve(target)
		}
		opened, err := sink.Open(ctx, target)
		if err != nil {
			return err
		}
		if closer, ok := opened.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		out = opened
	}

	tables := []writer.Table{
		writer.Documents(state.Documents),
		writer.Transactions(state.Ledger),
		writer.Allocations(state.Allocations),
		writer.Assets(state.Assets),
		writer.OwedCandidates(state.Report),
	}
	for _, t := range tables {
		data, err := writer.Bytes(t)
		if err != nil {
			return err
		}
		if err := out.Put(ctx, t.Name, data); err != nil {
			return err
		}
	}
	report := writer.OwedReportMarkdown(state.Report)
	if err := out.Put(ctx, writer.ReportFile, []byte(report)); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("output", out.Location()).Int("files", len(tables)+1).Msg("outputs written")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewAnalysisPipeline runs everything except writing outputs.
func NewAnalysisPipeline() *Pipeline {
	return NewPipeline(
		&LoadConfigStep{},
		&ExtractDocumentsStep{},
		&ParseStatementsStep{},
		&LinkStep{},
		&SelectLedgerStep{},
		&ClassifyStep{},
		&ReconcileStep{},
	)
}

// NewBuildPipeline creates the standard 8-step build pipeline.
func NewBuildPipeline() *Pipeline {
	p := NewAnalysisPipeline()
	p.steps = append(p.steps, &WriteOutputsStep{})
	return p
}

func sortDocuments(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if c := models.Compare(docs[i].Date, docs[j].Date); c != 0 {
			return c < 0
		}
		return docs[i].ID < docs[j].ID
	})
}

func sortTransactions(txs []*models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if c := models.Compare(txs[i].Date, txs[j].Date); c != 0 {
			return c < 0
		}
		return txs[i].ID < txs[j].ID
	})
}
