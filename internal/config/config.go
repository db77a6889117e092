// Package config loads the YAML run file that names the fiscal year, the
// statement sources and the evidence index of a year-end build.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
)

// Statement formats accepted in a run file.
const (
	FormatAuto     = "auto"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Config is a single year-end run.
type Config struct {
	FiscalYear       int               `yaml:"fiscal_year"`
	FiscalStart      string            `yaml:"fiscal_start"`
	FiscalEnd        string            `yaml:"fiscal_end"`
	DomesticCurrency string            `yaml:"domestic_currency"`
	Root             string            `yaml:"root"`
	Output           string            `yaml:"output"`
	EvidenceIndex    string            `yaml:"evidence_index"`
	Evidence         []string          `yaml:"evidence"`
	VendorHints      string            `yaml:"vendor_hints"`
	Rules            string            `yaml:"rules"`
	Statements       []StatementSource `yaml:"statements"`
	Log              LogConfig         `yaml:"log"`

	start civil.Date
	end   civil.Date
}

// StatementSource is one bank or card statement export.
type StatementSource struct {
	Path           string `yaml:"path"`
	Format         string `yaml:"format"`
	models.Account `yaml:",inline"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a run file. Relative paths inside it are resolved against the
// configured root, which itself is relative to the run file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(base, cfg.Root)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.DomesticCurrency == "" {
		c.DomesticCurrency = "CAD"
	}
	if c.Output == "" {
		c.Output = fmt.Sprintf("FY%d/normalized", c.FiscalYear)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	for i := range c.Statements {
		c.Statements[i].SetDefaults()
	}
	return c.setWindow()
}

// SetDefaults fills the format, owner and polarity left blank. CSV exports
// default to debit/credit columns, everything else to card polarity.
func (s *StatementSource) SetDefaults() {
	if s.Format == "" {
		s.Format = FormatAuto
	}
	if s.Owner == "" {
		s.Owner = models.OwnerCorporate
	}
	if s.Polarity == "" {
		if s.IsCSV() {
			s.Polarity = models.PolarityDebitCredit
		} else {
			s.Polarity = models.PolarityChargesPositive
		}
	}
}

// Check validates the enumerated fields of s without touching the filesystem.
func (s StatementSource) Check() error {
	switch s.Format {
	case FormatAuto, FormatCSV, FormatMarkdown:
	default:
		return fmt.Errorf("config: statement source %q: unknown format %q", s.Path, s.Format)
	}
	switch s.Owner {
	case models.OwnerCorporate, models.OwnerPersonal:
	default:
		return fmt.Errorf("config: statement source %q: unknown account_owner %q", s.Path, s.Owner)
	}
	switch s.Polarity {
	case models.PolarityDebitCredit, models.PolarityChargesPositive, models.PolaritySigned:
	default:
		return fmt.Errorf("config: statement source %q: unknown polarity %q", s.Path, s.Polarity)
	}
	return nil
}

func (c *Config) setWindow() error {
	start, end, err := FiscalWindow(c.FiscalYear, c.FiscalStart, c.FiscalEnd)
	if err != nil {
		return err
	}
	c.start, c.end = start, end
	return nil
}

// FiscalWindow returns the inclusive window for a fiscal year, defaulting to
// the calendar year. start and end are optional ISO dates.
func FiscalWindow(year int, start, end string) (civil.Date, civil.Date, error) {
	if year <= 0 {
		return civil.Date{}, civil.Date{}, errors.New("config: fiscal_year is required")
	}
	from := civil.Date{Year: year, Month: 1, Day: 1}
	to := civil.Date{Year: year, Month: 12, Day: 31}
	if start != "" {
		d, err := civil.ParseDate(start)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("config: fiscal_start: %w", err)
		}
		from = d
	}
	if end != "" {
		d, err := civil.ParseDate(end)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("config: fiscal_end: %w", err)
		}
		to = d
	}
	if to.Before(from) {
		return civil.Date{}, civil.Date{}, fmt.Errorf("config: fiscal window %s to %s is empty", from, to)
	}
	return from, to, nil
}

// Window returns the inclusive fiscal window.
func (c *Config) Window() (civil.Date, civil.Date) {
	return c.start, c.end
}

// IsCSV reports whether the source is a flat CSV export.
func (s StatementSource) IsCSV() bool {
	if s.Format == FormatCSV {
		return true
	}
	return s.Format == FormatAuto && strings.EqualFold(filepath.Ext(s.Path), ".csv")
}

// Validate checks the run file and that every named input exists.
func (c *Config) Validate() error {
	if !money.ValidCurrency(c.DomesticCurrency) {
		return fmt.Errorf("config: domestic_currency %q is not an ISO currency", c.DomesticCurrency)
	}
	if c.EvidenceIndex == "" {
		return errors.New("config: evidence_index is required")
	}
	if err := mustExist("evidence index", c.Resolve(c.EvidenceIndex)); err != nil {
		return err
	}
	if c.VendorHints != "" {
		if err := mustExist("vendor hints", c.Resolve(c.VendorHints)); err != nil {
			return err
		}
	}
	if c.Rules != "" {
		if err := mustExist("rules", c.Resolve(c.Rules)); err != nil {
			return err
		}
	}
	for i, s := range c.Statements {
		if s.Path == "" {
			return fmt.Errorf("config: statements[%d]: path is required", i)
		}
		if err := s.Check(); err != nil {
			return err
		}
		if err := mustExist(fmt.Sprintf("statement source %q", s.Path), c.Resolve(s.Path)); err != nil {
			return err
		}
	}
	return nil
}

func mustExist(what, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: %s: file does not exist", what)
	}
	if err != nil {
		return fmt.Errorf("config: %s: %w", what, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s: is a directory", what)
	}
	return nil
}

// Resolve turns a run-file path into a filesystem path.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// Rel returns p relative to the root with forward slashes, as recorded in
// source_file columns.
func (c *Config) Rel(p string) string {
	abs := c.Resolve(p)
	rel, err := filepath.Rel(c.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// EvidencePaths lists evidence files from the index followed by the explicit
// list, de-duplicated and in first-seen order. Blank lines and lines starting
// with '#' in the index are ignored.
func (c *Config) EvidencePaths() ([]string, error) {
	data, err := os.ReadFile(c.Resolve(c.EvidenceIndex))
	if err != nil {
		return nil, fmt.Errorf("config: evidence index: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			return
		}
		rel := c.Rel(p)
		if seen[rel] {
			return
		}
		seen[rel] = true
		out = append(out, rel)
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: evidence index: %w", err)
	}
	for _, p := range c.Evidence {
		add(p)
	}
	return out, nil
}
