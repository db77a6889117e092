// Package api exposes single-file extraction, statement parsing and
// classification over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/classifier"
	"github.com/KitsFC/kefelan-year-end/internal/config"
	"github.com/KitsFC/kefelan-year-end/internal/evidence"
	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/money"
	"github.com/KitsFC/kefelan-year-end/internal/parser"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
	"github.com/KitsFC/kefelan-year-end/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// maxUpload caps multipart uploads.
const maxUpload = 32 << 20

// ExtractResponse is the JSON response from /api/extract.
type ExtractResponse struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Document *models.Document `json:"document,omitempty"`
}

// ParseResponse is the JSON response from /api/parse.
type ParseResponse struct {
	Success      bool                  `json:"success"`
	Error        string                `json:"error,omitempty"`
	SourceFile   string                `json:"sourceFile,omitempty"`
	Transactions []*models.Transaction `json:"transactions"`
	Diagnostics  []models.Diagnostic   `json:"diagnostics,omitempty"`
	Periods      []models.Period       `json:"periods,omitempty"`
	Outside      int                   `json:"outsideWindow"`
	CSV          string                `json:"csv,omitempty"`
	TotalOutflow string                `json:"totalOutflow"`
	TotalInflow  string                `json:"totalInflow"`
	Count        int                   `json:"count"`
}

// ClassifyRequest carries one transaction and the documents it may link to.
type ClassifyRequest struct {
	Transaction models.Transaction `json:"transaction"`
	Documents   []models.Document  `json:"documents"`
}

// ClassifyResponse is the JSON response from /api/classify.
type ClassifyResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Allocation *models.Allocation `json:"allocation,omitempty"`
	Asset      *models.Asset      `json:"asset,omitempty"`
}

// Handler holds the rule tables shared by every request.
type Handler struct {
	Rules    *rules.Rules
	Hints    *rules.VendorHints
	Domestic string
	Log      zerolog.Logger
}

// NewHandler returns a Handler using the built-in rules and CAD.
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{Rules: rules.Default(), Domestic: "CAD", Log: log}
}

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             maxUpload,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(h.requestLogger())

	app.Get("/api/health", HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
	app.Post("/api/parse", h.HandleParse)
	app.Post("/api/classify", h.HandleClassify)
	return app
}

// HandleHealth reports liveness.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

// HandleExtract turns one uploaded evidence file into a Document.
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}

	// The extractor reads from disk so PDFs can go through the text layer.
	tmp, err := saveTemp(fh)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save uploaded file.")
	}
	defer os.Remove(tmp)

	ex := evidence.New(h.Rules, h.Domestic, h.Log)
	doc := ex.ExtractFile(tmp, filepath.Base(fh.Filename))
	return c.JSON(ExtractResponse{Success: true, Document: &doc})
}

// HandleParse parses one uploaded statement export. The account is described
// by form fields named like the run file keys.
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	data, err := readUpload(fh)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}

	year, err := strconv.Atoi(c.FormValue("fiscal_year"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "fiscal_year must be a year, e.g. 2025")
	}
	start, end, err := config.FiscalWindow(year, c.FormValue("fiscal_start"), c.FormValue("fiscal_end"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	src := config.StatementSource{
		Path:   filepath.Base(fh.Filename),
		Format: c.FormValue("format"),
		Account: models.Account{
			Owner:         models.AccountOwner(c.FormValue("account_owner")),
			Name:          c.FormValue("account_name"),
			PaymentMethod: c.FormValue("payment_method"),
			CardLast4:     c.FormValue("card_last4"),
			Polarity:      models.Polarity(c.FormValue("polarity")),
		},
	}
	src.SetDefaults()
	if err := src.Check(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	st, err := parser.New(h.Rules).Parse(parser.Source{
		Path:       src.Path,
		Data:       data,
		Format:     src.Format,
		Account:    src.Account,
		FiscalYear: year,
		Start:      start,
		End:        end,
		Domestic:   h.Domestic,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("Parsing failed: %v", err))
	}

	var csvBuf bytes.Buffer
	w := &writer.CSVWriter{IncludeHeader: c.FormValue("header") != "false"}
	if err := w.Write(&csvBuf, writer.Transactions(st.Transactions)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
	}

	outflow, inflow := decimal.Zero, decimal.Zero
	for _, tx := range st.Transactions {
		if tx.IsOutflow() {
			outflow = outflow.Add(tx.CADAmount.Abs())
		} else {
			inflow = inflow.Add(tx.CADAmount)
		}
	}

	// nil marshals to null, not []
	txns := st.Transactions
	if txns == nil {
		txns = []*models.Transaction{}
	}
	return c.JSON(ParseResponse{
		Success:      true,
		SourceFile:   st.SourceFile,
		Transactions: txns,
		Diagnostics:  st.Diagnostics,
		Periods:      st.Periods,
		Outside:      st.Outside,
		CSV:          csvBuf.String(),
		TotalOutflow: money.Format(outflow),
		TotalInflow:  money.Format(inflow),
		Count:        len(txns),
	})
}

// HandleClassify allocates a single transaction. Linked documents found in
// the request contribute their sales tax.
func (h *Handler) HandleClassify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	tx := &req.Transaction
	if strings.TrimSpace(tx.Description) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "transaction.description is required")
	}
	if tx.AccountOwner == "" {
		tx.AccountOwner = models.OwnerCorporate
	}
	if tx.CADAmount.IsZero() && !tx.Amount.IsZero() {
		tx.CADAmount = tx.Amount
	}

	docs := make(map[string]*models.Document, len(req.Documents))
	for i := range req.Documents {
		docs[req.Documents[i].ID] = &req.Documents[i]
	}

	cl := classifier.New(h.Rules, h.Hints, h.Domestic)
	alloc := cl.Allocate(tx, docs)
	resp := ClassifyResponse{Success: true, Allocation: &alloc}
	if asset, ok := cl.Asset(tx, alloc); ok {
		resp.Asset = &asset
	}
	return c.JSON(resp)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
}

func (h *Handler) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		ev := h.Log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = h.Log.Error()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// saveTemp copies an upload to a temp file that keeps the original extension.
func saveTemp(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	tmp, err := os.CreateTemp("", "evidence-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
