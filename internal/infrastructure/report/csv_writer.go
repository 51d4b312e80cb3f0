// Package report writes reconciliation reports as CSV files.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

const (
	filePrefix      = "sync_report_"
	fileSuffix      = ".csv"
	tempPattern     = ".sync_report_*.tmp"
	timestampLayout = "2006-01-02_15-04-05.000"
	contentTypeCSV  = "text/csv"
)

// Header is the column row of every report
var Header = []string{
	"SKU",
	"Brand Name",
	"Item Name",
	"Flavor",
	"Weight (grams)",
	"EAN",
	"Price API",
	"Price Shopify",
	"Quantity",
}

// Mirror receives a copy of every finalized report
type Mirror interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// CSVWriter creates report files in a directory. Rows go to a hidden temporary
// file that is renamed into place on Finalize, so readers never see a partial report.
type CSVWriter struct {
	dir    string
	logger *zap.Logger
	mirror Mirror
}

// Option configures a CSVWriter
type Option func(*CSVWriter)

// WithMirror uploads finalized reports to m
func WithMirror(m Mirror) Option {
	return func(w *CSVWriter) {
		w.mirror = m
	}
}

// NewCSVWriter creates a writer rooted at dir, creating the directory if needed
func NewCSVWriter(dir string, logger *zap.Logger, opts ...Option) (*CSVWriter, error) {
	if dir == "" {
		return nil, errors.New("report: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &CSVWriter{dir: dir, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// FileName returns the finalized name of the report of a run.
// The UTC timestamp comes first so lexicographic order is chronological.
func FileName(tenant string, startedAt time.Time) string {
	return filePrefix + startedAt.UTC().Format(timestampLayout) + "_" + tenant + fileSuffix
}

// Create opens a new report for a run
func (w *CSVWriter) Create(ctx context.Context, tenant string, startedAt time.Time) (integration.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(w.dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("report: create temp file: %w", err)
	}

	r := &csvReport{
		writer:    w,
		file:      f,
		csv:       csv.NewWriter(f),
		tenant:    tenant,
		finalPath: filepath.Join(w.dir, FileName(tenant, startedAt)),
	}
	if err := r.csv.Write(Header); err != nil {
		_ = r.Discard()
		return nil, fmt.Errorf("report: write header: %w", err)
	}
	return r, nil
}

// Latest returns the path of the newest finalized report of tenant, or of any
// tenant when tenant is empty
func (w *CSVWriter) Latest(_ context.Context, tenant string) (string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", fmt.Errorf("report: read directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if tenant != "" && !strings.HasSuffix(name, "_"+tenant+fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", integration.ErrReportNotFound
	}
	sort.Strings(names)
	return filepath.Join(w.dir, names[len(names)-1]), nil
}

// csvReport is one open report file
type csvReport struct {
	writer    *CSVWriter
	file      *os.File
	csv       *csv.Writer
	tenant    string
	finalPath string
	rows      int

	mu   sync.Mutex
	done bool
}

// AppendRow writes one row
func (r *csvReport) AppendRow(row integration.ReconciliationRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return integration.ErrReportFinalized
	}
	if err := r.csv.Write(Record(row)); err != nil {
		return fmt.Errorf("report: write row: %w", err)
	}
	r.rows++
	return nil
}

// Finalize flushes the rows and publishes the file under its final name
func (r *csvReport) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return "", integration.ErrReportFinalized
	}
	r.done = true

	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		r.abort()
		return "", fmt.Errorf("report: flush: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		r.abort()
		return "", fmt.Errorf("report: sync: %w", err)
	}
	if err := r.file.Close(); err != nil {
		_ = os.Remove(r.file.Name())
		return "", fmt.Errorf("report: close: %w", err)
	}
	if err := os.Rename(r.file.Name(), r.finalPath); err != nil {
		_ = os.Remove(r.file.Name())
		return "", fmt.Errorf("report: publish: %w", err)
	}

	r.writer.logger.Info("Report finalized",
		zap.String("shop", r.tenant),
		zap.String("path", r.finalPath),
		zap.Int("rows", r.rows),
	)
	r.writer.upload(r.tenant, r.finalPath)
	return r.finalPath, nil
}

// Discard removes the temporary file. It is a no-op after Finalize.
func (r *csvReport) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	r.abort()
	return nil
}

func (r *csvReport) abort() {
	_ = r.file.Close()
	if err := os.Remove(r.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.writer.logger.Warn("Failed to remove temporary report", zap.String("path", r.file.Name()), zap.Error(err))
	}
}

// upload copies a finalized report to the mirror. Failures are logged only,
// the local file stays the source of truth.
func (w *CSVWriter) upload(tenant, path string) {
	if w.mirror == nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("Failed to read report for mirroring", zap.String("path", path), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	key := tenant + "/" + filepath.Base(path)
	if err := w.mirror.Upload(ctx, key, data, contentTypeCSV); err != nil {
		w.logger.Warn("Failed to mirror report", zap.String("key", key), zap.Error(err))
	}
}

// Record renders a row in column order. Absent fields are empty, prices have
// two decimals and weight is in grams without trailing zeros.
func Record(row integration.ReconciliationRow) []string {
	weight := ""
	if row.WeightGrams.Valid {
		weight = row.WeightGrams.Decimal.String()
	}
	computed := ""
	if row.ComputedPrice.Valid {
		computed = row.ComputedPrice.Decimal.StringFixed(2)
	}
	return []string{
		row.SKU,
		deref(row.Brand),
		row.ItemName,
		deref(row.Flavor),
		weight,
		deref(row.Barcode),
		row.SourcePrice.StringFixed(2),
		computed,
		strconv.Itoa(row.Quantity),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ integration.ReportWriter = (*CSVWriter)(nil)
