// Package ingest loads forensic tool CSV exports from a directory into a
// record store. Column names are normalized here, at the ingestion boundary;
// nothing downstream renames columns.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// Config holds ingestion settings.
type Config struct {
	// Directory to scan for *.csv files.
	Directory string `yaml:"directory"`
	// MaxRows caps rows read per file; 0 means unlimited.
	MaxRows int `yaml:"max_rows"`
}

// Stats reports what a Load pass did.
type Stats struct {
	FilesFound  int `json:"files_found"`
	FilesLoaded int `json:"files_loaded"`
	RowsLoaded  int `json:"rows_loaded"`
}

// Ingester loads CSV exports into a records.Store.
type Ingester struct {
	config Config
	logger *zap.Logger
	stats  Stats
}

// NewIngester returns an ingester for the configured directory.
func NewIngester(cfg Config, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{config: cfg, logger: logger}
}

// Stats returns the counters from the last Load.
func (ing *Ingester) Stats() Stats { return ing.stats }

// Load discovers and parses every CSV in the directory, keyed by file stem.
// Files are loaded in sorted name order so the store's iteration order is
// reproducible. Individual file failures are logged and skipped; only a
// missing directory is an error. An empty directory yields an empty store.
func (ing *Ingester) Load() (*records.Store, error) {
	ing.stats = Stats{}

	pattern := filepath.Join(ing.config.Directory, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("discovering csv files: %w", err)
	}
	if _, err := os.Stat(ing.config.Directory); err != nil {
		return nil, fmt.Errorf("csv directory: %w", err)
	}
	sort.Strings(files)
	ing.stats.FilesFound = len(files)

	store := records.NewStore()
	for _, path := range files {
		ds, err := ing.loadFile(path)
		if err != nil {
			ing.logger.Warn("skipping csv file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		if err := store.Add(ds); err != nil {
			ing.logger.Warn("skipping dataset", zap.String("path", path), zap.Error(err))
			continue
		}
		ing.stats.FilesLoaded++
		ing.stats.RowsLoaded += ds.Len()
		ing.logger.Info("loaded csv",
			zap.String("source", ds.Name),
			zap.Int("rows", ds.Len()),
			zap.Int("columns", len(ds.Columns)),
		)
	}
	return store, nil
}

// loadFile parses a single CSV into a dataset named by the file stem.
func (ing *Ingester) loadFile(path string) (*records.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(decoded))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1 // tolerate ragged exports; rows are padded below

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ds := records.NewDataset(name, uniqueColumns(header))

	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", ds.Len()+1, err)
		}
		row := make(records.Row, len(ds.Columns))
		for i, col := range ds.Columns {
			if i < len(fields) {
				row[col] = coerce(fields[i])
			}
		}
		ds.Append(row)
		if ing.config.MaxRows > 0 && ds.Len() >= ing.config.MaxRows {
			ing.logger.Warn("row cap reached",
				zap.String("source", name),
				zap.Int("max_rows", ing.config.MaxRows),
			)
			break
		}
	}
	return ds, nil
}

// decodeCharset returns valid UTF-8 text, retrying single-byte decoders for
// the encodings forensic tools commonly emit.
func decodeCharset(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, dec := range []*encoding.Decoder{
		charmap.ISO8859_1.NewDecoder(),
		charmap.Windows1252.NewDecoder(),
	} {
		out, err := dec.Bytes(data)
		if err == nil && utf8.Valid(out) {
			return string(out), nil
		}
	}
	return "", fmt.Errorf("undecodable character encoding")
}

// coerce maps a raw field to the closed value variant: empty → null,
// numeric-looking → number, otherwise text.
func coerce(field string) records.Value {
	trimmed := strings.TrimSpace(field)
	if trimmed == "" {
		return records.Null()
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		// Preserve values like "007" or "1e3" verbatim; only plain decimal
		// renderings round-trip as numbers.
		if records.Number(n).Text() == trimmed {
			return records.Number(n)
		}
	}
	return records.Text(field)
}

// uniqueColumns normalizes header names and disambiguates duplicates with a
// numeric suffix so rows keep one value per column.
func uniqueColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, 0, len(header))
	for i, h := range header {
		col := records.NormalizeColumn(h)
		if col == "" {
			col = fmt.Sprintf("column_%d", i)
		}
		if n, dup := seen[col]; dup {
			seen[col] = n + 1
			col = fmt.Sprintf("%s_%d", col, n+1)
		}
		seen[col]++
		out = append(out, col)
	}
	return out
}
