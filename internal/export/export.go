package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Format identifies an output file format
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatJSONGzip Format = "json.gz"
	FormatJSONZstd Format = "json.zst"
	FormatJSONLz4  Format = "json.lz4"
	FormatXLSX     Format = "xlsx"
)

// Result represents the result of an export operation
type Result struct {
	Format      Format
	Path        string
	RecordCount int
	ExportedAt  time.Time
}

// FormatFor determines the output format from the file name
func FormatFor(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json.gz"), strings.HasSuffix(name, ".json.gzip"):
		return FormatJSONGzip, nil
	case strings.HasSuffix(name, ".json.zst"):
		return FormatJSONZstd, nil
	case strings.HasSuffix(name, ".json.lz4"):
		return FormatJSONLz4, nil
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(name, ".xlsx"):
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export file %q: use .csv, .json, .json.gz, .json.zst, .json.lz4 or .xlsx", path)
	}
}

// Write exports records to path in the format given by its extension,
// creating the parent directory when needed
func Write(path string, records []domain.Record) (*Result, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	switch format {
	case FormatCSV:
		err = writeCSV(path, records)
	case FormatXLSX:
		err = writeXLSX(path, records)
	default:
		err = writeJSON(path, format, records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", path, err)
	}

	return &Result{
		Format:      format,
		Path:        path,
		RecordCount: len(records),
		ExportedAt:  time.Now(),
	}, nil
}
