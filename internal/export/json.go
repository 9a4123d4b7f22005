package export

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// nopWriteCloser lets an uncompressed file share the compressed code path
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// compressionWriter returns the writer for the given JSON format
func compressionWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case FormatJSON:
		return nopWriteCloser{w}, nil
	case FormatJSONGzip:
		return gzip.NewWriter(w), nil
	case FormatJSONZstd:
		return zstd.NewWriter(w)
	case FormatJSONLz4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", format)
	}
}

// compressionReader returns the reader matching a JSON format, used to read
// exports back
func compressionReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case FormatJSON:
		return io.NopCloser(r), nil
	case FormatJSONGzip:
		return gzip.NewReader(r)
	case FormatJSONZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case FormatJSONLz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", format)
	}
}

func writeJSON(path string, format Format, records []domain.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cw, err := compressionWriter(file, format)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cw)
	encoder.SetIndent("", "  ")
	if records == nil {
		records = []domain.Record{}
	}
	if err := encoder.Encode(records); err != nil {
		cw.Close()
		return err
	}

	if err := cw.Close(); err != nil {
		return err
	}
	return file.Close()
}

// ReadJSON loads records from a file written by Write in one of the JSON formats
func ReadJSON(path string) ([]domain.Record, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := compressionReader(file, format)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var records []domain.Record
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}
