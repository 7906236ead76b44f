package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"flyer-vessel-viz/vessel"
)

var tableHeader = []string{"key", "label", "value", "last_update"}

var recordHeader = []string{"iso8601", "ts_ms", "seq", "source", "key", "value", "unit"}

// WriteTable writes rows as CSV in the order given, preceded by a header.
func WriteTable(w io.Writer, rows []vessel.FormattedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Key, r.Label, r.Value, r.LastUpdate}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVWriter appends every applied record to a CSV file.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens path for appending, creating it and its directory when
// missing. A header is written to empty files.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create record log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}

	w := &CSVWriter{file: f, writer: csv.NewWriter(f)}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := w.writer.Write(recordHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.writer.Flush()
	}
	return w, nil
}

// WriteBatch appends one row per record of b.
func (w *CSVWriter) WriteBatch(b Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range b.Records {
		row := []string{
			rec.ObservedAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(rec.ObservedAt.UnixMilli(), 10),
			strconv.FormatUint(b.Seq, 10),
			b.Source,
			rec.Key,
			strconv.FormatFloat(rec.Value, 'g', -1, 64),
			string(rec.Unit),
		}
		if err := w.writer.Write(row); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
