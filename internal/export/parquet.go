package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// Write encodes rows as one Parquet file to w and returns the number of
// rows written.
func Write(w io.Writer, rows []ProductRow, opts Options) (int, error) {
	writer := parquet.NewGenericWriter[ProductRow](w, parquet.Compression(codec(opts.Compression)))

	n, err := writer.Write(rows)
	if err != nil {
		writer.Close()
		return n, fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("close writer: %w", err)
	}
	return n, nil
}

// WriteFile writes rows to path, creating parent directories.
func WriteFile(path string, rows []ProductRow, opts Options) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := Write(f, rows, opts)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

// Read decodes every row of a Parquet snapshot.
func Read(r io.ReaderAt, size int64) ([]ProductRow, error) {
	if _, err := parquet.OpenFile(r, size); err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[ProductRow](io.NewSectionReader(r, 0, size))
	defer reader.Close()

	rows := make([]ProductRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}

// ReadFile reads a snapshot from path.
func ReadFile(path string) ([]ProductRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return Read(f, stat.Size())
}
