package stage

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Record is one staged article row. Column names are what the warehouse
// matches against, case-insensitively.
type Record struct {
	NewsTitle  string    `parquet:"newsTitle"`
	Timestamp  time.Time `parquet:"timestamp"`
	URLSource  string    `parquet:"url_source"`
	Content    string    `parquet:"content"`
	Source     string    `parquet:"source"`
	Author     *string   `parquet:"author,optional"`
	URLToImage string    `parquet:"urlToImage"`
}

// Column describes one column of a staged file, as schema inference sees it.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Encode writes rows to w as a single Parquet file.
func Encode(w io.Writer, rows []Record) error {
	writer := parquet.NewGenericWriter[Record](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(rows []Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads every row of a Parquet file.
func Decode(r io.ReaderAt, size int64) ([]Record, error) {
	rows, err := parquet.Read[Record](r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}
	return rows, nil
}

// DecodeBytes is Decode over an in-memory file.
func DecodeBytes(data []byte) ([]Record, error) {
	return Decode(bytes.NewReader(data), int64(len(data)))
}

// InferColumns reads the schema of a Parquet file without decoding its rows.
func InferColumns(data []byte) ([]Column, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	fields := f.Schema().Fields()
	cols := make([]Column, 0, len(fields))
	for _, field := range fields {
		cols = append(cols, Column{
			Name:     field.Name(),
			Type:     field.Type().String(),
			Nullable: field.Optional(),
		})
	}
	return cols, nil
}
