// Package transform turns uploaded tabular bytes plus an optional
// natural-language instruction into annotated output bytes and the raw
// interpretation response.
package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rowforge/rowforge/internal/ai"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/xuri/excelize/v2"
)

var (
	ErrMalformedInput    = errors.New("malformed tabular input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// DoneColumn is appended to every processed row with value "true".
const DoneColumn = "done"

// Format identifies a supported tabular file format. Output always keeps
// the format of the input.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a file name to its format by extension.
func DetectFormat(fileName string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	}
	return "", false
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type the format is served with.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Result is the output of one transform.
type Result struct {
	Output        []byte
	ModelResponse string // empty when no instruction was given
}

// Transformer applies the annotation pipeline: parse, interpret, append the
// status column, serialize. The interpretation call is bounded by timeout
// and never retried here; retry policy belongs to the caller.
type Transformer struct {
	interpreter models.Interpreter
	timeout     time.Duration
}

// New creates a Transformer. timeout bounds each interpretation call.
func New(interpreter models.Interpreter, timeout time.Duration) *Transformer {
	return &Transformer{interpreter: interpreter, timeout: timeout}
}

// Run executes the transform. Input must carry a header row; output stays
// in the input's format. A failed or timed-out interpretation aborts the
// transform — the status column is only written to output the user asked
// for.
func (t *Transformer) Run(ctx context.Context, input []byte, format Format, instruction string) (*Result, error) {
	header, rows, err := parse(input, format)
	if err != nil {
		return nil, err
	}

	var response string
	if instruction != "" {
		ictx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		response, err = t.interpreter.Interpret(ictx, models.InterpretRequest{
			Columns:     header,
			Instruction: instruction,
		})
		if err != nil {
			return nil, ai.Classify(err)
		}
	}

	output, err := serialize(header, rows, format)
	if err != nil {
		return nil, err
	}

	return &Result{Output: output, ModelResponse: response}, nil
}

func parse(input []byte, format Format) ([]string, [][]string, error) {
	switch format {
	case FormatCSV:
		return parseCSV(input)
	case FormatXLSX:
		return parseXLSX(input)
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func serialize(header []string, rows [][]string, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return serializeCSV(header, rows)
	case FormatXLSX:
		return serializeXLSX(header, rows)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// parseCSV reads CSV bytes into a header and data rows. Any parse failure,
// including ragged rows, is malformed input; no partial result escapes.
func parseCSV(input []byte) (header []string, rows [][]string, err error) {
	r := csv.NewReader(bytes.NewReader(input))

	header, err = r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// parseXLSX reads the first sheet of a workbook. The reader trims trailing
// empty cells, so short rows are padded back to the header width.
func parseXLSX(input []byte) (header []string, rows [][]string, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(input))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(all) == 0 || len(all[0]) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	header = all[0]
	for _, row := range all[1:] {
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// serializeCSV writes the table back to CSV with the status column appended
// to the header and to every row.
func serializeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(append(append([]string{}, header...), DoneColumn)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(append(append([]string{}, row...), "true")); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing output: %w", err)
	}
	return buf.Bytes(), nil
}

// serializeXLSX writes the table to a single-sheet workbook with the status
// column appended.
func serializeXLSX(header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	out := append(append([]string{}, header...), DoneColumn)
	if err := f.SetSheetRow(sheet, "A1", &out); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
		out := append(append([]string{}, row...), "true")
		if err := f.SetSheetRow(sheet, cell, &out); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("flushing output: %w", err)
	}
	return buf.Bytes(), nil
}
