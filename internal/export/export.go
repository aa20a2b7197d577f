// Package export renders query results as downloadable files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/askdb/askdb/internal/query"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

const baseFileName = "query_results"

// ParseFormat accepts a format name case-insensitively; blank means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

func (f Format) Extension() string { return string(f) }

func (f Format) FileName() string { return baseFileName + "." + f.Extension() }

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Encode writes result to w in the given format.
func Encode(w io.Writer, format Format, result query.Result) error {
	switch format {
	case FormatCSV:
		return encodeCSV(w, result)
	case FormatXLSX:
		return encodeXLSX(w, result)
	case FormatParquet:
		return encodeParquet(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func encodeCSV(w io.Writer, result query.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = FormatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func encodeXLSX(w io.Writer, result query.Result) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(file.GetActiveSheetIndex())
	header := make([]any, len(result.Columns))
	for i, column := range result.Columns {
		header[i] = column
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range result.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell for row %d: %w", i, err)
		}
		values := make([]any, len(row))
		for j, value := range row {
			values[j] = xlsxValue(value)
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i, err)
		}
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func xlsxValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return typed
	default:
		return FormatValue(typed)
	}
}

// parquetCell is one result cell. Query columns are only known at runtime, so
// results are written in long form: one row per cell, values as text.
type parquetCell struct {
	RowIndex    int64   `parquet:"row_index"`
	ColumnIndex int32   `parquet:"column_index"`
	ColumnName  string  `parquet:"column_name"`
	Value       *string `parquet:"value,optional"`
}

func encodeParquet(w io.Writer, result query.Result) error {
	cells := make([]parquetCell, 0, len(result.Rows)*len(result.Columns))
	for rowIndex, row := range result.Rows {
		for columnIndex, column := range result.Columns {
			cell := parquetCell{RowIndex: int64(rowIndex), ColumnIndex: int32(columnIndex), ColumnName: column}
			if columnIndex < len(row) && row[columnIndex] != nil {
				value := FormatValue(row[columnIndex])
				cell.Value = &value
			}
			cells = append(cells, cell)
		}
	}

	writer := parquet.NewGenericWriter[parquetCell](w)
	if len(cells) > 0 {
		if _, err := writer.Write(cells); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// FormatValue renders a scanned value as text. NULL becomes the empty string.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.DateTime)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}
