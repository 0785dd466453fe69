package tabular

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kbukum/etlflow/errors"
)

// Stats summarises one cleaning pass.
type Stats struct {
	Header      []string `json:"header"`
	RowsRead    int      `json:"rows_read"`
	RowsKept    int      `json:"rows_kept"`
	RowsDropped int      `json:"rows_dropped"`
}

// NAValues are the field values treated as missing, in addition to the empty string.
var NAValues = []string{
	"NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan",
	"null", "NULL", "None", "<NA>", "#N/A", "#NA",
	"1.#IND", "1.#QNAN", "-1.#IND", "-1.#QNAN",
}

var naSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(NAValues))
	for _, v := range NAValues {
		m[v] = struct{}{}
	}
	return m
}()

// IsMissing reports whether a field value counts as missing.
func IsMissing(field string) bool {
	field = strings.TrimSpace(field)
	if field == "" {
		return true
	}
	_, ok := naSet[field]
	return ok
}

// CleanReader copies r to w, dropping every data row that has a missing field.
// Rows with more fields than the header are rejected.
func CleanReader(r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return stats, apperrors.InvalidInput("source", "no header row")
		}
		return stats, fmt.Errorf("tabular: read header: %w", err)
	}
	stats.Header = header

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return stats, fmt.Errorf("tabular: write header: %w", err)
	}

	for {
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("tabular: read row %d: %w", stats.RowsRead+1, err)
		}
		stats.RowsRead++

		if len(row) > len(header) {
			line, _ := reader.FieldPos(0)
			return stats, apperrors.InvalidInput("source",
				fmt.Sprintf("line %d: expected %d fields, saw %d", line, len(header), len(row)))
		}
		if !complete(row, len(header)) {
			stats.RowsDropped++
			continue
		}
		if err := writer.Write(row); err != nil {
			return stats, fmt.Errorf("tabular: write row: %w", err)
		}
		stats.RowsKept++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, fmt.Errorf("tabular: flush: %w", err)
	}
	return stats, nil
}

func complete(row []string, width int) bool {
	if len(row) < width {
		return false
	}
	for _, f := range row {
		if IsMissing(f) {
			return false
		}
	}
	return true
}

// Clean reads the CSV file at src and writes its complete rows to dst.
// dst is replaced atomically; src and dst may be the same path.
func Clean(src, dst string) (Stats, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, apperrors.NotFound("source file", src).WithCause(err)
		}
		return Stats{}, fmt.Errorf("tabular: open source: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Stats{}, fmt.Errorf("tabular: create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return Stats{}, fmt.Errorf("tabular: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	stats, err := CleanReader(in, tmp)
	if err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, fmt.Errorf("tabular: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // output is a data file
		return stats, fmt.Errorf("tabular: chmod output: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return stats, fmt.Errorf("tabular: replace output: %w", err)
	}
	return stats, nil
}
