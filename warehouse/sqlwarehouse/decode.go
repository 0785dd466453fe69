package sqlwarehouse

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/etlflow/warehouse"
)

// Column types inferred by autodetect.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeBoolean = "BOOLEAN"
	TypeText    = "TEXT"
)

type column struct {
	name string
	typ  string
}

// tableData holds decoded rows as strings; nil means NULL.
type tableData struct {
	columns []column
	rows    [][]*string
}

func decode(r io.Reader, job warehouse.LoadJob) (*tableData, error) {
	var (
		data *tableData
		err  error
	)
	switch job.SourceFormat {
	case warehouse.FormatJSON:
		data, err = decodeJSON(r)
	default:
		data, err = decodeCSV(r, job.SkipLeadingRows, job.Autodetect)
	}
	if err != nil {
		return nil, err
	}
	data.inferTypes(job.Autodetect)
	return data, nil
}

// decodeCSV skips the leading rows; with autodetect, the last skipped row
// supplies the column names. Otherwise columns are named string_field_N.
func decodeCSV(r io.Reader, skip int, autodetect bool) (*tableData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var header []string
	for i := 0; i < skip; i++ {
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		header = row
	}

	data := &tableData{}
	for {
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if data.columns == nil {
			data.columns = columnNames(header, len(row), autodetect)
		}
		if len(row) != len(data.columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(data.columns), len(row))
		}
		values := make([]*string, len(row))
		for i, f := range row {
			if f != "" {
				values[i] = &row[i]
			}
		}
		data.rows = append(data.rows, values)
	}
	if data.columns == nil {
		data.columns = columnNames(header, len(header), autodetect)
	}
	return data, nil
}

func columnNames(header []string, width int, autodetect bool) []column {
	cols := make([]column, width)
	for i := range cols {
		name := fmt.Sprintf("string_field_%d", i)
		if autodetect && i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		cols[i] = column{name: name, typ: TypeText}
	}
	return cols
}

// decodeJSON reads one object per line; the columns are the sorted union of keys.
func decodeJSON(r io.Reader) (*tableData, error) {
	var objects []map[string]any
	keys := map[string]struct{}{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for k := range obj {
			keys[k] = struct{}{}
		}
		objects = append(objects, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	data := &tableData{columns: make([]column, len(names))}
	for i, n := range names {
		data.columns[i] = column{name: n, typ: TypeText}
	}
	for _, obj := range objects {
		values := make([]*string, len(names))
		for i, n := range names {
			v, ok := obj[n]
			if !ok || v == nil {
				continue
			}
			var s string
			switch tv := v.(type) {
			case string:
				s = tv
			case json.Number:
				s = tv.String()
			case bool:
				s = strconv.FormatBool(tv)
			default:
				b, err := json.Marshal(tv)
				if err != nil {
					return nil, err
				}
				s = string(b)
			}
			values[i] = &s
		}
		data.rows = append(data.rows, values)
	}
	return data, nil
}

// inferTypes narrows each column to the most specific type all its non-NULL
// values parse as. Without autodetect every column stays TEXT.
func (d *tableData) inferTypes(autodetect bool) {
	if !autodetect {
		return
	}
	for i := range d.columns {
		candidates := []string{TypeInteger, TypeReal, TypeBoolean}
		seen := false
		for _, row := range d.rows {
			if row[i] == nil {
				continue
			}
			seen = true
			v := strings.TrimSpace(*row[i])
			candidates = slices.DeleteFunc(candidates, func(typ string) bool {
				return !parses(typ, v)
			})
			if len(candidates) == 0 {
				break
			}
		}
		if seen && len(candidates) > 0 {
			d.columns[i].typ = candidates[0]
		}
	}
}

func parses(typ, v string) bool {
	switch typ {
	case TypeInteger:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case TypeReal:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	case TypeBoolean:
		_, err := strconv.ParseBool(strings.ToLower(v))
		return err == nil && !strings.ContainsAny(v, "01")
	}
	return false
}

// appendFrom adds other's rows; the column names must match.
func (d *tableData) appendFrom(other *tableData) error {
	if len(other.columns) != len(d.columns) {
		return fmt.Errorf("schema mismatch: %d columns, expected %d", len(other.columns), len(d.columns))
	}
	for i, c := range other.columns {
		if c.name != d.columns[i].name {
			return fmt.Errorf("schema mismatch: column %d is %q, expected %q", i, c.name, d.columns[i].name)
		}
		if c.typ != d.columns[i].typ {
			d.columns[i].typ = widen(d.columns[i].typ, c.typ)
		}
	}
	d.rows = append(d.rows, other.rows...)
	return nil
}

func widen(a, b string) string {
	if (a == TypeInteger && b == TypeReal) || (a == TypeReal && b == TypeInteger) {
		return TypeReal
	}
	return TypeText
}

// records converts rows into typed values keyed by column name.
func (d *tableData) records() []map[string]interface{} {
	out := make([]map[string]interface{}, len(d.rows))
	for r, row := range d.rows {
		rec := make(map[string]interface{}, len(d.columns))
		for i, c := range d.columns {
			rec[c.name] = typedValue(c.typ, row[i])
		}
		out[r] = rec
	}
	return out
}

func typedValue(typ string, v *string) interface{} {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	switch typ {
	case TypeInteger:
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	case TypeReal:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case TypeBoolean:
		b, _ := strconv.ParseBool(strings.ToLower(s))
		return b
	default:
		return *v
	}
}

func createTableSQL(tx *gorm.DB, table string, cols []column, typed bool) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := c.typ
		if !typed {
			typ = TypeText
		}
		defs[i] = tx.Statement.Quote(c.name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", tx.Statement.Quote(table), strings.Join(defs, ", "))
}
