package relation

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Reader loads relation tables from CSV using a schema.
type Reader struct {
	schema Schema
	logger *slog.Logger
}

// NewReader validates the schema and returns a reader for it.
func NewReader(schema Schema, logger *slog.Logger) (*Reader, error) {
	schema = schema.WithDefaults()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{schema: schema, logger: logger}, nil
}

// ReadFile opens filename and reads the whole table.
func (r *Reader) ReadFile(filename string) (*Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	table, err := r.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return table, nil
}

// Read parses a CSV stream. The header is checked against the schema before
// any row is read, so a malformed table never yields partial rows.
func (r *Reader) Read(in io.Reader) (*Table, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range r.schema.RequiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w for table %q: %s (have %s)",
			ErrMissingColumn, r.schema.Name, strings.Join(missing, ", "), strings.Join(header, ", "))
	}

	roles := map[string]bool{}
	for _, col := range r.schema.RequiredColumns() {
		roles[col] = true
	}
	for _, col := range r.schema.Drop {
		roles[col] = true
	}

	table := &Table{Schema: r.schema}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}

		row := Row{
			Subject: cell(record, index, r.schema.SubjectColumn),
			Related: cell(record, index, r.schema.RelatedColumn),
			Key:     cell(record, index, r.schema.GroupingKeyColumn),
		}
		for i, name := range header {
			if roles[name] || i >= len(record) {
				continue
			}
			if row.Attrs == nil {
				row.Attrs = make(map[string]string)
			}
			row.Attrs[name] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	r.logger.Debug("relation table loaded",
		"table", r.schema.Name,
		"rows", len(table.Rows),
		"mode", r.schema.Mode)
	return table, nil
}

func cell(record []string, index map[string]int, column string) NullID {
	if column == "" {
		return NullID{}
	}
	i, ok := index[column]
	if !ok || i >= len(record) {
		return NullID{}
	}
	return ParseObjectID(record[i])
}
