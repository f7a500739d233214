package compare

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pv-groupings/internal/relation"
)

// CategoryColumn is the comparison table column holding category codes.
const CategoryColumn = "failed_grouping"

// WriteCSV writes group_id, <referenceColumn>, failed_grouping rows. Missing
// rows leave group_id blank.
func WriteCSV(w io.Writer, records []MatchRecord, referenceColumn string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"group_id", referenceColumn, CategoryColumn}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		record := []string{r.GroupID.String(), string(r.ReferenceKey), strconv.Itoa(int(r.Category))}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", r.ReferenceKey, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the comparison table to filename.
func WriteFile(filename string, records []MatchRecord, referenceColumn string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := WriteCSV(file, records, referenceColumn); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadCSV reads a comparison table written by WriteCSV. The reference column
// is the second column whatever its name.
func ReadCSV(r io.Reader) ([]MatchRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 3 || strings.TrimSpace(header[0]) != "group_id" || strings.TrimSpace(header[2]) != CategoryColumn {
		return nil, fmt.Errorf("%w: comparison table needs group_id, <reference>, %s (have %s)",
			relation.ErrMissingColumn, CategoryColumn, strings.Join(header, ", "))
	}

	var records []MatchRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}
		var rec MatchRecord
		if s := strings.TrimSpace(row[0]); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid group_id %q: %w", line, s, err)
			}
			rec.GroupID = NullGroupID{ID: id, Valid: true}
		}
		rec.ReferenceKey = relation.ParseObjectID(row[1]).ID
		code, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil || code < int(Correct) || code > int(UnderGrouped) {
			return nil, fmt.Errorf("line %d: invalid category %q", line, row[2])
		}
		rec.Category = Category(code)
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile reads a comparison table from filename.
func ReadFile(filename string) ([]MatchRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()
	return ReadCSV(file)
}
