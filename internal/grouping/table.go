package grouping

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pv-groupings/internal/relation"
)

// WriteGroups writes one row per (group, member) pair.
func WriteGroups(w io.Writer, p *Partition, groupColumn, memberColumn string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{groupColumn, memberColumn}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, g := range p.Groups {
		id := strconv.Itoa(g.ID)
		for _, m := range g.Members {
			if err := writer.Write([]string{id, string(m)}); err != nil {
				return fmt.Errorf("failed to write group %d: %w", g.ID, err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteGroupsFile writes the grouping table to filename.
func WriteGroupsFile(filename string, p *Partition, groupColumn, memberColumn string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := WriteGroups(file, p, groupColumn, memberColumn); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadGroups reads a grouping table back into a partition. Group ids come
// from groupColumn and must be positive integers; groups keep the order in
// which their id first appears.
func ReadGroups(r io.Reader, groupColumn, memberColumn string) (*Partition, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	groupIdx, memberIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case groupColumn:
			groupIdx = i
		case memberColumn:
			memberIdx = i
		}
	}
	if groupIdx < 0 || memberIdx < 0 {
		return nil, fmt.Errorf("%w: grouping table needs %q and %q (have %s)",
			relation.ErrMissingColumn, groupColumn, memberColumn, strings.Join(header, ", "))
	}

	var rows []KeyedMember
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}
		if groupIdx >= len(record) || memberIdx >= len(record) {
			continue
		}
		rows = append(rows, KeyedMember{
			Key:    relation.ParseObjectID(record[groupIdx]),
			Member: relation.ParseObjectID(record[memberIdx]),
		})
	}

	p := BuildByKey(rows)
	if err := p.RenumberByKey(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadGroupsFile reads a grouping table from filename.
func ReadGroupsFile(filename, groupColumn, memberColumn string) (*Partition, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()
	p, err := ReadGroups(file, groupColumn, memberColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}
