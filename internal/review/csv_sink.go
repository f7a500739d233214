package review

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"group_id", "is_valid", "flags", "reviewer", "session_id", "reviewed_at"}

// CSVSink keeps results in a CSV file, rewriting it on every change.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink creates a sink writing to path. The parent directory is created
// if needed; the file itself appears with the first result.
func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &CSVSink{path: path}, nil
}

// AppendOrReplace drops any earlier result for groupID and appends result.
func (s *CSVSink) AppendOrReplace(ctx context.Context, groupID int, result Result) error {
	if err := validate(groupID, &result); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.read()
	if err != nil {
		return err
	}
	results = slices.DeleteFunc(results, func(r Result) bool { return r.GroupID == groupID })
	results = append(results, result)
	return s.write(results)
}

// Results returns every stored result in file order.
func (s *CSVSink) Results(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Close is a no-op; every change is already on disk.
func (s *CSVSink) Close() error {
	return nil
}

func (s *CSVSink) read() ([]Result, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read results header: %w", err)
	}

	var results []Result
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read results: %w", err)
		}
		for len(record) < len(csvHeader) {
			record = append(record, "")
		}
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid group id %q in results file: %w", record[0], err)
		}
		r := Result{
			GroupID:   id,
			IsValid:   record[1] == "true" || record[1] == "True",
			Reviewer:  record[3],
			SessionID: record[4],
		}
		if record[2] != "" {
			if err := json.Unmarshal([]byte(record[2]), &r.Flags); err != nil {
				return nil, fmt.Errorf("invalid flags %q for group %d in results file: %w", record[2], id, err)
			}
		}
		if record[5] != "" {
			if ts, err := time.Parse(time.RFC3339, record[5]); err == nil {
				r.ReviewedAt = ts
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *CSVSink) write(results []Result) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".results-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	writer.Write(csvHeader)
	for _, r := range results {
		flags := ""
		if len(r.Flags) > 0 {
			encoded, err := json.Marshal(r.Flags)
			if err != nil {
				tmp.Close()
				return fmt.Errorf("failed to encode flags for group %d: %w", r.GroupID, err)
			}
			flags = string(encoded)
		}
		writer.Write([]string{
			strconv.Itoa(r.GroupID),
			strconv.FormatBool(r.IsValid),
			flags,
			r.Reviewer,
			r.SessionID,
			r.ReviewedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace results file: %w", err)
	}
	return nil
}
