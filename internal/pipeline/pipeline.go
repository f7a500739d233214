package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/config"
	"github.com/pv-groupings/internal/debug"
	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/grouping"
	"github.com/pv-groupings/internal/metrics"
	"github.com/pv-groupings/internal/relation"
)

// DefaultReferenceColumn names the reference key column of comparison output.
const DefaultReferenceColumn = "ssid"

// Pipeline runs the grouping, unstacking and comparison flows over CSV
// exports whose shapes are described by named schemas.
type Pipeline struct {
	schemas config.Schemas
	logger  *slog.Logger
}

// New creates a pipeline over schemas.
func New(schemas config.Schemas, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{schemas: schemas, logger: logger}
}

// Schema returns the named table shape.
func (p *Pipeline) Schema(name string) (relation.Schema, error) {
	return p.schemas.Get(name)
}

// SchemaNames lists the known table shapes.
func (p *Pipeline) SchemaNames() []string {
	return p.schemas.Names()
}

// ReadTable loads the CSV at path using the named schema.
func (p *Pipeline) ReadTable(path, schemaName string) (*relation.Table, error) {
	schema, err := p.schemas.Get(schemaName)
	if err != nil {
		return nil, err
	}
	reader, err := relation.NewReader(schema, p.logger)
	if err != nil {
		return nil, err
	}
	return reader.ReadFile(path)
}

// Group builds the partition of the table at path, in the algorithm its
// schema's mode selects.
func (p *Pipeline) Group(path, schemaName string) (*grouping.Partition, relation.Schema, error) {
	done := debug.Timing(p.logger, "group", "table", schemaName)
	defer done()

	table, err := p.ReadTable(path, schemaName)
	if err != nil {
		return nil, relation.Schema{}, err
	}
	partition, err := grouping.Build(table)
	if err != nil {
		return nil, relation.Schema{}, err
	}
	if table.Schema.KeyIsGroupID {
		if err := partition.RenumberByKey(); err != nil {
			return nil, relation.Schema{}, err
		}
	}

	metrics.GroupsBuilt.WithLabelValues(schemaName).Add(float64(partition.Len()))
	p.logger.Info("groups built",
		"table", schemaName,
		"rows", len(table.Rows),
		"groups", partition.Len(),
		"members", partition.MemberCount())
	return partition, table.Schema, nil
}

// GroupToFile builds the partition of the table at path and writes it as a
// grouping table to output.
func (p *Pipeline) GroupToFile(path, schemaName, output string) (*grouping.Partition, error) {
	partition, schema, err := p.Group(path, schemaName)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(output); err != nil {
		return nil, err
	}
	if err := grouping.WriteGroupsFile(output, partition, schema.GroupColumn, schema.MemberColumn); err != nil {
		return nil, err
	}
	p.logger.Info("grouping table written", "path", output, "groups", partition.Len())
	return partition, nil
}

// Unstack reads the key-mode table at path and pivots it into wide form,
// with slot columns named after the schema's member column.
func (p *Pipeline) Unstack(path, schemaName string) (*grouping.Unstacked, error) {
	done := debug.Timing(p.logger, "unstack", "table", schemaName)
	defer done()

	table, err := p.ReadTable(path, schemaName)
	if err != nil {
		return nil, err
	}
	rows, err := grouping.KeyedRows(table)
	if err != nil {
		return nil, err
	}
	u := grouping.Unstack(rows, table.Schema.GroupingKeyColumn, table.Schema.MemberColumn)
	p.logger.Info("table unstacked", "table", schemaName, "keys", len(u.Rows), "width", u.Width)
	return u, nil
}

// UnstackToFile unstacks the table at path and writes the wide form to output.
func (p *Pipeline) UnstackToFile(path, schemaName, output string) (*grouping.Unstacked, error) {
	u, err := p.Unstack(path, schemaName)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(output); err != nil {
		return nil, err
	}
	file, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := u.WriteCSV(file); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}
	return u, nil
}

// LoadPartition loads the table at path as one side of a comparison. Key
// tables go through the wide form so that groups come out in key order.
func (p *Pipeline) LoadPartition(path, schemaName string) (*grouping.Partition, error) {
	schema, err := p.schemas.Get(schemaName)
	if err != nil {
		return nil, err
	}
	if schema.Mode != relation.ModeKey {
		partition, _, err := p.Group(path, schemaName)
		return partition, err
	}

	u, err := p.Unstack(path, schemaName)
	if err != nil {
		return nil, err
	}
	partition := u.Partition()
	if schema.KeyIsGroupID {
		if err := partition.RenumberByKey(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return partition, nil
}

// CompareOptions names the two sides of a comparison and its output.
type CompareOptions struct {
	ReferencePath   string
	ReferenceSchema string
	CandidatePath   string
	CandidateSchema string
	// ReferenceColumn names the reference key column in the output.
	ReferenceColumn string
	// Output is optional; nothing is written when it is empty.
	Output   string
	Strategy compare.Strategy
	Workers  int
}

// CompareResult is the outcome of one comparison run.
type CompareResult struct {
	RunID   string
	Records []compare.MatchRecord
	Summary compare.Summary
}

// Compare classifies how the candidate table groups the objects of the
// reference table.
func (p *Pipeline) Compare(opts CompareOptions) (*CompareResult, error) {
	runID := uuid.New().String()
	logger := p.logger.With("run_id", runID)
	done := debug.Timing(logger, "compare",
		"reference", opts.ReferenceSchema,
		"candidate", opts.CandidateSchema)
	defer done()

	reference, err := p.LoadPartition(opts.ReferencePath, opts.ReferenceSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference groups: %w", err)
	}
	candidate, err := p.LoadPartition(opts.CandidatePath, opts.CandidateSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate groups: %w", err)
	}

	comparator := compare.NewComparator(compare.Options{
		Strategy: opts.Strategy,
		Workers:  opts.Workers,
		Logger:   logger,
	})
	records := comparator.Compare(reference, candidate)
	summary := compare.Summarize(records)
	for _, c := range compare.Categories {
		metrics.ComparisonRecords.WithLabelValues(c.String()).Add(float64(summary[c]))
	}

	if opts.Output != "" {
		column := opts.ReferenceColumn
		if column == "" {
			column = DefaultReferenceColumn
		}
		if err := ensureDir(opts.Output); err != nil {
			return nil, err
		}
		if err := compare.WriteFile(opts.Output, records, column); err != nil {
			return nil, err
		}
	}

	attrs := []any{"records", len(records), "output", opts.Output}
	for _, c := range compare.Categories {
		attrs = append(attrs, c.String(), summary[c])
	}
	logger.Info("comparison complete", attrs...)
	return &CompareResult{RunID: runID, Records: records, Summary: summary}, nil
}

// Enrich resolves the geometry of every member of the grouping table at
// path, written earlier for schemaName, and writes the enriched table to
// output. Cancelling ctx stops the lookups and nothing is written.
func (p *Pipeline) Enrich(ctx context.Context, fetcher geometry.Fetcher, path, schemaName, output string) ([]geometry.Member, error) {
	schema, err := p.schemas.Get(schemaName)
	if err != nil {
		return nil, err
	}
	partition, err := grouping.ReadGroupsFile(path, schema.GroupColumn, schema.MemberColumn)
	if err != nil {
		return nil, err
	}

	members, err := geometry.NewEnricher(fetcher, p.logger).Enrich(ctx, partition)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(output); err != nil {
		return nil, err
	}
	if err := geometry.WriteFile(output, members, schema.GroupColumn, schema.MemberColumn); err != nil {
		return nil, err
	}
	p.logger.Info("enriched grouping table written", "path", output, "members", len(members))
	return members, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
