package relation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ObjectID identifies one object inside a single dataset's namespace,
// e.g. "way/12345" for OSM or "6123" for a REPD reference.
type ObjectID string

// ParseObjectID normalizes a raw cell value. Integral float spellings
// ("1234.0") collapse to the integer form so that spreadsheet exports with
// blank cells compare equal to clean integer columns.
func ParseObjectID(raw string) NullID {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "<na>") {
		return NullID{}
	}
	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			s = strconv.FormatInt(int64(f), 10)
		}
	}
	return NullID{ID: ObjectID(s), Valid: true}
}

// CompareIDs orders identifiers numerically when both are integers and
// lexicographically otherwise. Integers sort before non-integers.
func CompareIDs(a, b ObjectID) int {
	ai, aerr := strconv.ParseInt(string(a), 10, 64)
	bi, berr := strconv.ParseInt(string(b), 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// NullID is an ObjectID that may be absent.
type NullID struct {
	ID    ObjectID
	Valid bool
}

// Some wraps a present identifier.
func Some(id ObjectID) NullID {
	return NullID{ID: id, Valid: true}
}

func (n NullID) String() string {
	if !n.Valid {
		return ""
	}
	return string(n.ID)
}

// RelationEdge is one asserted pairwise link.
type RelationEdge struct {
	Subject ObjectID
	Related ObjectID
}

func (e RelationEdge) String() string {
	return fmt.Sprintf("%s -> %s", e.Subject, e.Related)
}

// Row is one normalized input row.
type Row struct {
	Subject NullID
	Related NullID
	Key     NullID
	Attrs   map[string]string
}

// Table is a schema-validated relation table. It is not modified after
// construction.
type Table struct {
	Schema Schema
	Rows   []Row
}

// Edges returns the subject/related pairs of every row carrying both values,
// in input order.
func (t *Table) Edges() []RelationEdge {
	edges := make([]RelationEdge, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !row.Subject.Valid || !row.Related.Valid {
			continue
		}
		edges = append(edges, RelationEdge{Subject: row.Subject.ID, Related: row.Related.ID})
	}
	return edges
}

// Subjects returns every present subject in input order, duplicates included.
func (t *Table) Subjects() []ObjectID {
	subjects := make([]ObjectID, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row.Subject.Valid {
			subjects = append(subjects, row.Subject.ID)
		}
	}
	return subjects
}
