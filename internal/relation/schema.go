package relation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSchema is returned when a schema names an unknown mode or lacks
	// the column roles its mode requires.
	ErrInvalidSchema = errors.New("invalid table schema")
	// ErrMissingColumn is returned when an input table lacks a column the
	// schema assigns a role to.
	ErrMissingColumn = errors.New("missing required column")
)

// Mode selects the grouping algorithm a table feeds.
type Mode string

const (
	ModeTransitive Mode = "transitive"
	ModeKey        Mode = "key"
)

// Direction selects which way relation edges are walked in transitive mode.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
	DirectionBoth    Direction = "both"
)

// Expansion bounds the transitive walk.
type Expansion string

const (
	// ExpansionTransitive walks to the fixed point.
	ExpansionTransitive Expansion = "transitive"
	// ExpansionOneHop keeps only the seed's direct neighbours.
	ExpansionOneHop Expansion = "one_hop"
)

// Schema assigns column roles for one table shape.
type Schema struct {
	Name              string    `yaml:"-"`
	Mode              Mode      `yaml:"mode"`
	SubjectColumn     string    `yaml:"subject"`
	RelatedColumn     string    `yaml:"related,omitempty"`
	GroupingKeyColumn string    `yaml:"grouping_key,omitempty"`
	Direction         Direction `yaml:"direction,omitempty"`
	Expansion         Expansion `yaml:"expansion,omitempty"`
	Drop              []string  `yaml:"drop,omitempty"`
	GroupColumn       string    `yaml:"group_column,omitempty"`
	MemberColumn      string    `yaml:"member_column,omitempty"`
	// KeyIsGroupID marks key-mode tables whose grouping key already is a
	// group id, such as a grouping table read back in.
	KeyIsGroupID bool `yaml:"key_is_group_id,omitempty"`
}

// WithDefaults fills optional fields.
func (s Schema) WithDefaults() Schema {
	if s.Mode == ModeTransitive {
		if s.Direction == "" {
			s.Direction = DirectionForward
		}
		if s.Expansion == "" {
			s.Expansion = ExpansionTransitive
		}
	}
	if s.GroupColumn == "" {
		s.GroupColumn = "id"
	}
	if s.MemberColumn == "" {
		s.MemberColumn = "objects"
	}
	return s
}

// Validate checks the schema is usable for its mode.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.SubjectColumn) == "" {
		return fmt.Errorf("%w %q: subject column not set", ErrInvalidSchema, s.Name)
	}
	switch s.Mode {
	case ModeTransitive:
		if s.RelatedColumn == "" {
			return fmt.Errorf("%w %q: transitive mode needs a related column", ErrInvalidSchema, s.Name)
		}
		switch s.Direction {
		case DirectionForward, DirectionReverse, DirectionBoth:
		default:
			return fmt.Errorf("%w %q: unknown direction %q", ErrInvalidSchema, s.Name, s.Direction)
		}
		switch s.Expansion {
		case ExpansionTransitive, ExpansionOneHop:
		default:
			return fmt.Errorf("%w %q: unknown expansion %q", ErrInvalidSchema, s.Name, s.Expansion)
		}
	case ModeKey:
		if s.GroupingKeyColumn == "" {
			return fmt.Errorf("%w %q: key mode needs a grouping_key column", ErrInvalidSchema, s.Name)
		}
	default:
		return fmt.Errorf("%w %q: unknown mode %q", ErrInvalidSchema, s.Name, s.Mode)
	}
	for _, d := range s.Drop {
		if d == s.SubjectColumn || d == s.RelatedColumn || d == s.GroupingKeyColumn {
			return fmt.Errorf("%w %q: column %q is both dropped and assigned a role", ErrInvalidSchema, s.Name, d)
		}
	}
	return nil
}

// RequiredColumns lists the columns an input table must carry.
func (s Schema) RequiredColumns() []string {
	cols := []string{s.SubjectColumn}
	if s.RelatedColumn != "" {
		cols = append(cols, s.RelatedColumn)
	}
	if s.GroupingKeyColumn != "" {
		cols = append(cols, s.GroupingKeyColumn)
	}
	return cols
}

// DefaultSchemas returns the table shapes of the known source exports.
func DefaultSchemas() map[string]Schema {
	schemas := map[string]Schema{
		"osm_neighbours": {
			Mode:          ModeTransitive,
			SubjectColumn: "object",
			RelatedColumn: "neighbour_object",
			Direction:     DirectionForward,
			Expansion:     ExpansionTransitive,
			GroupColumn:   "id",
			MemberColumn:  "objects",
		},
		"repd_neighbours": {
			Mode:          ModeTransitive,
			SubjectColumn: "repd_id",
			RelatedColumn: "neighbour_id",
			Direction:     DirectionReverse,
			Expansion:     ExpansionOneHop,
			GroupColumn:   "group_id",
			MemberColumn:  "repd_id",
		},
		"ss_matches": {
			Mode:              ModeKey,
			GroupingKeyColumn: "SS_ID",
			SubjectColumn:     "REPD_REF_ID",
			Drop:              []string{"SOLAR_MEDIA_REF", "RO_Generator_ID", "SS_SUB_ID"},
			GroupColumn:       "SS_ID",
			MemberColumn:      "ss",
		},
		"match_table": {
			Mode:              ModeKey,
			GroupingKeyColumn: "sol_id",
			SubjectColumn:     "osm_id",
			GroupColumn:       "sol_id",
			MemberColumn:      "osm_id",
		},
		"repd_groups": {
			Mode:              ModeKey,
			GroupingKeyColumn: "group_id",
			SubjectColumn:     "repd_id",
			GroupColumn:       "group_id",
			MemberColumn:      "turing",
			KeyIsGroupID:      true,
		},
	}
	for name, s := range schemas {
		s.Name = name
		schemas[name] = s
	}
	return schemas
}
