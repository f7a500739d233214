package config

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pv-groupings/internal/relation"
)

// File is the YAML configuration of table shapes.
//
//	tables:
//	  osm_neighbours:
//	    mode: transitive
//	    subject: object
//	    related: neighbour_object
//	    direction: forward
//	    expansion: transitive
type File struct {
	Tables map[string]relation.Schema `yaml:"tables"`
}

// Schemas holds validated table shapes by name.
type Schemas map[string]relation.Schema

// LoadSchemas returns the built-in table shapes overlaid with those of the
// YAML file at path, if any. Every schema is validated before returning.
func LoadSchemas(path string) (Schemas, error) {
	schemas := Schemas(relation.DefaultSchemas())

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)

		var cfg File
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("YAML syntax error in schema config %s: %w", path, err)
		}
		maps.Copy(schemas, cfg.Tables)
	}

	for name, s := range schemas {
		s.Name = name
		s = s.WithDefaults()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		schemas[name] = s
	}
	return schemas, nil
}

// Get returns the named schema.
func (s Schemas) Get(name string) (relation.Schema, error) {
	schema, ok := s[name]
	if !ok {
		return relation.Schema{}, fmt.Errorf("%w: no table shape named %q (known: %v)",
			relation.ErrInvalidSchema, name, s.Names())
	}
	return schema, nil
}

// Names returns the schema names in sorted order.
func (s Schemas) Names() []string {
	return slices.Sorted(maps.Keys(s))
}
