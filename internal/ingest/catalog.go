// Package ingest loads the raw CSV exports listed in the source catalog into Postgres.
package ingest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Origins a source can be fetched from.
const (
	OriginS3   = "s3"
	OriginHTTP = "http"
)

// Column types a schema can declare.
const (
	TypeString = "str"
	TypeInt    = "int"
	TypeFloat  = "float"
)

// Catalog lists every source table ingest maintains.
type Catalog struct {
	Bucket  string   `yaml:"bucket"`
	Sources []Source `yaml:"sources" validate:"required,min=1,dive"`
}

// Source describes one CSV export and the table it replaces.
type Source struct {
	Key       string            `yaml:"key" validate:"required"`
	Table     string            `yaml:"table" validate:"required"`
	Origin    string            `yaml:"origin" validate:"oneof=s3 http"`
	DateField bool              `yaml:"date_field"`
	FieldMaps map[string]string `yaml:"field_maps" validate:"required,min=1"`
	Schema    Schema            `yaml:"schema"`
}

// Schema is the column contract of a source table.
type Schema struct {
	Strict  bool     `yaml:"strict"`
	Columns []Column `yaml:"columns" validate:"required,min=1,dive"`
}

// Column declares a typed column and an optional validator tag such as "gt=2000".
type Column struct {
	Name  string `yaml:"name" validate:"required"`
	Type  string `yaml:"type" validate:"oneof=str int float"`
	Check string `yaml:"check"`
}

// ColumnNames returns the schema columns in declaration order.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// LoadCatalog reads and validates a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes raw YAML. Unknown keys are rejected so typos do not silently
// disable a setting.
func ParseCatalog(raw []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("ingest: decode catalog: %w", err)
	}
	if err := validator.New().Struct(&cat); err != nil {
		return nil, fmt.Errorf("ingest: invalid catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(cat.Sources))
	for _, src := range cat.Sources {
		if _, dup := seen[src.Table]; dup {
			return nil, fmt.Errorf("ingest: invalid catalog: table %s listed twice", src.Table)
		}
		seen[src.Table] = struct{}{}
		if src.Origin == OriginS3 && cat.Bucket == "" {
			return nil, fmt.Errorf("ingest: invalid catalog: %s reads from s3 but no bucket is set", src.Table)
		}
	}
	return &cat, nil
}

// Select returns the sources for the given tables, or all sources when tables is empty.
func (c *Catalog) Select(tables ...string) ([]Source, error) {
	if len(tables) == 0 {
		return c.Sources, nil
	}
	byTable := make(map[string]Source, len(c.Sources))
	for _, s := range c.Sources {
		byTable[s.Table] = s
	}
	out := make([]Source, 0, len(tables))
	for _, t := range tables {
		s, ok := byTable[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, t)
		}
		out = append(out, s)
	}
	return out, nil
}
