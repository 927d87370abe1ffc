// Package load reads entity definitions from YAML documents. It lets
// deployments describe entities in configuration instead of Go code; the
// produced definitions register with the metadata registry exactly like
// hand-written ones.
package load

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crudox/crudox/schema"
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/relation"
)

type document struct {
	Entities []entityDecl `yaml:"entities"`
}

type entityDecl struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	Fields    []fieldDecl    `yaml:"fields"`
	Relations []relationDecl `yaml:"relations"`
}

type fieldDecl struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Column     string   `yaml:"column"`
	PrimaryKey bool     `yaml:"primaryKey"`
	Unique     bool     `yaml:"unique"`
	Optional   bool     `yaml:"optional"`
	Nillable   bool     `yaml:"nillable"`
	Immutable  bool     `yaml:"immutable"`
	Sensitive  bool     `yaml:"sensitive"`
	Default    any      `yaml:"default"`
	Values     []string `yaml:"values"`
	Precision  int32    `yaml:"precision"`
	Comment    string   `yaml:"comment"`
}

type relationDecl struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Target    string `yaml:"target"`
	Column    string `yaml:"column"`
	Ref       string `yaml:"ref"`
	JoinTable string `yaml:"joinTable"`
	OwnColumn string `yaml:"ownColumn"`
	RefColumn string `yaml:"refColumn"`
	Required  bool   `yaml:"required"`
	Comment   string `yaml:"comment"`
}

// Definition is an entity definition decoded from YAML.
type Definition struct {
	name      string
	table     string
	fields    []schema.Field
	relations []schema.Relation
}

// Name returns the declared entity name.
func (d *Definition) Name() string { return d.name }

// Table returns the declared table name, or empty for the derived default.
func (d *Definition) Table() string { return d.table }

// Fields returns the declared fields.
func (d *Definition) Fields() []schema.Field { return d.fields }

// Relations returns the declared relations.
func (d *Definition) Relations() []schema.Relation { return d.relations }

// Mixin returns nil; YAML definitions declare all fields inline.
func (d *Definition) Mixin() []schema.Mixin { return nil }

var (
	_ schema.Definition = (*Definition)(nil)
	_ schema.Namer      = (*Definition)(nil)
)

type rawField struct{ desc *field.Descriptor }

func (f rawField) Descriptor() *field.Descriptor { return f.desc }

type rawRelation struct{ desc *relation.Descriptor }

func (r rawRelation) Descriptor() *relation.Descriptor { return r.desc }

// Read decodes entity definitions from r.
func Read(r io.Reader) ([]schema.Definition, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("load: decode schema: %w", err)
	}
	defs := make([]schema.Definition, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		def, err := buildDefinition(e)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ReadFile decodes entity definitions from a YAML file.
func ReadFile(path string) ([]schema.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func buildDefinition(e entityDecl) (*Definition, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("load: entity with no name")
	}
	def := &Definition{name: e.Name, table: e.Table}
	for _, fd := range e.Fields {
		typ, ok := field.TypeByName(fd.Type)
		if !ok {
			return nil, fmt.Errorf("load: entity %s: field %s: unknown type %q", e.Name, fd.Name, fd.Type)
		}
		def.fields = append(def.fields, rawField{&field.Descriptor{
			Name:       fd.Name,
			Type:       typ,
			Column:     fd.Column,
			PrimaryKey: fd.PrimaryKey,
			Unique:     fd.Unique,
			Optional:   fd.Optional,
			Nillable:   fd.Nillable,
			Immutable:  fd.Immutable,
			Sensitive:  fd.Sensitive,
			Default:    fd.Default,
			Enums:      fd.Values,
			Precision:  fd.Precision,
			Comment:    fd.Comment,
		}})
	}
	for _, rd := range e.Relations {
		kind, err := relationKind(rd.Kind)
		if err != nil {
			return nil, fmt.Errorf("load: entity %s: relation %s: %w", e.Name, rd.Name, err)
		}
		if rd.Target == "" {
			return nil, fmt.Errorf("load: entity %s: relation %s: missing target", e.Name, rd.Name)
		}
		def.relations = append(def.relations, rawRelation{&relation.Descriptor{
			Name:      rd.Name,
			Target:    rd.Target,
			Kind:      kind,
			FKColumn:  rd.Column,
			RefName:   rd.Ref,
			Table:     rd.JoinTable,
			OwnColumn: rd.OwnColumn,
			RefColumn: rd.RefColumn,
			Required:  rd.Required,
			Comment:   rd.Comment,
		}})
	}
	return def, nil
}

func relationKind(name string) (relation.Kind, error) {
	switch name {
	case "toOne":
		return relation.M2O, nil
	case "oneToOne":
		return relation.O2O, nil
	case "toMany":
		return relation.O2M, nil
	case "manyToMany":
		return relation.M2M, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", name)
	}
}
