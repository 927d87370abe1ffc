// Package schema creates database tables from a resolved metadata registry.
// It covers development and test setups: every entity table, its foreign key
// columns, and the join tables of many-to-many relations are created with
// CREATE TABLE IF NOT EXISTS, so running it against an existing database is
// harmless. It is not a migration engine; altering existing tables is out of
// its reach.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/relation"
)

// Option configures table creation.
type Option func(*creator)

// WithForeignKeys toggles foreign key constraint clauses. Enabled by
// default; disable when seeding tables in an order that violates them.
func WithForeignKeys(b bool) Option {
	return func(c *creator) { c.foreignKeys = b }
}

// Create creates the tables of every entity in the registry, join tables
// included, inside a single transaction.
func Create(ctx context.Context, drv dialect.Driver, reg *metadata.Registry, opts ...Option) error {
	c := &creator{dialect: drv.Dialect(), foreignKeys: true}
	for _, opt := range opts {
		opt(c)
	}
	stmts, err := c.statements(reg)
	if err != nil {
		return err
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				return fmt.Errorf("%w: rolling back table creation: %v", err, rerr)
			}
			return fmt.Errorf("crudox/schema: %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// Dump returns the CREATE TABLE statements without executing them.
func Dump(dialectName string, reg *metadata.Registry, opts ...Option) ([]string, error) {
	c := &creator{dialect: dialectName, foreignKeys: true}
	for _, opt := range opts {
		opt(c)
	}
	return c.statements(reg)
}

type creator struct {
	dialect     string
	foreignKeys bool
}

func (c *creator) statements(reg *metadata.Registry) ([]string, error) {
	var stmts []string
	joined := map[string]bool{}
	for _, ent := range sortByDependency(reg.Entities()) {
		stmt, err := c.entityTable(ent)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	// Join tables second, both endpoint tables exist by then. A relation
	// declared on both sides shares one table.
	for _, ent := range reg.Entities() {
		for _, rel := range ent.Relations() {
			if rel.Kind != relation.M2M || joined[rel.JoinTable] {
				continue
			}
			joined[rel.JoinTable] = true
			stmts = append(stmts, c.joinTable(rel))
		}
	}
	return stmts, nil
}

// sortByDependency orders entities so that every to-one relation target
// precedes its referrer, keeping foreign key creation valid. Cycles and
// self references fall back to the incoming order.
func sortByDependency(ents []*metadata.Entity) []*metadata.Entity {
	var (
		out     []*metadata.Entity
		visited = map[string]bool{}
		visit   func(*metadata.Entity)
	)
	visit = func(ent *metadata.Entity) {
		if visited[ent.Name] {
			return
		}
		visited[ent.Name] = true
		for _, rel := range ent.Relations() {
			if !rel.ToMany() && rel.Target != ent {
				visit(rel.Target)
			}
		}
		out = append(out, ent)
	}
	for _, ent := range ents {
		visit(ent)
	}
	return out
}

func (c *creator) entityTable(ent *metadata.Entity) (string, error) {
	var defs []string
	for _, f := range ent.Fields() {
		col, err := c.column(ent, f)
		if err != nil {
			return "", err
		}
		defs = append(defs, col)
	}
	// Table constraints follow the column definitions.
	var constraints []string
	fkSeen := map[string]bool{}
	for _, rel := range ent.Relations() {
		if rel.ToMany() || fkSeen[rel.FKColumn] {
			continue
		}
		fkSeen[rel.FKColumn] = true
		def := fmt.Sprintf("%s %s", c.quote(rel.FKColumn), c.columnType(rel.Target.PrimaryKey(), false))
		if rel.Required {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		if c.foreignKeys {
			constraints = append(constraints, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				c.quote(rel.FKColumn), c.quote(rel.Target.Table), c.quote(rel.Target.PrimaryKey().Column)))
		}
	}
	defs = append(defs, constraints...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.quote(ent.Table), strings.Join(defs, ", ")), nil
}

func (c *creator) joinTable(rel *metadata.Relation) string {
	own := c.quote(rel.OwnColumn)
	ref := c.quote(rel.RefColumn)
	defs := []string{
		fmt.Sprintf("%s %s NOT NULL", own, c.columnType(rel.Owner.PrimaryKey(), false)),
		fmt.Sprintf("%s %s NOT NULL", ref, c.columnType(rel.Target.PrimaryKey(), false)),
		fmt.Sprintf("PRIMARY KEY (%s, %s)", own, ref),
	}
	if c.foreignKeys {
		defs = append(defs,
			fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", own, c.quote(rel.Owner.Table), c.quote(rel.Owner.PrimaryKey().Column)),
			fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", ref, c.quote(rel.Target.Table), c.quote(rel.Target.PrimaryKey().Column)),
		)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.quote(rel.JoinTable), strings.Join(defs, ", "))
}

func (c *creator) column(ent *metadata.Entity, f *metadata.Field) (string, error) {
	if !f.Type.Valid() {
		return "", crudox.NewConfigError("crudox/schema: entity %s: field %s has no column type", ent.Name, f.Name)
	}
	def := fmt.Sprintf("%s %s", c.quote(f.Column), c.columnType(f, f.PrimaryKey))
	switch {
	case f.PrimaryKey:
		def += " PRIMARY KEY"
		if c.autoIncrement(f) {
			switch c.dialect {
			case dialect.SQLite:
				def += " AUTOINCREMENT"
			case dialect.MySQL:
				def += " AUTO_INCREMENT"
			}
		}
	case !f.Nillable && !f.Optional:
		def += " NOT NULL"
	}
	if f.Unique && !f.PrimaryKey {
		def += " UNIQUE"
	}
	return def, nil
}

// autoIncrement reports whether the primary key is database generated.
// Integer keys without an explicit default are auto-increment; uuid and
// string keys carry their values from the application.
func (c *creator) autoIncrement(f *metadata.Field) bool {
	return (f.Type == field.TypeInt || f.Type == field.TypeInt64) && f.Default == nil
}

func (c *creator) columnType(f *metadata.Field, pk bool) string {
	switch f.Type {
	case field.TypeInt, field.TypeInt64:
		switch c.dialect {
		case dialect.SQLite:
			return "INTEGER"
		case dialect.Postgres:
			if pk && c.autoIncrement(f) {
				return "BIGSERIAL"
			}
			return "BIGINT"
		default:
			return "BIGINT"
		}
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeFloat64:
		return "DOUBLE PRECISION"
	case field.TypeDecimal:
		return fmt.Sprintf("DECIMAL(24, %d)", f.Precision)
	case field.TypeTime:
		if c.dialect == dialect.MySQL {
			return "DATETIME(6)"
		}
		return "TIMESTAMP"
	case field.TypeUUID:
		if c.dialect == dialect.Postgres {
			return "UUID"
		}
		return "CHAR(36)"
	case field.TypeText:
		return "TEXT"
	default:
		// Strings and enums. Enum membership is validated before writes,
		// a CHECK constraint would duplicate it.
		return "VARCHAR(255)"
	}
}

func (c *creator) quote(ident string) string {
	if c.dialect == dialect.Postgres {
		return `"` + ident + `"`
	}
	return "`" + ident + "`"
}
