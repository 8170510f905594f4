package diff

import (
	"fmt"
	"strings"

	"github.com/koba/schema-sync/internal/schema"
)

// SQLite can add columns and create or drop secondary indexes in place.
// Anything else makes the plan infeasible and the table is rebuilt.
type sqliteTableComparer struct {
	plan    *Plan
	desired *schema.SQLiteTable
	old     *schema.SQLiteTable
}

func compareSQLiteTable(desired, old *schema.SQLiteTable, existing []string) *Plan {
	p := NewPlan(desired.Name)
	if old == nil {
		p.markCreate()
		p.AddDisplay(createDisplay(desired.CreateLines(desired.Name))...)
		p.AddStatement(desired.CreateSQL(desired.Name))
		for _, stmt := range desired.IndexSQL() {
			p.AddDisplay("+ " + stmt)
			p.AddStatement(stmt)
		}
		if desired.InitSQL != "" {
			p.AddDisplay("+ " + desired.InitSQL)
			p.AddStatement(desired.InitSQL)
		}
		return p
	}

	c := &sqliteTableComparer{plan: p, desired: desired, old: old}
	c.status()
	c.indexDeletions()
	c.fieldDeletions()
	c.fieldChanges()
	c.fieldAdditions()
	c.indexAdditions()

	if !p.Feasible() {
		p.SetRebuild(sqliteRebuild(desired, old, existing))
		for _, f := range desired.Fields {
			if old.Field(f.Name) == nil && requiresValue(f) {
				p.AddDisplay(fmt.Sprintf("! %s is NOT NULL without a default; copying rows into %s will fail",
					schema.QuoteIdent(f.Name), schema.QuoteIdent(desired.Name)))
			}
		}
	}
	return p
}

// requiresValue reports whether existing rows cannot be given a value for
// the field.
func requiresValue(f *schema.SQLiteField) bool {
	return !f.Nullable && !f.AutoIncrement && !f.Default.IsValue()
}

func rowIDClause(s schema.SQLiteStatus) string {
	if s.WithoutRowID {
		return "WITHOUT ROWID"
	}
	return "ROWID"
}

func (c *sqliteTableComparer) status() {
	if c.old.Status.WithoutRowID != c.desired.Status.WithoutRowID {
		c.plan.AddDisplay("- "+rowIDClause(c.old.Status), "+ "+rowIDClause(c.desired.Status))
		c.plan.SetFeasible(false)
	}
}

// indexDeletions drops secondary indexes that are gone or changed; changed
// ones are created again after the column changes.
func (c *sqliteTableComparer) indexDeletions() {
	name := c.desired.Name
	for _, idx := range c.old.Indexes {
		to := c.desired.Index(idx.Name)
		switch {
		case to == nil:
			c.plan.AddDisplay("- " + idx.SQLWithComment(name))
		case to.SQL(name) != idx.SQL(name):
			c.plan.AddDisplay("- " + idx.SQLWithComment(name))
		default:
			continue
		}
		if idx.IsPrimary() || (to != nil && to.IsPrimary()) {
			c.plan.SetFeasible(false)
			continue
		}
		c.plan.AddStatement("DROP INDEX IF EXISTS " + schema.QuoteIdent(idx.Name))
	}
}

func (c *sqliteTableComparer) fieldDeletions() {
	for _, f := range c.old.Fields {
		if c.desired.Field(f.Name) == nil {
			c.plan.AddDisplay("- " + f.SQLWithComment())
			c.plan.SetFeasible(false)
		}
	}
}

func (c *sqliteTableComparer) fieldChanges() {
	for _, f := range c.desired.Fields {
		from := c.old.Field(f.Name)
		if from == nil || from.SQL() == f.SQL() {
			continue
		}
		c.plan.AddDisplay("- "+from.SQLWithComment(), "+ "+f.SQLWithComment())
		c.plan.SetFeasible(false)
	}
}

func (c *sqliteTableComparer) fieldAdditions() {
	prefix := "ALTER TABLE " + schema.QuoteIdent(c.desired.Name) + " ADD "
	for _, f := range c.desired.Fields {
		if c.old.Field(f.Name) != nil {
			continue
		}
		c.plan.AddDisplay("+ " + f.SQLWithComment())
		// ADD COLUMN accepts neither a primary key nor NOT NULL without a
		// usable default
		if f.AutoIncrement || requiresValue(f) {
			c.plan.SetFeasible(false)
			continue
		}
		c.plan.AddStatement(prefix + f.SQLWithComment())
	}
}

func (c *sqliteTableComparer) indexAdditions() {
	name := c.desired.Name
	for _, idx := range c.desired.Indexes {
		from := c.old.Index(idx.Name)
		if from != nil && from.SQL(name) == idx.SQL(name) {
			continue
		}
		c.plan.AddDisplay("+ " + idx.SQLWithComment(name))
		if idx.IsPrimary() || (from != nil && from.IsPrimary()) {
			c.plan.SetFeasible(false)
			continue
		}
		c.plan.AddStatement(idx.SQLWithComment(name))
	}
}

// sqliteRebuild copies the table through a temporary table created with
// the desired layout. Only columns present on both sides are copied.
func sqliteRebuild(desired, old *schema.SQLiteTable, existing []string) []string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = true
	}
	n := 0
	tmp := fmt.Sprintf("tmp_%s_%d", desired.Name, n)
	for taken[strings.ToLower(tmp)] {
		n++
		tmp = fmt.Sprintf("tmp_%s_%d", desired.Name, n)
	}

	var common []string
	for _, f := range desired.Fields {
		if old.Field(f.Name) != nil {
			common = append(common, schema.QuoteIdent(f.Name))
		}
	}

	table, tmpTable := schema.QuoteIdent(desired.Name), schema.QuoteIdent(tmp)
	stmts := []string{
		"PRAGMA foreign_keys = 0",
		desired.CreateSQL(tmp),
	}
	if len(common) > 0 {
		cols := strings.Join(common, ",")
		stmts = append(stmts, "INSERT INTO "+tmpTable+" ("+cols+") SELECT "+cols+" FROM "+table)
	}
	stmts = append(stmts,
		"PRAGMA defer_foreign_keys = 1",
		"DROP TABLE "+table,
		"ALTER TABLE "+tmpTable+" RENAME TO "+table,
		"PRAGMA defer_foreign_keys = 0",
	)
	stmts = append(stmts, desired.IndexSQL()...)
	return append(stmts, "PRAGMA foreign_keys = 1")
}
