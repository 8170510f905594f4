package diff

import (
	"fmt"

	"github.com/koba/schema-sync/internal/schema"
)

type mysqlTableComparer struct {
	plan    *Plan
	desired *schema.MySQLTable
	old     *schema.MySQLTable
	prefix  string
	removed map[string]bool
}

func compareMySQLTable(desired, old *schema.MySQLTable) *Plan {
	p := NewPlan(desired.Name)
	if old == nil {
		p.markCreate()
		p.AddDisplay(createDisplay(desired.CreateLines())...)
		p.AddStatement(desired.CreateSQL())
		if desired.InitSQL != "" {
			p.AddDisplay("+ " + desired.InitSQL)
			p.AddStatement(desired.InitSQL)
		}
		return p
	}

	c := &mysqlTableComparer{
		plan:    p,
		desired: desired,
		old:     old,
		prefix:  "ALTER TABLE " + schema.QuoteIdent(desired.Name) + " ",
		removed: make(map[string]bool),
	}
	c.status()
	c.fieldDeletions()
	c.fieldChanges()
	c.fieldAdditions()
	c.indexes()
	return p
}

func (c *mysqlTableComparer) status() {
	from, to := c.old.Status, c.desired.Status

	if from.Engine != to.Engine {
		c.plan.AddDisplay("- ENGINE="+from.Engine, "+ ENGINE="+to.Engine)
		c.plan.AddStatement(c.prefix + "ENGINE=" + to.Engine)
	}
	if from.Charset != to.Charset || from.Collate != to.Collate {
		c.plan.AddDisplay("- "+charsetClause(from), "+ "+charsetClause(to))
		c.plan.AddStatement(c.prefix + charsetClause(to))
	}
	if from.Comment != to.Comment {
		c.plan.AddDisplay("- COMMENT="+schema.QuoteString(from.Comment), "+ COMMENT="+schema.QuoteString(to.Comment))
		c.plan.AddStatement(c.prefix + "COMMENT=" + schema.QuoteString(to.Comment))
	}
	// checksum and row format are only managed when declared
	if to.Checksum != "" && from.Checksum != to.Checksum {
		c.plan.AddDisplay("- CHECKSUM="+from.Checksum, "+ CHECKSUM="+to.Checksum)
		c.plan.AddStatement(c.prefix + "CHECKSUM=" + to.Checksum)
	}
	if to.RowFormat != "" && from.RowFormat != to.RowFormat {
		c.plan.AddDisplay("- ROW_FORMAT="+from.RowFormat, "+ ROW_FORMAT="+to.RowFormat)
		c.plan.AddStatement(c.prefix + "ROW_FORMAT=" + to.RowFormat)
	}
}

func charsetClause(s schema.MySQLStatus) string {
	clause := "DEFAULT CHARSET=" + s.Charset
	if s.Collate != "" {
		clause += " COLLATE=" + s.Collate
	}
	return clause
}

func (c *mysqlTableComparer) fieldDeletions() {
	for i, f := range c.old.Fields {
		if c.desired.Field(f.Name) != nil {
			continue
		}
		c.plan.AddDisplay(fmt.Sprintf("-[%d] %s", i+1, f.SQL()))
		c.plan.AddStatement(c.prefix + "DROP " + schema.QuoteIdent(f.Name))
		c.removed[f.Name] = true
	}
}

// fieldChanges emits CHANGE for every surviving column whose definition
// or position differs. Positions are tracked against the old column order
// with deleted columns removed; moving a column shifts every column
// that was before its old position down by one.
func (c *mysqlTableComparer) fieldChanges() {
	original := make(map[string]int, len(c.old.Fields))
	current := make(map[string]int, len(c.old.Fields))
	left := 1
	for i, f := range c.old.Fields {
		original[f.Name] = i + 1
		if !c.removed[f.Name] {
			current[f.Name] = left
			left++
		}
	}

	position := 0
	tail := " FIRST"
	for i, f := range c.desired.Fields {
		from := c.old.Field(f.Name)
		if from == nil {
			continue
		}
		position++

		fromSQL, toSQL := from.SQL(), f.SQL()
		if fromSQL != toSQL || position != current[f.Name] {
			c.plan.AddDisplay(
				fmt.Sprintf("-[%d] %s", original[f.Name], fromSQL),
				fmt.Sprintf("+[%d] %s", i+1, toSQL),
			)
			change := c.prefix + "CHANGE " + schema.QuoteIdent(f.Name) + " "
			if f.AutoIncrement && !from.AutoIncrement {
				c.plan.AddStatement(change + f.SQLWithoutAutoIncrement() + tail)
				c.plan.AddDeferred(change + toSQL + tail)
			} else {
				c.plan.AddStatement(change + toSQL + tail)
			}

			moved := current[f.Name]
			for name, pos := range current {
				if pos < moved {
					current[name] = pos + 1
				}
			}
		}
		tail = " AFTER " + schema.QuoteIdent(f.Name)
	}
}

func (c *mysqlTableComparer) fieldAdditions() {
	tail := " FIRST"
	for i, f := range c.desired.Fields {
		if c.old.Field(f.Name) == nil {
			c.plan.AddDisplay(fmt.Sprintf("+[%d] %s", i+1, f.SQL()))
			if f.AutoIncrement {
				// auto_increment needs a covering key, which is added with
				// the indexes
				c.plan.AddStatement(c.prefix + "ADD " + f.SQLWithoutAutoIncrement() + tail)
				c.plan.AddDeferred(c.prefix + "CHANGE " + schema.QuoteIdent(f.Name) + " " + f.SQL() + tail)
			} else {
				c.plan.AddStatement(c.prefix + "ADD " + f.SQL() + tail)
			}
		}
		tail = " AFTER " + schema.QuoteIdent(f.Name)
	}
}

func (c *mysqlTableComparer) indexes() {
	for _, idx := range c.desired.Indexes {
		toSQL := idx.CreateSQL()
		from := c.old.Index(idx.Name)
		if from == nil {
			c.plan.AddDisplay("+ " + toSQL)
			c.plan.AddStatement(c.prefix + "ADD " + idx.AlterSQL())
			continue
		}
		if fromSQL := from.CreateSQL(); fromSQL != toSQL {
			c.plan.AddDisplay("- "+fromSQL, "+ "+toSQL)
			c.plan.AddStatement(c.prefix + from.DropSQL() + ", ADD " + idx.AlterSQL())
		}
	}

	for _, idx := range c.old.Indexes {
		if c.desired.Index(idx.Name) != nil {
			continue
		}
		c.plan.AddDisplay("- " + idx.CreateSQL())
		// dropping every member column already dropped the index
		if !c.allMembersRemoved(idx) {
			c.plan.AddStatement(c.prefix + idx.DropSQL())
		}
	}
}

func (c *mysqlTableComparer) allMembersRemoved(idx *schema.MySQLIndex) bool {
	for _, member := range idx.Fields {
		if !c.removed[schema.IndexMemberColumn(member)] {
			return false
		}
	}
	return true
}
