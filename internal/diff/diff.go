// Package diff compares a desired schema object with the live one and
// produces the plan of DDL statements that reconciles them.
package diff

import (
	"fmt"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

// Options carries what a comparison needs from the live connection.
type Options struct {
	// Definer is the user@host views are created as.
	Definer string
	// ExistingTables are probed when naming the temporary table of a
	// SQLite rebuild.
	ExistingTables []string
}

// Compare computes the plan that turns old into desired. A nil old yields a
// create plan. Both objects must share dialect, kind and name.
func Compare(desired, old *schema.Object, opts Options) (*Plan, error) {
	if desired == nil {
		return nil, apperrors.NewValidation("", "", "desired object is nil")
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	if old != nil {
		if old.Dialect != desired.Dialect || old.Kind != desired.Kind {
			return nil, apperrors.NewUnsupported("comparison",
				fmt.Sprintf("%s %s %s against %s %s", desired.Dialect, desired.Kind, desired.Name(), old.Dialect, old.Kind))
		}
		if old.Name() != desired.Name() {
			return nil, apperrors.NewUnsupported("comparison",
				fmt.Sprintf("%s against differently named %s", desired.Name(), old.Name()))
		}
		if err := old.Validate(); err != nil {
			return nil, err
		}
	}

	switch desired.Dialect {
	case schema.MySQL:
		switch desired.Kind {
		case schema.KindTable:
			var from *schema.MySQLTable
			if old != nil {
				from = old.MySQLTable
			}
			return compareMySQLTable(desired.MySQLTable, from), nil
		case schema.KindView:
			var from *schema.MySQLView
			if old != nil {
				from = old.MySQLView
			}
			return compareMySQLView(desired.MySQLView, from, opts.Definer), nil
		}
	case schema.SQLite:
		if desired.Kind == schema.KindTable {
			var from *schema.SQLiteTable
			if old != nil {
				from = old.SQLiteTable
			}
			return compareSQLiteTable(desired.SQLiteTable, from, opts.ExistingTables), nil
		}
	}
	return nil, apperrors.NewUnsupported("comparison", fmt.Sprintf("%s %s", desired.Dialect, desired.Kind))
}

// createDisplay renders a CREATE statement split into lines for review.
func createDisplay(head string, lines []string, tail string) []string {
	out := make([]string, 0, len(lines)+2)
	out = append(out, "+ "+head)
	for i, line := range lines {
		if i < len(lines)-1 {
			line += ","
		}
		out = append(out, "+   "+line)
	}
	return append(out, "+ "+tail)
}
