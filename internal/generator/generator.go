// Package generator writes plans out as a migration SQL script.
package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/koba/schema-sync/internal/diff"
)

// Header describes where a script comes from.
type Header struct {
	Target      string // database or file the script migrates
	Source      string // definitions or snapshot it was planned from
	GeneratedAt time.Time
}

// GenerateSQL renders every non-empty plan as a commented block of
// statements. The diff lines are kept as comments for review.
func GenerateSQL(plans []*diff.Plan, h Header) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Migration SQL for %s", h.Target)
	if h.Source != "" {
		fmt.Fprintf(&b, " from %s", h.Source)
	}
	fmt.Fprintf(&b, "\n-- Generated at: %s\n", h.GeneratedAt.Format(time.RFC3339))

	n := 0
	for _, plan := range plans {
		if plan.Empty() {
			continue
		}
		n++
		b.WriteString("\n")
		fmt.Fprintf(&b, "-- %s: %s\n", plan.Table, plan.Action())
		for _, line := range plan.Display() {
			b.WriteString("-- " + line + "\n")
		}
		for _, stmt := range plan.Statements() {
			b.WriteString(stmt + ";\n")
		}
	}
	if n == 0 {
		b.WriteString("\n-- No differences found.\n")
	}
	return b.String()
}
