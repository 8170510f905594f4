package diff

import (
	"strings"

	"github.com/koba/schema-sync/internal/schema"
)

// compareMySQLView recreates the view when its algorithm, security or
// body changed; MySQL has no partial ALTER VIEW for these.
func compareMySQLView(desired, old *schema.MySQLView, definer string) *Plan {
	p := NewPlan(desired.Name)
	create := desired.CreateSQL(definer)
	if old == nil {
		p.markCreate()
		p.AddDisplay("+ " + create)
		p.AddStatement(create)
		return p
	}

	changed := false
	if old.Algorithm != desired.Algorithm {
		changed = true
		p.AddDisplay("- ALGORITHM="+strings.ToUpper(old.Algorithm), "+ ALGORITHM="+strings.ToUpper(desired.Algorithm))
	}
	if old.Security != desired.Security {
		changed = true
		p.AddDisplay("- SQL SECURITY "+strings.ToUpper(old.Security), "+ SQL SECURITY "+strings.ToUpper(desired.Security))
	}
	if old.Body != desired.Body {
		changed = true
		p.AddDisplay("- AS "+old.Body, "+ AS "+desired.Body)
	}
	if changed {
		p.AddStatement("DROP VIEW IF EXISTS " + schema.QuoteIdent(desired.Name))
		p.AddStatement(create)
	}
	return p
}
