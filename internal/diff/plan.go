package diff

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Action summarizes what a plan does to its table.
type Action string

const (
	ActionNone    Action = "NONE"
	ActionCreate  Action = "CREATE"
	ActionAlter   Action = "ALTER"
	ActionRebuild Action = "REBUILD"
)

// Executor runs plan statements. database.Driver satisfies it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
}

// Plan holds the ordered statements that bring one table or view from its
// current shape to the desired one. Statements added with AddDeferred run
// after every statement added with AddStatement.
type Plan struct {
	Table string

	create     bool
	display    []string
	trans      []string
	last       []string
	rebuild    []string
	infeasible bool
}

// NewPlan returns an empty, feasible plan for table.
func NewPlan(table string) *Plan {
	return &Plan{Table: table}
}

// AddDisplay appends human-readable diff lines, prefixed "-", "+" or "!".
func (p *Plan) AddDisplay(lines ...string) {
	p.display = append(p.display, lines...)
}

// AddStatement appends a statement to the immediate phase. It is dropped
// once the plan is infeasible.
func (p *Plan) AddStatement(stmt string) {
	if p.infeasible {
		return
	}
	p.trans = append(p.trans, stmt)
}

// AddDeferred appends a statement to the phase run after all immediate
// statements.
func (p *Plan) AddDeferred(stmt string) {
	if p.infeasible {
		return
	}
	p.last = append(p.last, stmt)
}

// SetFeasible marks whether the change can be expressed incrementally.
// Marking a plan infeasible discards the statements collected so far.
func (p *Plan) SetFeasible(ok bool) {
	p.infeasible = !ok
	if !ok {
		p.trans = nil
		p.last = nil
	}
}

// Feasible reports whether the plan is incremental.
func (p *Plan) Feasible() bool {
	return !p.infeasible
}

// SetRebuild sets the statements that replace the table wholesale. They
// are only used once the plan is infeasible.
func (p *Plan) SetRebuild(stmts []string) {
	p.rebuild = slices.Clone(stmts)
}

func (p *Plan) markCreate() {
	p.create = true
}

// Statements returns the executable statements without terminators: the
// rebuild statements for an infeasible plan, otherwise the immediate
// statements followed by the deferred ones.
func (p *Plan) Statements() []string {
	if p.infeasible {
		return slices.Clone(p.rebuild)
	}
	return slices.Concat(p.trans, p.last)
}

// Display returns the diff lines.
func (p *Plan) Display() []string {
	return slices.Clone(p.display)
}

// Empty reports whether there is nothing to do. An infeasible plan is
// never empty.
func (p *Plan) Empty() bool {
	return !p.infeasible && len(p.trans) == 0 && len(p.last) == 0
}

// Action reports how the plan changes the table.
func (p *Plan) Action() Action {
	switch {
	case p.infeasible:
		return ActionRebuild
	case p.Empty():
		return ActionNone
	case p.create:
		return ActionCreate
	}
	return ActionAlter
}

// String renders the plan as a review block:
//
//	--------users--------
//	+[3] `email` varchar(255) ...
//	=============================
//	ALTER TABLE `users` ADD ...;
func (p *Plan) String() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("--------" + p.Table + "--------\n")
	for _, line := range p.display {
		b.WriteString(line + "\n")
	}
	b.WriteString("=============================\n")
	for _, stmt := range p.Statements() {
		b.WriteString(stmt + ";\n")
	}
	return b.String()
}

// Apply executes the statements in order. With useTx the statements run in
// one transaction that is rolled back on the first failure.
func (p *Plan) Apply(ctx context.Context, ex Executor, useTx bool) error {
	stmts := p.Statements()
	if len(stmts) == 0 {
		return nil
	}

	if useTx {
		if err := ex.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
	}

	for _, stmt := range stmts {
		if stmt == "" {
			continue
		}
		if err := ex.Exec(ctx, stmt); err != nil {
			err = fmt.Errorf("failed to apply plan for %s: %w\nstatement: %s", p.Table, err, stmt)
			if useTx {
				if rbErr := ex.Rollback(); rbErr != nil {
					err = errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
				}
			}
			return err
		}
	}

	if useTx {
		if err := ex.Commit(); err != nil {
			return fmt.Errorf("failed to commit plan for %s: %w", p.Table, err)
		}
	}
	return nil
}
