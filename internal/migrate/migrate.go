// Package migrate drives a migration: it reads the live object for each
// desired one, compares the two and shows or applies the resulting plans.
package migrate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/koba/schema-sync/internal/database"
	"github.com/koba/schema-sync/internal/diff"
	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/logging"
	"github.com/koba/schema-sync/internal/schema"
)

// maxSuggestions caps the "did you mean" candidates of a failed Lookup.
const maxSuggestions = 3

// Migrator plans and applies schema changes against one database.
type Migrator struct {
	driver  database.Driver
	logger  *slog.Logger
	definer string
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithDefiner sets the user@host views are created as. Without it the
// connected account is used.
func WithDefiner(definer string) Option {
	return func(m *Migrator) { m.definer = definer }
}

// New creates a Migrator over a connected driver.
func New(driver database.Driver, opts ...Option) *Migrator {
	m := &Migrator{driver: driver}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.GetLogger()
	}
	return m
}

// Plan compares the desired object with the live one. A missing live
// object yields a create plan.
func (m *Migrator) Plan(ctx context.Context, provider Provider) (*diff.Plan, error) {
	desired, err := provider()
	if err != nil {
		return nil, err
	}
	if desired.Dialect != m.driver.Dialect() {
		return nil, apperrors.NewUnsupported("comparison",
			fmt.Sprintf("%s %s against a %s database", desired.Dialect, desired.Name(), m.driver.Dialect()))
	}

	name := desired.Name()
	old, err := m.driver.Describe(ctx, name)
	if errors.Is(err, apperrors.ErrNotFound) {
		old = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}

	opts := diff.Options{Definer: m.definer}
	if desired.Kind == schema.KindView && opts.Definer == "" {
		if opts.Definer, err = m.driver.CurrentUser(ctx); err != nil {
			return nil, err
		}
	}
	if desired.Dialect == schema.SQLite {
		if opts.ExistingTables, err = m.driver.Tables(ctx); err != nil {
			return nil, err
		}
	}

	plan, err := diff.Compare(desired, old, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compare %s: %w", name, err)
	}
	m.logger.Debug("planned", "table", name, "action", plan.Action(), "statements", len(plan.Statements()))
	return plan, nil
}

// PlanAll plans every provider and returns the plans ordered by table
// name.
func (m *Migrator) PlanAll(ctx context.Context, providers []Provider) ([]*diff.Plan, error) {
	plans := make([]*diff.Plan, 0, len(providers))
	for _, provider := range providers {
		plan, err := m.Plan(ctx, provider)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	slices.SortStableFunc(plans, func(a, b *diff.Plan) int {
		return cmp.Compare(a.Table, b.Table)
	})
	return plans, nil
}

// Apply executes the plans in order and stops at the first failure. With
// useTx each plan runs in its own transaction.
func (m *Migrator) Apply(ctx context.Context, plans []*diff.Plan, useTx bool) error {
	for _, plan := range plans {
		if plan.Empty() {
			continue
		}
		for _, stmt := range plan.Statements() {
			m.logger.Debug("statement", "table", plan.Table, "sql", stmt)
		}
		if err := plan.Apply(ctx, m.driver, useTx); err != nil {
			return err
		}
		m.logger.Info("applied", "table", plan.Table, "action", plan.Action())
	}
	return nil
}

// Export describes every live table or view whose name starts with prefix.
func (m *Migrator) Export(ctx context.Context, prefix string) ([]schema.Definition, error) {
	tables, err := m.driver.Tables(ctx)
	if err != nil {
		return nil, err
	}

	var defs []schema.Definition
	for _, name := range tables {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		obj, err := m.driver.Describe(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		defs = append(defs, obj.Definition())
	}
	return defs, nil
}

// Lookup describes one live table or view. When it does not exist the
// error suggests similarly named ones.
func (m *Migrator) Lookup(ctx context.Context, name string) (*schema.Object, error) {
	obj, err := m.driver.Describe(ctx, name)
	if err == nil {
		return obj, nil
	}
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	tables, tErr := m.driver.Tables(ctx)
	if tErr != nil {
		return nil, err
	}
	nf.Suggestions = suggest(name, tables)
	return nil, nf
}

func suggest(name string, candidates []string) []string {
	matches := fuzzy.Find(strings.ToLower(name), lower(candidates))
	var out []string
	for _, match := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, candidates[match.Index])
	}
	return out
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
